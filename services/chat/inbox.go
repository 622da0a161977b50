package chat

import (
	"sync"

	"handyfix/models"
)

const inboxNoticeLimit = 50

// Inbox collects a session's notices and result hand-offs until the HTTP layer drains
// them into the next response. It is both the session's Notifier and ResultsPresenter.
type Inbox struct {
	mu      sync.Mutex
	notices []models.Notice
	results *models.ResultsHandoff
}

func NewInbox() *Inbox {
	return &Inbox{}
}

func (b *Inbox) Notify(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notices = append(b.notices, models.Notice{Kind: string(e.Kind), Message: e.Message})
	if over := len(b.notices) - inboxNoticeLimit; over > 0 {
		b.notices = append([]models.Notice(nil), b.notices[over:]...)
	}
}

// PresentResults records the hand-off. A nil workers slice means keyword search.
func (b *Inbox) PresentResults(query string, workers []models.WorkerRecommendation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := &models.ResultsHandoff{Query: query, Mode: models.ResultsKeyword}
	if workers != nil {
		h.Mode = models.ResultsRanked
		h.Workers = append([]models.WorkerRecommendation(nil), workers...)
	}
	b.results = h
}

// Drain returns and clears everything collected so far.
func (b *Inbox) Drain() ([]models.Notice, *models.ResultsHandoff) {
	b.mu.Lock()
	defer b.mu.Unlock()
	notices, results := b.notices, b.results
	b.notices, b.results = nil, nil
	if notices == nil {
		notices = []models.Notice{}
	}
	return notices, results
}
