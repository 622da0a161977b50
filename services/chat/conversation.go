package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"handyfix/models"
)

// DefaultContextTurns bounds how many text turns are sent to the language model.
const DefaultContextTurns = 10

// ConversationStore is the append-only message log of one chat session.
type ConversationStore struct {
	mu       sync.RWMutex
	messages []models.Message
	now      func() time.Time
}

func NewConversationStore(now func() time.Time) *ConversationStore {
	if now == nil {
		now = time.Now
	}
	return &ConversationStore{now: now}
}

// Append adds a copy of m to the end of the log and returns the stored copy. It assigns
// an id when missing and keeps timestamps non-decreasing in append order.
func (s *ConversationStore) Append(m models.Message) models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	m = m.Clone()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	if n := len(s.messages); n > 0 && m.Timestamp.Before(s.messages[n-1].Timestamp) {
		m.Timestamp = s.messages[n-1].Timestamp
	}
	s.messages = append(s.messages, m)
	return m.Clone()
}

// Messages returns a copy of the whole log.
func (s *ConversationStore) Messages() []models.Message {
	return s.Since(0)
}

// Since returns copies of the messages appended at or after index from.
func (s *ConversationStore) Since(from int) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if from < 0 {
		from = 0
	}
	if from >= len(s.messages) {
		return []models.Message{}
	}
	out := make([]models.Message, 0, len(s.messages)-from)
	for _, m := range s.messages[from:] {
		out = append(out, m.Clone())
	}
	return out
}

func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// FindSuggestion looks up a suggestion offered on an assistant message.
func (s *ConversationStore) FindSuggestion(id string) (models.Suggestion, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.Origin != models.OriginAssistant {
			continue
		}
		for _, sg := range m.Suggestions {
			if sg.ID == id {
				return sg, true
			}
		}
	}
	return models.Suggestion{}, false
}

// ContextWindow returns the most recent maxTurns text-bearing messages in chronological
// order. Image-only messages neither appear nor count.
func (s *ConversationStore) ContextWindow(maxTurns int) []models.ContextTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if maxTurns <= 0 {
		return []models.ContextTurn{}
	}
	var picked []models.Message
	for i := len(s.messages) - 1; i >= 0 && len(picked) < maxTurns; i-- {
		if s.messages[i].HasText() {
			picked = append(picked, s.messages[i])
		}
	}
	window := make([]models.ContextTurn, 0, len(picked))
	for i := len(picked) - 1; i >= 0; i-- {
		window = append(window, models.ContextTurn{Role: picked[i].Role(), Content: picked[i].Text})
	}
	return window
}
