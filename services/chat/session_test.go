package chat

import (
	"context"
	"testing"
	"time"

	"handyfix/models"
)

func newTestManager(ttl time.Duration) (*Manager, *time.Time) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(ttl, func(inbox *Inbox, location string) *Orchestrator {
		f := newFixture()
		f.deps.Notifier = inbox
		f.deps.Presenter = inbox
		f.deps.Location = location
		f.deps.Finder = finderFunc(func(ctx context.Context, query string, maxResults int, location string) ([]models.WorkerRecommendation, error) {
			return nil, context.DeadlineExceeded
		})
		return NewOrchestrator(f.deps)
	}, nil)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestManagerLifecycle(t *testing.T) {
	m, _ := newTestManager(time.Minute)
	s := m.Create("Galle")
	if s.ID == "" || s.Location != "Galle" {
		t.Fatalf("unexpected session %+v", s)
	}
	got, ok := m.Get(s.ID)
	if !ok || got != s {
		t.Fatalf("expected to find the session")
	}
	if !m.End(s.ID) {
		t.Fatalf("expected End to report the session existed")
	}
	if !s.Orchestrator.Closed() {
		t.Errorf("ending a session must close its orchestrator")
	}
	if _, ok := m.Get(s.ID); ok {
		t.Errorf("ended session is still reachable")
	}
	if m.End(s.ID) {
		t.Errorf("second End must report false")
	}
}

func TestManagerSweepExpiresIdleSessions(t *testing.T) {
	m, now := newTestManager(10 * time.Minute)
	idle := m.Create("")
	active := m.Create("")

	*now = now.Add(8 * time.Minute)
	m.Get(active.ID)
	*now = now.Add(5 * time.Minute)

	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected one expired session, got %d", n)
	}
	if !idle.Orchestrator.Closed() || active.Orchestrator.Closed() {
		t.Errorf("wrong session expired")
	}
	if m.Len() != 1 {
		t.Errorf("expected one live session, got %d", m.Len())
	}

	m.CloseAll()
	if m.Len() != 0 || !active.Orchestrator.Closed() {
		t.Errorf("CloseAll must close every session")
	}
}

func TestInboxCollectsFallbackHandoff(t *testing.T) {
	m, _ := newTestManager(time.Minute)
	s := m.Create("Matara")
	o := s.Orchestrator
	sg := models.NewSuggestion(models.LabelNearbyContractors, models.ActionWorkerSearch)
	o.store.Append(models.Message{Origin: models.OriginAssistant, Text: "options", Suggestions: []models.Suggestion{sg}})

	_ = o.TapSuggestion(context.Background(), sg.ID)

	notices, results := s.Inbox.Drain()
	if len(notices) != 1 || notices[0].Kind != string(EventTransport) {
		t.Fatalf("unexpected notices %+v", notices)
	}
	if results == nil || results.Mode != models.ResultsKeyword || results.Query != "general maintenance" {
		t.Fatalf("unexpected results %+v", results)
	}

	notices, results = s.Inbox.Drain()
	if len(notices) != 0 || results != nil {
		t.Errorf("drain must clear the inbox")
	}
}
