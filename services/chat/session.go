package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"handyfix/metrics"
)

const sweepInterval = time.Minute

// Session is one live conversation hosted by the Manager.
type Session struct {
	ID           string
	Orchestrator *Orchestrator
	Inbox        *Inbox
	Location     string
	CreatedAt    time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// OrchestratorFactory builds the orchestrator for a new session. The inbox must be used
// as its notifier and presenter.
type OrchestratorFactory func(inbox *Inbox, location string) *Orchestrator

// Manager keeps live sessions in memory and expires idle ones.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	factory  OrchestratorFactory
	logger   *zap.Logger
	now      func() time.Time
}

func NewManager(ttl time.Duration, factory OrchestratorFactory, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		factory:  factory,
		logger:   logger,
		now:      time.Now,
	}
}

func (m *Manager) Create(location string) *Session {
	now := m.now()
	inbox := NewInbox()
	s := &Session{
		ID:           uuid.NewString(),
		Orchestrator: m.factory(inbox, location),
		Inbox:        inbox,
		Location:     location,
		CreatedAt:    now,
		lastSeen:     now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	metrics.SessionsActive.Inc()
	m.logger.Info("Chat session started", zap.String("sessionID", s.ID), zap.String("location", location))
	return s
}

// Get returns a live session and refreshes its idle timer.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	s.touch(m.now())
	return s, true
}

// End closes and forgets a session. It reports whether the session existed.
func (m *Manager) End(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.closeSession(s, "ended")
	return true
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep ends every session idle for longer than the TTL and returns how many it ended.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.closeSession(s, "expired")
	}
	return len(expired)
}

// Run sweeps expired sessions until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Info("Expired idle chat sessions", zap.Int("count", n))
			}
		}
	}
}

// CloseAll ends every session, used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		m.closeSession(s, "shutdown")
	}
}

func (m *Manager) closeSession(s *Session, reason string) {
	s.Orchestrator.Close()
	metrics.SessionsActive.Dec()
	m.logger.Info("Chat session closed", zap.String("sessionID", s.ID), zap.String("reason", reason))
}
