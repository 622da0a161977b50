package chat

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"handyfix/models"
)

var (
	// ErrComposing is returned when a call arrives while another one is outstanding.
	ErrComposing = errors.New("the assistant is still replying")
	// ErrSessionClosed is returned for calls on, or results arriving after, a closed session.
	ErrSessionClosed = errors.New("chat session is closed")
	// ErrUnknownSuggestion is returned for taps that name no offered suggestion.
	ErrUnknownSuggestion = errors.New("suggestion not found")
)

// turnState is the per-session mutable state shared by the orchestrator, the image
// pipeline and the suggestion router. It serialises remote calls one at a time and makes
// sure nothing is appended or notified after the session is closed.
type turnState struct {
	store    *ConversationStore
	notifier Notifier
	logger   *zap.Logger

	mu        sync.Mutex
	composing bool
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
}

func newTurnState(store *ConversationStore, notifier Notifier, logger *zap.Logger) *turnState {
	ctx, cancel := context.WithCancel(context.Background())
	return &turnState{
		store:    store,
		notifier: notifier,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// begin marks the session as composing and returns a context that is cancelled when
// either the caller's context or the session ends. release must always be called.
func (s *turnState) begin(ctx context.Context) (context.Context, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, ErrSessionClosed
	}
	if s.composing {
		return nil, nil, ErrComposing
	}
	s.composing = true

	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}, nil
}

// append adds m to the log unless the session has been closed.
func (s *turnState) append(m models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !m.Valid() {
		return false
	}
	s.store.Append(m)
	return true
}

// finish appends reply (when non-nil) and clears composing in one step. A reply with
// neither text nor image is dropped.
func (s *turnState) finish(reply *models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composing = false
	if s.closed {
		return false
	}
	if reply != nil {
		if !reply.Valid() {
			s.logger.Error("Dropping assistant message without text or image")
			return true
		}
		s.store.Append(*reply)
	}
	return true
}

// fail clears composing and reports err to the user unless the session is closed.
func (s *turnState) fail(err error) {
	s.mu.Lock()
	s.composing = false
	closed := s.closed
	s.mu.Unlock()
	if closed {
		s.logger.Debug("Discarding failure for closed session", zap.Error(err))
		return
	}
	s.logger.Warn("Assistant turn failed", zap.Error(err))
	s.emit(errorEvent(err))
}

func (s *turnState) notice(message string) {
	if s.isClosed() {
		return
	}
	s.emit(Event{Kind: EventNotice, Message: message})
}

func (s *turnState) emit(e Event) {
	if s.notifier != nil {
		s.notifier.Notify(e)
	}
}

func (s *turnState) isComposing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.composing
}

func (s *turnState) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *turnState) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.composing = false
	s.cancel()
}
