package chat

import (
	"context"
	"sync"
	"time"

	"handyfix/models"
	"handyfix/services/intelligence"
)

type completerFunc func(ctx context.Context, turns []models.ContextTurn) (string, error)

func (f completerFunc) Complete(ctx context.Context, turns []models.ContextTurn, _ intelligence.SamplingParams) (string, error) {
	return f(ctx, turns)
}

type visionFunc func(ctx context.Context, image []byte, instruction string) (string, error)

func (f visionFunc) Describe(ctx context.Context, image []byte, instruction string, _ intelligence.SamplingParams) (string, error) {
	return f(ctx, image, instruction)
}

type finderFunc func(ctx context.Context, query string, maxResults int, location string) ([]models.WorkerRecommendation, error)

func (f finderFunc) FindWorkers(ctx context.Context, query string, maxResults int, location string) ([]models.WorkerRecommendation, error) {
	return f(ctx, query, maxResults, location)
}

type handoff struct {
	query   string
	workers []models.WorkerRecommendation
}

// recorder is a thread-safe Notifier and ResultsPresenter.
type recorder struct {
	mu       sync.Mutex
	events   []Event
	handoffs []handoff
}

func (r *recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) PresentResults(query string, workers []models.WorkerRecommendation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handoffs = append(r.handoffs, handoff{query: query, workers: workers})
}

func (r *recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) Handoffs() []handoff {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]handoff(nil), r.handoffs...)
}

func unexpectedCompleter() completerFunc {
	return func(context.Context, []models.ContextTurn) (string, error) {
		panic("unexpected text completion")
	}
}

func unexpectedVision() visionFunc {
	return func(context.Context, []byte, string) (string, error) {
		panic("unexpected vision call")
	}
}

func unexpectedFinder() finderFunc {
	return func(context.Context, string, int, string) ([]models.WorkerRecommendation, error) {
		panic("unexpected worker search")
	}
}

type fixture struct {
	deps Dependencies
	rec  *recorder
}

func newFixture() *fixture {
	rec := &recorder{}
	return &fixture{
		rec: rec,
		deps: Dependencies{
			Completer: unexpectedCompleter(),
			Vision:    unexpectedVision(),
			Finder:    unexpectedFinder(),
			Notifier:  rec,
			Presenter: rec,
			Location:  "Colombo",
		},
	}
}

func (f *fixture) orchestrator() *Orchestrator {
	return NewOrchestrator(f.deps)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}
