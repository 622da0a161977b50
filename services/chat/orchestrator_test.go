package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"handyfix/metrics"
	"handyfix/models"
	"handyfix/services/apperror"
	"handyfix/services/intelligence"
)

func TestNewOrchestratorSeedsGreeting(t *testing.T) {
	o := newFixture().orchestrator()
	msgs := o.Messages()
	if len(msgs) != 1 || msgs[0].Origin != models.OriginAssistant || msgs[0].Text != Greeting {
		t.Fatalf("expected a single greeting, got %+v", msgs)
	}
	if o.Composing() {
		t.Errorf("new session must not be composing")
	}
}

func TestSendTextAppendsReply(t *testing.T) {
	f := newFixture()
	var sent []models.ContextTurn
	f.deps.Completer = completerFunc(func(ctx context.Context, turns []models.ContextTurn) (string, error) {
		sent = turns
		return "Try checking the valve", nil
	})
	o := f.orchestrator()

	if err := o.SendText(context.Background(), "leaky pipe"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := o.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Text != Greeting || msgs[1].Text != "leaky pipe" || msgs[1].Origin != models.OriginUser ||
		msgs[2].Text != "Try checking the valve" || msgs[2].Origin != models.OriginAssistant {
		t.Errorf("unexpected transcript %+v", msgs)
	}
	if o.Composing() {
		t.Errorf("composing must be cleared")
	}

	if len(sent) != 3 {
		t.Fatalf("expected system, greeting and user turns, got %+v", sent)
	}
	if sent[0].Role != models.RoleSystem || sent[0].Content != intelligence.ChatSystemPrompt {
		t.Errorf("expected system prompt first, got %+v", sent[0])
	}
	if sent[1].Role != models.RoleAssistant || sent[2] != (models.ContextTurn{Role: models.RoleUser, Content: "leaky pipe"}) {
		t.Errorf("unexpected turns %+v", sent)
	}
}

func TestSendTextWindowIsBounded(t *testing.T) {
	f := newFixture()
	f.deps.MaxTurns = 2
	var sent []models.ContextTurn
	f.deps.Completer = completerFunc(func(ctx context.Context, turns []models.ContextTurn) (string, error) {
		sent = turns
		return "ok", nil
	})
	o := f.orchestrator()
	for _, text := range []string{"one", "two", "three"} {
		if err := o.SendText(context.Background(), text); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// system + 2 window turns + the new user turn
	if len(sent) != 4 || sent[1].Content != "two" || sent[2].Content != "ok" || sent[3].Content != "three" {
		t.Fatalf("unexpected turns %+v", sent)
	}
}

func TestSendTextBlankIsNoop(t *testing.T) {
	o := newFixture().orchestrator()
	if err := o.SendText(context.Background(), "   \n\t"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(o.Messages()) != 1 {
		t.Fatalf("expected nothing appended")
	}
}

func TestSendTextFailureNotifies(t *testing.T) {
	f := newFixture()
	f.deps.Completer = completerFunc(func(ctx context.Context, turns []models.ContextTurn) (string, error) {
		return "", apperror.Configuration("GEMINI_API_KEY is not set")
	})
	o := f.orchestrator()

	err := o.SendText(context.Background(), "hello")
	if apperror.KindOf(err) != apperror.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
	msgs := o.Messages()
	if len(msgs) != 2 || msgs[1].Origin != models.OriginUser {
		t.Fatalf("expected only the user message to be appended, got %+v", msgs)
	}
	if o.Composing() {
		t.Errorf("composing must be cleared after failure")
	}
	events := f.rec.Events()
	if len(events) != 1 || events[0].Kind != EventConfiguration || !strings.Contains(events[0].Message, "not configured") {
		t.Fatalf("unexpected events %+v", events)
	}

	// The session stays usable.
	f2 := completerFunc(func(ctx context.Context, turns []models.ContextTurn) (string, error) { return "fine", nil })
	o.completer = f2
	if err := o.SendText(context.Background(), "again"); err != nil {
		t.Fatalf("expected the session to recover, got %v", err)
	}
}

func TestSendTextEmptyReplyIsBackendLogic(t *testing.T) {
	for _, reply := range []string{"", "  \n "} {
		f := newFixture()
		f.deps.Completer = completerFunc(func(ctx context.Context, turns []models.ContextTurn) (string, error) {
			return reply, nil
		})
		o := f.orchestrator()

		err := o.SendText(context.Background(), "hello")
		if apperror.KindOf(err) != apperror.KindBackendLogic {
			t.Fatalf("reply %q: expected backend logic error, got %v", reply, err)
		}
		msgs := o.Messages()
		if len(msgs) != 2 || msgs[1].Origin != models.OriginUser {
			t.Fatalf("reply %q: expected only the user message to be appended, got %+v", reply, msgs)
		}
		for _, m := range msgs {
			if !m.Valid() {
				t.Errorf("reply %q: invalid message in transcript %+v", reply, m)
			}
		}
		if o.Composing() {
			t.Errorf("reply %q: composing must be cleared", reply)
		}
		if ev := f.rec.Events(); len(ev) != 1 || ev[0].Kind != EventBackendLogic {
			t.Errorf("reply %q: unexpected events %+v", reply, ev)
		}
	}
}

func TestFinishDropsEmptyMessage(t *testing.T) {
	o := newFixture().orchestrator()
	if !o.state.finish(&models.Message{Origin: models.OriginAssistant}) {
		t.Fatalf("finish on an open session must report success")
	}
	if len(o.Messages()) != 1 {
		t.Errorf("an empty message must not be stored, got %+v", o.Messages())
	}
	if o.state.append(models.Message{Origin: models.OriginUser}) {
		t.Errorf("append must refuse a message without text or image")
	}
}

func TestSendTextRejectedWhileComposing(t *testing.T) {
	f := newFixture()
	release := make(chan struct{})
	f.deps.Completer = completerFunc(func(ctx context.Context, turns []models.ContextTurn) (string, error) {
		<-release
		return "done", nil
	})
	o := f.orchestrator()

	errc := make(chan error, 1)
	go func() { errc <- o.SendText(context.Background(), "first") }()
	if !waitFor(o.Composing) {
		t.Fatalf("expected composing")
	}

	if err := o.SendText(context.Background(), "second"); !errors.Is(err, ErrComposing) {
		t.Fatalf("expected ErrComposing, got %v", err)
	}
	if err := o.AnalyzeImage(context.Background(), []byte{1}, "a.png"); !errors.Is(err, ErrComposing) {
		t.Fatalf("expected ErrComposing for image, got %v", err)
	}

	close(release)
	if err := <-errc; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(o.Messages()); n != 3 {
		t.Fatalf("expected 3 messages, got %d", n)
	}
}

func TestCloseDiscardsInFlightReply(t *testing.T) {
	f := newFixture()
	started := make(chan struct{})
	f.deps.Completer = completerFunc(func(ctx context.Context, turns []models.ContextTurn) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	o := f.orchestrator()

	errc := make(chan error, 1)
	go func() { errc <- o.SendText(context.Background(), "hello") }()
	<-started
	o.Close()

	if err := <-errc; err == nil {
		t.Fatalf("expected the outstanding call to fail")
	}
	if n := len(o.Messages()); n != 2 {
		t.Fatalf("expected no assistant reply after close, got %d messages", n)
	}
	if events := f.rec.Events(); len(events) != 0 {
		t.Fatalf("expected no notification after close, got %+v", events)
	}
	if err := o.SendText(context.Background(), "again"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestAnalyzeImageRecordsDescription(t *testing.T) {
	f := newFixture()
	var instruction string
	f.deps.Vision = visionFunc(func(ctx context.Context, image []byte, in string) (string, error) {
		instruction = in
		return "  Washing machine leaking \n", nil
	})
	o := f.orchestrator()

	if err := o.AnalyzeImage(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "machine.png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if instruction != intelligence.ImageDescriptionPrompt {
		t.Errorf("unexpected instruction %q", instruction)
	}
	if got := o.Issue().LastDescription(); got != "Washing machine leaking" {
		t.Errorf("unexpected last description %q", got)
	}
	if h := o.Issue().History(); len(h) != 1 {
		t.Errorf("expected history to grow by one, got %v", h)
	}

	msgs := o.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected greeting, image and reply, got %d", len(msgs))
	}
	if !msgs[1].HasImage() || msgs[1].HasText() || msgs[1].ImageName != "machine.png" {
		t.Errorf("unexpected user image message %+v", msgs[1])
	}
	reply := msgs[2]
	if reply.Text != "Washing machine leaking" || len(reply.Suggestions) != 3 {
		t.Fatalf("unexpected reply %+v", reply)
	}
	want := []models.SuggestionAction{models.ActionWorkerSearch, models.ActionDiyAdvice, models.ActionWorkerSearch}
	for i, s := range reply.Suggestions {
		if s.Action != want[i] {
			t.Errorf("suggestion %d: expected %s, got %s", i, want[i], s.Action)
		}
	}
	if o.Composing() {
		t.Errorf("composing must be cleared")
	}
}

func TestAnalyzeEmptyImageIsNoop(t *testing.T) {
	o := newFixture().orchestrator()
	if err := o.AnalyzeImage(context.Background(), nil, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(o.Messages()) != 1 {
		t.Fatalf("expected nothing appended")
	}
}

func TestAnalyzeImageFailure(t *testing.T) {
	f := newFixture()
	f.deps.Vision = visionFunc(func(ctx context.Context, image []byte, in string) (string, error) {
		return "", apperror.Transport(503, "overloaded", "model overloaded", nil)
	})
	o := f.orchestrator()

	if err := o.AnalyzeImage(context.Background(), []byte{1, 2}, "x.jpg"); apperror.KindOf(err) != apperror.KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	if n := len(o.Messages()); n != 2 {
		t.Fatalf("expected only the image message, got %d", n)
	}
	if o.Issue().LastDescription() != "" {
		t.Errorf("failed analysis must not touch the issue context")
	}
	if ev := f.rec.Events(); len(ev) != 1 || ev[0].Kind != EventTransport {
		t.Errorf("unexpected events %+v", ev)
	}
}

func TestAnalyzeImageEmptyDescription(t *testing.T) {
	f := newFixture()
	f.deps.Vision = visionFunc(func(ctx context.Context, image []byte, in string) (string, error) {
		return "   ", nil
	})
	o := f.orchestrator()

	if err := o.AnalyzeImage(context.Background(), []byte{1}, "blank.png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reply := o.Messages()[2]
	if reply.Text != EmptyDescriptionReply || len(reply.Suggestions) != 3 {
		t.Errorf("unexpected reply %+v", reply)
	}
	if len(o.Issue().History()) != 0 {
		t.Errorf("empty descriptions must not enter the history")
	}
}

func analysedSession(t *testing.T, f *fixture, description string) (*Orchestrator, []models.Suggestion) {
	t.Helper()
	f.deps.Vision = visionFunc(func(ctx context.Context, image []byte, in string) (string, error) {
		return description, nil
	})
	o := f.orchestrator()
	if err := o.AnalyzeImage(context.Background(), []byte{1}, "issue.jpg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs := o.Messages()
	return o, msgs[len(msgs)-1].Suggestions
}

func TestWorkerSearchPresentsRankedResults(t *testing.T) {
	f := newFixture()
	var gotQuery, gotLocation string
	var gotMax int
	f.deps.Finder = finderFunc(func(ctx context.Context, query string, maxResults int, location string) ([]models.WorkerRecommendation, error) {
		gotQuery, gotMax, gotLocation = query, maxResults, location
		return []models.WorkerRecommendation{{ID: "w2", Name: "Kamal"}, {ID: "w1", Name: "Nimal"}}, nil
	})
	o, suggestions := analysedSession(t, f, "Cracked roof tile")
	before := len(o.Messages())

	if err := o.TapSuggestion(context.Background(), suggestions[0].ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "Cracked roof tile" || gotMax != 5 || gotLocation != "Colombo" {
		t.Errorf("unexpected search %q %d %q", gotQuery, gotMax, gotLocation)
	}
	h := f.rec.Handoffs()
	if len(h) != 1 || h[0].query != "Cracked roof tile" || len(h[0].workers) != 2 || h[0].workers[0].ID != "w2" {
		t.Fatalf("unexpected hand-off %+v", h)
	}
	if len(o.Messages()) != before {
		t.Errorf("ranked results must not append a message")
	}
	if o.Composing() {
		t.Errorf("composing must be cleared")
	}
}

func TestWorkerSearchWithoutDescriptionUsesDefaultQuery(t *testing.T) {
	f := newFixture()
	var gotQuery string
	f.deps.Finder = finderFunc(func(ctx context.Context, query string, maxResults int, location string) ([]models.WorkerRecommendation, error) {
		gotQuery = query
		return []models.WorkerRecommendation{{ID: "w"}}, nil
	})
	o, suggestions := analysedSession(t, f, "")

	if err := o.TapSuggestion(context.Background(), suggestions[2].ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "general maintenance" {
		t.Fatalf("expected default query, got %q", gotQuery)
	}
}

func TestWorkerSearchEmptyResult(t *testing.T) {
	f := newFixture()
	f.deps.Finder = finderFunc(func(ctx context.Context, query string, maxResults int, location string) ([]models.WorkerRecommendation, error) {
		return []models.WorkerRecommendation{}, nil
	})
	o, suggestions := analysedSession(t, f, "Broken gate hinge")

	if err := o.TapSuggestion(context.Background(), suggestions[0].ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs := o.Messages()
	if last := msgs[len(msgs)-1]; last.Text != NoWorkersReply || last.Origin != models.OriginAssistant {
		t.Fatalf("expected a no-workers reply, got %+v", last)
	}
	if len(f.rec.Handoffs()) != 0 || len(f.rec.Events()) != 0 {
		t.Errorf("empty results are neither handed off nor reported as errors")
	}
}

func TestWorkerSearchFailureFallsBackAndNotifies(t *testing.T) {
	f := newFixture()
	f.deps.Finder = finderFunc(func(ctx context.Context, query string, maxResults int, location string) ([]models.WorkerRecommendation, error) {
		return nil, apperror.BackendLogic("ML system not ready")
	})
	o, suggestions := analysedSession(t, f, "Damp wall")
	before := len(o.Messages())
	fallbacks := testutil.ToFloat64(metrics.FallbacksTotal)

	err := o.TapSuggestion(context.Background(), suggestions[0].ID)
	if apperror.KindOf(err) != apperror.KindBackendLogic {
		t.Fatalf("expected backend logic error, got %v", err)
	}
	h := f.rec.Handoffs()
	if len(h) != 1 || h[0].query != "Damp wall" || h[0].workers != nil {
		t.Fatalf("expected a keyword hand-off with the same query, got %+v", h)
	}
	ev := f.rec.Events()
	if len(ev) != 1 || ev[0].Kind != EventBackendLogic || ev[0].Message != "ML system not ready" {
		t.Fatalf("expected the error to be reported too, got %+v", ev)
	}
	if len(o.Messages()) != before || o.Composing() {
		t.Errorf("failure must append nothing and clear composing")
	}
	if got := testutil.ToFloat64(metrics.FallbacksTotal); got != fallbacks+1 {
		t.Errorf("expected fallback counter to increase, got %v -> %v", fallbacks, got)
	}
}

func TestDiyAdvice(t *testing.T) {
	f := newFixture()
	var sent []models.ContextTurn
	f.deps.Completer = completerFunc(func(ctx context.Context, turns []models.ContextTurn) (string, error) {
		sent = turns
		return "1. Turn off the water.", nil
	})
	o, suggestions := analysedSession(t, f, "Dripping kitchen tap")

	if err := o.TapSuggestion(context.Background(), suggestions[1].ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sent) != 2 || sent[0].Content != intelligence.DiySystemPrompt || !strings.Contains(sent[1].Content, "Dripping kitchen tap") {
		t.Fatalf("unexpected turns %+v", sent)
	}
	msgs := o.Messages()
	if last := msgs[len(msgs)-1]; last.Text != "1. Turn off the water." {
		t.Errorf("unexpected reply %+v", last)
	}
}

func TestDiyAdviceFailure(t *testing.T) {
	f := newFixture()
	f.deps.Completer = completerFunc(func(ctx context.Context, turns []models.ContextTurn) (string, error) {
		return "", context.DeadlineExceeded
	})
	o, suggestions := analysedSession(t, f, "Loose socket")
	before := len(o.Messages())

	if err := o.TapSuggestion(context.Background(), suggestions[1].ID); apperror.KindOf(err) != apperror.KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	if len(o.Messages()) != before {
		t.Errorf("failure must append nothing")
	}
	if ev := f.rec.Events(); len(ev) != 1 || ev[0].Kind != EventTransport {
		t.Errorf("unexpected events %+v", ev)
	}
}

func TestDiyAdviceEmptyReply(t *testing.T) {
	f := newFixture()
	f.deps.Completer = completerFunc(func(ctx context.Context, turns []models.ContextTurn) (string, error) {
		return " ", nil
	})
	o, suggestions := analysedSession(t, f, "Cracked tile")
	before := len(o.Messages())

	if err := o.TapSuggestion(context.Background(), suggestions[1].ID); apperror.KindOf(err) != apperror.KindBackendLogic {
		t.Fatalf("expected backend logic error, got %v", err)
	}
	if len(o.Messages()) != before {
		t.Errorf("an empty reply must append nothing")
	}
	if ev := f.rec.Events(); len(ev) != 1 || ev[0].Kind != EventBackendLogic {
		t.Errorf("unexpected events %+v", ev)
	}
	if o.Composing() {
		t.Errorf("composing must be cleared")
	}
}

func TestUnhandledSuggestion(t *testing.T) {
	f := newFixture()
	o := f.orchestrator()
	s := models.NewSuggestion("Book a video call", models.ActionUnhandled)
	o.store.Append(models.Message{Origin: models.OriginAssistant, Text: "options", Suggestions: []models.Suggestion{s}})
	before := len(o.Messages())

	if err := o.TapSuggestion(context.Background(), s.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ev := f.rec.Events()
	if len(ev) != 1 || ev[0].Kind != EventNotice || !strings.Contains(ev[0].Message, "Book a video call") {
		t.Fatalf("unexpected events %+v", ev)
	}
	if len(o.Messages()) != before {
		t.Errorf("unhandled taps append nothing")
	}
}

func TestTapUnknownSuggestion(t *testing.T) {
	o := newFixture().orchestrator()
	if err := o.TapSuggestion(context.Background(), "nope"); !errors.Is(err, ErrUnknownSuggestion) {
		t.Fatalf("expected ErrUnknownSuggestion, got %v", err)
	}
}
