// Package chat coordinates one assistant conversation: the message log, photo analysis,
// suggestion taps and the worker search hand-off.
package chat

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"handyfix/models"
	"handyfix/services/apperror"
	"handyfix/services/intelligence"
	"handyfix/services/recommendation"
)

// Greeting seeds every conversation.
const Greeting = "Hi! I'm your home maintenance assistant. Describe the problem or send me a photo and I'll help you fix it or find the right worker."

// EmptyReplyMessage is reported when the language model answers with no text.
const EmptyReplyMessage = "The assistant returned an empty reply. Please try again."

// Dependencies wires an Orchestrator. Completer, Vision and Finder are required.
type Dependencies struct {
	Completer intelligence.TextCompleter
	Vision    intelligence.VisionDescriber
	Finder    recommendation.Finder
	Notifier  Notifier
	Presenter ResultsPresenter
	Issue     *IssueContext
	Params    intelligence.SamplingParams
	MaxTurns  int
	Location  string
	Logger    *zap.Logger
	Clock     func() time.Time
}

// Orchestrator is the top-level coordinator of one chat session.
type Orchestrator struct {
	store     *ConversationStore
	issue     *IssueContext
	state     *turnState
	completer intelligence.TextCompleter
	pipeline  *ImageAnalysisPipeline
	router    *SuggestionRouter
	params    intelligence.SamplingParams
	maxTurns  int
	logger    *zap.Logger
}

func NewOrchestrator(deps Dependencies) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	issue := deps.Issue
	if issue == nil {
		issue = NewIssueContext()
	}
	maxTurns := deps.MaxTurns
	if maxTurns == 0 {
		maxTurns = DefaultContextTurns
	}

	store := NewConversationStore(clock)
	store.Append(models.Message{
		Origin:    models.OriginAssistant,
		Text:      Greeting,
		Timestamp: clock().Add(-time.Second),
	})

	state := newTurnState(store, deps.Notifier, logger)
	return &Orchestrator{
		store:     store,
		issue:     issue,
		state:     state,
		completer: deps.Completer,
		pipeline: &ImageAnalysisPipeline{
			state:  state,
			vision: deps.Vision,
			issue:  issue,
			params: deps.Params,
			logger: logger.Named("image"),
		},
		router: &SuggestionRouter{
			state:     state,
			issue:     issue,
			finder:    deps.Finder,
			completer: deps.Completer,
			presenter: deps.Presenter,
			params:    deps.Params,
			location:  deps.Location,
			logger:    logger.Named("suggestions"),
		},
		params:   deps.Params,
		maxTurns: maxTurns,
		logger:   logger,
	}
}

// SendText sends a free-text user turn and appends the assistant's reply.
func (o *Orchestrator) SendText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	ctx, release, err := o.state.begin(ctx)
	if err != nil {
		return err
	}
	defer release()

	// The window is taken before the new turn so it is not counted twice.
	window := o.store.ContextWindow(o.maxTurns)
	if !o.state.append(models.Message{Origin: models.OriginUser, Text: text}) {
		o.state.finish(nil)
		return ErrSessionClosed
	}

	turns := make([]models.ContextTurn, 0, len(window)+2)
	turns = append(turns, models.ContextTurn{Role: models.RoleSystem, Content: intelligence.ChatSystemPrompt})
	turns = append(turns, window...)
	turns = append(turns, models.ContextTurn{Role: models.RoleUser, Content: text})

	reply, err := completeReply(ctx, o.completer, turns, o.params)
	if err != nil {
		o.state.fail(err)
		return err
	}
	msg := models.Message{Origin: models.OriginAssistant, Text: reply}
	if !o.state.finish(&msg) {
		return ErrSessionClosed
	}
	return nil
}

// AnalyzeImage runs a photo through the image pipeline.
func (o *Orchestrator) AnalyzeImage(ctx context.Context, image []byte, name string) error {
	return o.pipeline.Analyze(ctx, image, name)
}

// TapSuggestion routes a suggestion previously offered in this conversation.
func (o *Orchestrator) TapSuggestion(ctx context.Context, suggestionID string) error {
	if o.state.isClosed() {
		return ErrSessionClosed
	}
	s, ok := o.store.FindSuggestion(suggestionID)
	if !ok {
		return ErrUnknownSuggestion
	}
	o.logger.Debug("Suggestion tapped", zap.String("label", s.Label), zap.String("action", string(s.Action)))
	return o.router.Route(ctx, s)
}

func (o *Orchestrator) Messages() []models.Message {
	return o.store.Messages()
}

// MessagesSince returns the messages appended at or after index from.
func (o *Orchestrator) MessagesSince(from int) []models.Message {
	return o.store.Since(from)
}

func (o *Orchestrator) MessageCount() int {
	return o.store.Len()
}

func (o *Orchestrator) Composing() bool {
	return o.state.isComposing()
}

func (o *Orchestrator) Closed() bool {
	return o.state.isClosed()
}

func (o *Orchestrator) Issue() *IssueContext {
	return o.issue
}

// Close ends the session. Results of outstanding calls are discarded.
func (o *Orchestrator) Close() {
	o.state.close()
}

// completeReply runs a completion and rejects replies with no text, since every stored
// message must carry text or an image.
func completeReply(ctx context.Context, completer intelligence.TextCompleter, turns []models.ContextTurn, params intelligence.SamplingParams) (string, error) {
	reply, err := completer.Complete(ctx, turns, params)
	if err != nil {
		return "", apperror.Classify(err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", apperror.BackendLogic(EmptyReplyMessage)
	}
	return reply, nil
}
