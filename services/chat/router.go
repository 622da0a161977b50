package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"handyfix/metrics"
	"handyfix/models"
	"handyfix/services/apperror"
	"handyfix/services/intelligence"
	"handyfix/services/recommendation"
)

// NoWorkersReply is appended when a worker search succeeds with no matches.
const NoWorkersReply = "I couldn't find any workers for this issue. Try describing the problem differently or adding more detail."

// SuggestionRouter runs the transition attached to a tapped suggestion.
type SuggestionRouter struct {
	state     *turnState
	issue     *IssueContext
	finder    recommendation.Finder
	completer intelligence.TextCompleter
	presenter ResultsPresenter
	params    intelligence.SamplingParams
	location  string
	logger    *zap.Logger
}

// Route fires exactly one transition for s.
func (r *SuggestionRouter) Route(ctx context.Context, s models.Suggestion) error {
	switch s.Action {
	case models.ActionWorkerSearch:
		return r.searchWorkers(ctx)
	case models.ActionDiyAdvice:
		return r.diyAdvice(ctx)
	case models.ActionUnhandled:
		return r.unhandled(s)
	default:
		r.logger.Warn("Unknown suggestion action", zap.String("action", string(s.Action)))
		return r.unhandled(s)
	}
}

func (r *SuggestionRouter) searchWorkers(ctx context.Context) error {
	ctx, release, err := r.state.begin(ctx)
	if err != nil {
		return err
	}
	defer release()

	// One snapshot serves both the ranked and the keyword path.
	query := recommendation.NormalizeQuery(r.issue.LastDescription())

	workers, err := r.finder.FindWorkers(ctx, query, recommendation.DefaultMaxResults, r.location)
	if err != nil {
		err = apperror.Classify(err)
		if r.state.isClosed() {
			r.state.fail(err)
			return ErrSessionClosed
		}
		metrics.FallbacksTotal.Inc()
		r.logger.Warn("Worker search failed, falling back to keyword search", zap.String("query", query), zap.Error(err))
		if r.presenter != nil {
			r.presenter.PresentResults(query, nil)
		}
		r.state.fail(err)
		return err
	}

	if len(workers) == 0 {
		reply := models.Message{Origin: models.OriginAssistant, Text: NoWorkersReply}
		if !r.state.finish(&reply) {
			return ErrSessionClosed
		}
		return nil
	}

	if !r.state.finish(nil) {
		return ErrSessionClosed
	}
	r.logger.Info("Presenting ranked workers", zap.String("query", query), zap.Int("count", len(workers)))
	if r.presenter != nil {
		r.presenter.PresentResults(query, workers)
	}
	return nil
}

func (r *SuggestionRouter) diyAdvice(ctx context.Context) error {
	ctx, release, err := r.state.begin(ctx)
	if err != nil {
		return err
	}
	defer release()

	turns := []models.ContextTurn{
		{Role: models.RoleSystem, Content: intelligence.DiySystemPrompt},
		{Role: models.RoleUser, Content: intelligence.DiyRequest(r.issue.LastDescription())},
	}
	advice, err := completeReply(ctx, r.completer, turns, r.params)
	if err != nil {
		r.state.fail(err)
		return err
	}
	reply := models.Message{Origin: models.OriginAssistant, Text: advice}
	if !r.state.finish(&reply) {
		return ErrSessionClosed
	}
	return nil
}

func (r *SuggestionRouter) unhandled(s models.Suggestion) error {
	if r.state.isClosed() {
		return ErrSessionClosed
	}
	if r.state.isComposing() {
		return ErrComposing
	}
	r.state.notice(fmt.Sprintf("%q is not available yet.", s.Label))
	return nil
}
