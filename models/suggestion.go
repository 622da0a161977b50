package models

import "github.com/google/uuid"

// SuggestionAction is the closed set of transitions a suggestion tap can fire.
type SuggestionAction string

const (
	ActionWorkerSearch SuggestionAction = "worker_search"
	ActionDiyAdvice    SuggestionAction = "diy_advice"
	ActionUnhandled    SuggestionAction = "unhandled"
)

const (
	LabelFindWorkers       = "Find skilled workers for this issue"
	LabelDiyTips           = "Get DIY repair tips"
	LabelNearbyContractors = "Search nearby contractors"
)

// Suggestion is a follow-up option attached to an assistant message. Its action is
// decided when the suggestion is created and never re-derived from the label.
type Suggestion struct {
	ID     string           `json:"id"`
	Label  string           `json:"label"`
	Action SuggestionAction `json:"action"`
}

// NewSuggestion builds a suggestion with an explicit action.
func NewSuggestion(label string, action SuggestionAction) Suggestion {
	return Suggestion{ID: uuid.NewString(), Label: label, Action: action}
}

// IssueSuggestions are offered after an image has been analysed.
func IssueSuggestions() []Suggestion {
	return []Suggestion{
		NewSuggestion(LabelFindWorkers, ActionWorkerSearch),
		NewSuggestion(LabelDiyTips, ActionDiyAdvice),
		NewSuggestion(LabelNearbyContractors, ActionWorkerSearch),
	}
}
