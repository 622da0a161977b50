package chat

import (
	"handyfix/models"
	"handyfix/services/apperror"
)

// EventKind tags a user-visible event. Error events use the apperror kinds.
type EventKind string

const (
	EventConfiguration EventKind = EventKind(apperror.KindConfiguration)
	EventTransport     EventKind = EventKind(apperror.KindTransport)
	EventBackendLogic  EventKind = EventKind(apperror.KindBackendLogic)
	EventNotice        EventKind = "notice"
)

// Event is one fire-and-forget notification for the presentation layer.
type Event struct {
	Kind    EventKind
	Message string
}

// Notifier receives user-visible events. Implementations must not block.
type Notifier interface {
	Notify(Event)
}

type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// ResultsPresenter receives worker search hand-offs. A nil workers slice asks the
// presenter to run its own plain keyword search for query.
type ResultsPresenter interface {
	PresentResults(query string, workers []models.WorkerRecommendation)
}

type PresenterFunc func(query string, workers []models.WorkerRecommendation)

func (f PresenterFunc) PresentResults(query string, workers []models.WorkerRecommendation) {
	f(query, workers)
}

func errorEvent(err error) Event {
	return Event{
		Kind:    EventKind(apperror.KindOf(err)),
		Message: apperror.UserMessage(err),
	}
}
