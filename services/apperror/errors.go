// Package apperror classifies failures of the remote capabilities (language model,
// vision, speech, worker recommendation) into a small fixed set of kinds so that every
// call site can pick the same user-facing message and recovery behaviour.
package apperror

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type Kind string

const (
	// KindConfiguration is a missing or placeholder credential. Never retried.
	KindConfiguration Kind = "configuration"
	// KindTransport is a network failure, timeout or non-2xx status.
	KindTransport Kind = "transport"
	// KindBackendLogic is a reachable backend reporting failure or an unexpected payload.
	KindBackendLogic Kind = "backend_logic"
)

// Error is a classified failure. Error() returns only Message so that the backend's own
// wording reaches the user unchanged.
type Error struct {
	Kind    Kind
	Status  int
	Body    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindTransport}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func Configuration(message string) error {
	return &Error{Kind: KindConfiguration, Message: message}
}

func Transport(status int, body, message string, err error) error {
	if message == "" {
		message = "request failed"
		if status > 0 {
			message = fmt.Sprintf("request failed with status %d", status)
		}
	}
	return &Error{Kind: KindTransport, Status: status, Body: body, Message: message, Err: err}
}

func BackendLogic(message string) error {
	return &Error{Kind: KindBackendLogic, Message: message}
}

// As returns the classified error in err's chain, if any.
func As(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Classify returns err unchanged when it is already classified. Context deadlines,
// cancellations and net errors become transport errors; anything else is wrapped as a
// transport error too because it came out of a remote call.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Transport(0, "", "request timed out", err)
	case errors.Is(err, context.Canceled):
		return Transport(0, "", "request cancelled", err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Transport(0, "", "request timed out", err)
	}
	return Transport(0, "", err.Error(), err)
}

// IsTimeout reports whether err was caused by a deadline or a network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// KindOf reports the kind of err, defaulting to transport for unclassified errors.
func KindOf(err error) Kind {
	if ce, ok := As(err); ok {
		return ce.Kind
	}
	return KindTransport
}

// UserMessage renders a distinct human-readable notice per kind.
func UserMessage(err error) string {
	ce, ok := As(Classify(err))
	if !ok {
		return "Something went wrong. Please try again."
	}
	switch ce.Kind {
	case KindConfiguration:
		return "The assistant is not configured: " + ce.Message + ". Please ask the operator to fix the setup."
	case KindBackendLogic:
		return ce.Message
	default:
		if ce.Status > 0 {
			return fmt.Sprintf("Could not reach the service (status %d): %s. Please try again.", ce.Status, ce.Message)
		}
		return "Could not reach the service: " + ce.Message + ". Please try again."
	}
}
