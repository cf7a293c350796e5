// Package errors provides typed stage outcomes for the turn pipeline.
// Each pipeline stage converts its local failures into an Error with a
// Kind; the orchestrator is the only place that decides what the user
// sees as a consequence.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure by which stage produced it and how the
// orchestrator should react to it.
type Kind int

const (
	Unknown Kind = iota
	HardwareAbsent
	DetectorInit
	CaptureFailed
	NoSpeech
	TranscribeFailed
	ConversationFailed
	RenderInterrupted
	ConfigInvalid
)

func (k Kind) String() string {
	switch k {
	case HardwareAbsent:
		return "hardware_absent"
	case DetectorInit:
		return "detector_init"
	case CaptureFailed:
		return "capture_failed"
	case NoSpeech:
		return "no_speech"
	case TranscribeFailed:
		return "transcribe_failed"
	case ConversationFailed:
		return "conversation_failed"
	case RenderInterrupted:
		return "render_interrupted"
	case ConfigInvalid:
		return "config_invalid"
	default:
		return "unknown"
	}
}

// Error carries a Kind alongside the message and optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error with the given kind and message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a kind and message.
func Wrap(err error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

// KindOf extracts the Kind from an error chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsRecoverable reports whether the orchestrator should reset to
// listening rather than terminate. Only configuration errors are
// considered fatal: the installation is long-running and every
// per-turn fault must leave it serving.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	return KindOf(err) != ConfigInvalid
}
