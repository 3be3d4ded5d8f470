// Package fault classifies the failures the control loop has to react to.
package fault

import (
	"errors"
	"fmt"
	"time"
)

// Kind represents the class of a failure and decides how the loop reacts.
type Kind int

const (
	KindUnknown Kind = iota

	// KindCaptureFailed is a transient render failure: skip the frame.
	KindCaptureFailed
	// KindDisplayUnavailable means the display sink cannot open or show:
	// the session falls back to idle.
	KindDisplayUnavailable
	// KindControlDisconnected means no control client is attached.
	KindControlDisconnected
	// KindInterrupted is a user interrupt.
	KindInterrupted
)

func (k Kind) String() string {
	switch k {
	case KindCaptureFailed:
		return "capture_failed"
	case KindDisplayUnavailable:
		return "display_unavailable"
	case KindControlDisconnected:
		return "control_disconnected"
	case KindInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Error carries a Kind with an optional cause and key/value context.
type Error struct {
	Kind      Kind
	Message   string
	Cause     error
	Context   map[string]any
	Timestamp time.Time
}

func New(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Cause:     cause,
		Context:   make(map[string]any),
		Timestamp: time.Now(),
	}
}

func Newf(kind Kind, cause error, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...), cause)
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds a key/value pair and returns the receiver.
func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// IsFatal reports whether the loop must stop.
func (e *Error) IsFatal() bool {
	switch e.Kind {
	case KindControlDisconnected, KindInterrupted:
		return true
	default:
		return false
	}
}

// IsRecoverable reports whether the loop handles the failure locally and
// keeps ticking.
func (e *Error) IsRecoverable() bool {
	switch e.Kind {
	case KindCaptureFailed, KindDisplayUnavailable:
		return true
	default:
		return false
	}
}

// KindOf returns the Kind of the first *Error in err's chain. Context
// cancellation maps to KindInterrupted.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, ErrInterrupted) {
		return KindInterrupted
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsFatal reports whether err must stop the loop. Unclassified errors are
// treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.IsFatal()
	}
	return true
}
