package fault

import "errors"

var (
	ErrInterrupted       = errors.New("interrupted")
	ErrNoControlClient   = errors.New("no control client connected")
	ErrControlClientLost = errors.New("control client disconnected")
)

// Interrupted wraps a context error as a KindInterrupted failure.
func Interrupted(cause error) *Error {
	if cause == nil {
		cause = ErrInterrupted
	}
	return New(KindInterrupted, "interrupted", cause)
}
