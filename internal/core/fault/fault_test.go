package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	base := New(KindCaptureFailed, "capture", errors.New("backend busy"))
	wrapped := fmt.Errorf("tick 12: %w", base)

	assert.Equal(t, KindCaptureFailed, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindCaptureFailed))
	assert.False(t, IsFatal(wrapped))
	assert.Equal(t, "capture: backend busy", base.Error())
}

func TestFatalKinds(t *testing.T) {
	assert.True(t, New(KindControlDisconnected, "lost", nil).IsFatal())
	assert.True(t, Interrupted(context.Canceled).IsFatal())
	assert.True(t, New(KindDisplayUnavailable, "no window", nil).IsRecoverable())
	assert.False(t, New(KindDisplayUnavailable, "no window", nil).IsFatal())
}

func TestUnclassifiedErrorsAreFatal(t *testing.T) {
	assert.True(t, IsFatal(errors.New("mystery")))
	assert.False(t, IsFatal(nil))
	assert.Equal(t, KindUnknown, KindOf(errors.New("mystery")))
	assert.Equal(t, KindInterrupted, KindOf(fmt.Errorf("stop: %w", ErrInterrupted)))
}

func TestInterruptedKeepsCause(t *testing.T) {
	err := Interrupted(context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)

	err = Interrupted(nil)
	assert.ErrorIs(t, err, ErrInterrupted)
}

func TestWithContext(t *testing.T) {
	err := Newf(KindDisplayUnavailable, nil, "bind %s", ":9090").WithContext("addr", ":9090")
	assert.Equal(t, ":9090", err.Context["addr"])
	assert.Equal(t, "bind :9090", err.Error())
	assert.Equal(t, "display_unavailable", err.Kind.String())
}
