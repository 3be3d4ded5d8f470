package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/virtualcam/internal/core/controls"
	"github.com/zeusync/virtualcam/internal/core/events/bus"
	"github.com/zeusync/virtualcam/internal/core/observability/log"
)

func TestBindStatusWritesPanel(t *testing.T) {
	board, err := controls.NewBoard(controls.Layout([3]float64{5, 5, 4}, [3]float64{}, 30)...)
	require.NoError(t, err)

	b := bus.New()
	b.AddObserver(LogObserver{Logger: log.NewNop()})
	_, err = BindStatus(b, board)
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewStatus("test", StatusStreaming)))
	v, _ := board.Value(controls.Status)
	assert.Equal(t, StatusStreaming, v)

	assert.Error(t, b.Publish(bus.NewEvent(TypeStatus, "test", "bare string", nil)))
	assert.EqualValues(t, 1, b.GetMetrics().Errors)
}

func TestSessionEventPayloads(t *testing.T) {
	id := uuid.New()

	started := NewSessionStarted("session", id)
	assert.Equal(t, TypeSessionStarted, started.Type())
	assert.Equal(t, SessionStarted{SessionID: id}, started.Data())

	stopped := NewSessionStopped("session", id, ReasonCancelKey)
	assert.Equal(t, TypeSessionStopped, stopped.Type())
	assert.Equal(t, SessionStopped{SessionID: id, Reason: ReasonCancelKey}, stopped.Data())
	assert.Equal(t, "cancel_key", stopped.Metadata()["reason"])
}
