// Package events defines the notifications a streaming session publishes
// and the subscribers that turn them into panel updates and log lines.
package events

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/zeusync/virtualcam/internal/core/controls"
	"github.com/zeusync/virtualcam/internal/core/events/bus"
	"github.com/zeusync/virtualcam/internal/core/observability/log"
)

const (
	TypeSessionStarted = "session.started"
	TypeSessionStopped = "session.stopped"
	TypeStatus         = "status"
)

// StopReason says why a session went back to idle.
type StopReason string

const (
	ReasonToggle       StopReason = "toggle"
	ReasonCancelKey    StopReason = "cancel_key"
	ReasonDisplayError StopReason = "display_error"
	ReasonShutdown     StopReason = "shutdown"
)

// Status messages shown in the panel.
const (
	StatusWaiting   = "Waiting for connection..."
	StatusConnected = "Connected. Enable streaming to start."
	StatusStreaming = "Streaming to window..."
	StatusStopped   = "Streaming stopped"
	StatusUserClose = "Streaming stopped (user closed window)"

	StatusDisplayError = "Streaming stopped (display unavailable)"
)

type SessionStarted struct {
	SessionID uuid.UUID
}

type SessionStopped struct {
	SessionID uuid.UUID
	Reason    StopReason
}

type Status struct {
	Message string
}

func NewSessionStarted(source string, id uuid.UUID) bus.Event {
	return bus.NewEvent(TypeSessionStarted, source, SessionStarted{SessionID: id}, nil)
}

func NewSessionStopped(source string, id uuid.UUID, reason StopReason) bus.Event {
	return bus.NewEvent(TypeSessionStopped, source, SessionStopped{SessionID: id, Reason: reason},
		map[string]any{"reason": string(reason)})
}

func NewStatus(source, message string) bus.Event {
	return bus.NewEvent(TypeStatus, source, Status{Message: message}, nil)
}

// BindStatus copies every status event into the Status control of p.
func BindStatus(b bus.EventBus, p controls.Panel) (bus.Subscription, error) {
	return b.Subscribe(TypeStatus, func(e bus.Event) error {
		st, ok := e.Data().(Status)
		if !ok {
			return fmt.Errorf("status event carries %T", e.Data())
		}
		return p.SetValue(controls.Status, st.Message)
	})
}

// LogObserver logs every published event at debug level and failed
// deliveries as warnings.
type LogObserver struct {
	Logger log.Log
}

var _ bus.EventBusObserver = LogObserver{}

func (o LogObserver) OnPublish(eventType string, event bus.Event) {
	o.Logger.Debug("Event published",
		log.String("type", eventType),
		log.String("source", event.Source()),
		log.Any("data", event.Data()),
	)
}

func (o LogObserver) OnDelivered(eventType string, handlers int, err error, durationMicros int64) {
	if err == nil {
		return
	}
	o.Logger.Warn("Event handler failed",
		log.String("type", eventType),
		log.Int("handlers", handlers),
		log.Int64("duration_us", durationMicros),
		log.Error(err),
	)
}
