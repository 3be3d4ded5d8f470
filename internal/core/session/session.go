// Package session owns the display window of a streaming session and keeps
// it open exactly while the session is active.
package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/zeusync/virtualcam/internal/core/display"
	"github.com/zeusync/virtualcam/internal/core/events"
	"github.com/zeusync/virtualcam/internal/core/events/bus"
	"github.com/zeusync/virtualcam/internal/core/fault"
	"github.com/zeusync/virtualcam/internal/core/fps"
	"github.com/zeusync/virtualcam/internal/core/frame"
	"github.com/zeusync/virtualcam/internal/core/observability/log"
)

var ErrNotActive = errors.New("session is not active")

const eventSource = "session"

type State uint8

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Session is the Idle/Active state machine around a display.Sink. The
// window is open if and only if the state is Active.
type Session struct {
	mu         sync.Mutex
	state      State
	windowOpen bool
	id         uuid.UUID

	sink    display.Sink
	counter *fps.Counter
	bus     bus.EventBus
	logger  log.Log
}

// New returns an idle session. counter measures the render rate and is
// reset whenever a session starts.
func New(sink display.Sink, counter *fps.Counter, b bus.EventBus, logger log.Log) *Session {
	return &Session{
		sink:    sink,
		counter: counter,
		bus:     b,
		logger:  logger.With(log.String("component", "session")),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) WindowOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windowOpen
}

// ID identifies the current or most recent activation. It is uuid.Nil until
// the first one.
func (s *Session) ID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Session) Counter() *fps.Counter { return s.counter }

func (s *Session) ChannelOrder() frame.ChannelOrder { return s.sink.ChannelOrder() }

// Sync reconciles the state with the streaming toggle. Turning on opens the
// window; if that fails the session stays idle and a KindDisplayUnavailable
// error is returned. Turning off closes it.
func (s *Session) Sync(streaming bool) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch {
	case streaming && state == Idle:
		return s.start()
	case !streaming && state == Active:
		return s.stop(events.ReasonToggle, events.StatusStopped)
	default:
		return nil
	}
}

// Cancel stops an active session because the user closed the window.
func (s *Session) Cancel() error {
	return s.stop(events.ReasonCancelKey, events.StatusUserClose)
}

// Fail stops an active session after the display broke. The caller owns
// the status message since it also has to reset the toggle.
func (s *Session) Fail(cause error) error {
	s.logger.Warn("Display failed, stopping stream", log.Error(cause))
	return s.stop(events.ReasonDisplayError, "")
}

// Shutdown closes the window, if open, without touching the panel status.
func (s *Session) Shutdown() error {
	return s.stop(events.ReasonShutdown, "")
}

// Show presents buf in the open window.
func (s *Session) Show(buf *frame.Buffer) error {
	if s.State() != Active {
		return fault.New(fault.KindDisplayUnavailable, "show frame", ErrNotActive)
	}
	if err := s.sink.Show(buf); err != nil {
		if fault.KindOf(err) == fault.KindUnknown {
			return fault.New(fault.KindDisplayUnavailable, "show frame", err)
		}
		return err
	}
	return nil
}

// PollCancelKey is false while idle.
func (s *Session) PollCancelKey() bool {
	if s.State() != Active {
		return false
	}
	return s.sink.PollCancelKey()
}

func (s *Session) start() error {
	if err := s.sink.Open(); err != nil {
		if fault.KindOf(err) == fault.KindUnknown {
			err = fault.New(fault.KindDisplayUnavailable, "open display", err)
		}
		s.logger.Warn("Failed to open display window", log.Error(err))
		return err
	}

	id := uuid.New()
	s.mu.Lock()
	s.state = Active
	s.windowOpen = true
	s.id = id
	s.mu.Unlock()
	s.counter.Reset()

	s.logger.Info("Streaming started", log.String("session_id", id.String()))
	s.publish(events.NewSessionStarted(eventSource, id))
	s.publish(events.NewStatus(eventSource, events.StatusStreaming))
	return nil
}

// stop moves an active session to idle and closes the window exactly once.
// The state changes even if Close fails.
func (s *Session) stop(reason events.StopReason, status string) error {
	s.mu.Lock()
	if s.state != Active {
		s.mu.Unlock()
		return nil
	}
	s.state = Idle
	s.windowOpen = false
	id := s.id
	s.mu.Unlock()

	err := s.sink.Close()
	if err != nil {
		err = fault.New(fault.KindDisplayUnavailable, "close display", err)
		s.logger.Warn("Failed to close display window", log.Error(err))
	}

	s.logger.Info("Streaming stopped",
		log.String("session_id", id.String()),
		log.String("reason", string(reason)),
	)
	s.publish(events.NewSessionStopped(eventSource, id, reason))
	if status != "" {
		s.publish(events.NewStatus(eventSource, status))
	}
	return err
}

func (s *Session) publish(e bus.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(e); err != nil {
		s.logger.Warn("Failed to publish session event", log.String("type", e.Type()), log.Error(err))
	}
}
