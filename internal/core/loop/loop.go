// Package loop is the per-tick orchestration of the virtual camera: animate,
// measure, place the camera, then capture and show a frame while a streaming
// session is active.
package loop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeusync/virtualcam/internal/core/animation"
	"github.com/zeusync/virtualcam/internal/core/camera"
	"github.com/zeusync/virtualcam/internal/core/controls"
	"github.com/zeusync/virtualcam/internal/core/display"
	"github.com/zeusync/virtualcam/internal/core/events"
	"github.com/zeusync/virtualcam/internal/core/events/bus"
	"github.com/zeusync/virtualcam/internal/core/fault"
	"github.com/zeusync/virtualcam/internal/core/fps"
	"github.com/zeusync/virtualcam/internal/core/frame"
	"github.com/zeusync/virtualcam/internal/core/observability/log"
	"github.com/zeusync/virtualcam/internal/core/pacer"
	"github.com/zeusync/virtualcam/internal/core/render"
	"github.com/zeusync/virtualcam/internal/core/scene"
	"github.com/zeusync/virtualcam/internal/core/session"
)

const (
	eventSource = "loop"

	DefaultTickDT = 0.016
	DefaultWidth  = 800
	DefaultHeight = 600
)

// Presence reports whether a control client is attached.
type Presence interface {
	Connected() bool
}

type Config struct {
	// TickDT is the nominal simulated seconds per tick before the speed
	// multiplier.
	TickDT float64
	Width  int
	Height int
}

func (c Config) withDefaults() Config {
	if c.TickDT <= 0 {
		c.TickDT = DefaultTickDT
	}
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultHeight
	}
	return c
}

// Deps are the collaborators of a Loop. Sleeper and Now default to real
// time when nil.
type Deps struct {
	Panel    controls.Panel
	Presence Presence
	Animator *animation.Animator
	Camera   *camera.Model
	Session  *session.Session
	Capturer render.Capturer
	Pacer    pacer.Pacer
	Sleeper  pacer.Sleeper
	SimFPS   *fps.Counter
	Bus      bus.EventBus
	Logger   log.Log
	Now      func() time.Time
}

type Loop struct {
	cfg Config
	Deps

	ticks       uint64
	fingerprint uint64
	degenerate  bool
}

func New(cfg Config, deps Deps) *Loop {
	if deps.Sleeper == nil {
		deps.Sleeper = pacer.TimerSleeper{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = log.NewNop()
	}
	deps.Logger = deps.Logger.With(log.String("component", "loop"))
	return &Loop{cfg: cfg.withDefaults(), Deps: deps}
}

// Ticks is the number of completed ticks.
func (l *Loop) Ticks() uint64 { return l.ticks }

// Run ticks until ctx ends or the control client goes away. Both are fatal
// and returned as KindInterrupted or KindControlDisconnected. The display
// window is closed before Run returns.
func (l *Loop) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := l.Session.Shutdown(); cerr != nil {
			l.Logger.Warn("Failed to release display on exit", log.Error(cerr))
		}
		l.Logger.Info("Control loop stopped", log.Uint64("ticks", l.ticks), log.Error(err))
	}()

	l.Logger.Info("Control loop started",
		log.Float64("tick_dt", l.cfg.TickDT),
		log.Int("width", l.cfg.Width),
		log.Int("height", l.cfg.Height),
	)
	for {
		if cerr := ctx.Err(); cerr != nil {
			return fault.Interrupted(cerr)
		}
		if l.Presence != nil && !l.Presence.Connected() {
			return fault.New(fault.KindControlDisconnected, "control panel", fault.ErrControlClientLost)
		}

		delay, terr := l.Tick(ctx)
		if terr != nil {
			if fault.IsFatal(terr) {
				return terr
			}
			l.Logger.Warn("Tick failed", log.Error(terr))
		}

		if serr := l.Sleeper.Sleep(ctx, delay); serr != nil {
			return fault.Interrupted(serr)
		}
	}
}

// Tick runs one iteration and returns how long to sleep before the next.
// Capture and display failures are handled here; only errors the loop cannot
// recover from are returned.
func (l *Loop) Tick(ctx context.Context) (time.Duration, error) {
	start := l.Now()
	l.ticks++

	snap, err := controls.Read(l.Panel)
	if err != nil {
		return 0, fmt.Errorf("read controls: %w", err)
	}
	l.noteChanges(snap)

	if err = l.Animator.Step(l.cfg.TickDT, snap.Speed, snap.Paused); err != nil {
		return 0, fmt.Errorf("animate: %w", err)
	}

	if rate, updated := l.SimFPS.Tick(); updated {
		l.setControl(controls.SimFPS, fmt.Sprintf("%.1f", rate))
	}

	if err = l.Camera.Update(snap.Eye, snap.LookAt); err != nil {
		if !errors.Is(err, scene.ErrDegenerateView) {
			return 0, fmt.Errorf("update camera: %w", err)
		}
		if !l.degenerate {
			l.Logger.Warn("Camera eye equals look-at, keeping previous pose",
				log.Any("eye", snap.Eye),
			)
		}
		l.degenerate = true
	} else {
		l.degenerate = false
	}

	if err = l.Session.Sync(snap.Streaming); err != nil {
		if !fault.Is(err, fault.KindDisplayUnavailable) {
			return 0, err
		}
		l.displayFailed(err)
	}

	if l.Session.State() != session.Active {
		return l.Pacer.Idle(), nil
	}

	l.stream(ctx)
	// a closed window paces like any idle tick
	if l.Session.State() != session.Active {
		return l.Pacer.Idle(), nil
	}
	return l.Pacer.Delay(snap.TargetFPS, l.Now().Sub(start)), nil
}

// stream captures, annotates and shows one frame, then polls the cancel key.
func (l *Loop) stream(ctx context.Context) {
	buf, err := l.Capturer.Capture(ctx, l.Camera.Pose(), l.cfg.Width, l.cfg.Height)
	if err != nil {
		l.Logger.Warn("Capture failed, skipping frame", log.Error(err))
	} else if !l.show(buf) {
		return
	}

	if !l.Session.PollCancelKey() {
		return
	}
	if err = l.Session.Cancel(); err != nil {
		l.Logger.Warn("Failed to close display window", log.Error(err))
	}
	l.setControl(controls.StreamCamera, false)
}

// show returns false when the display failed and the session was stopped.
func (l *Loop) show(buf *frame.Buffer) bool {
	rate, updated := l.Session.Counter().Tick()
	if updated {
		l.setControl(controls.RenderFPS, fmt.Sprintf("%.1f", rate))
	}

	out, err := display.AnnotateBuffer(buf, l.Session.ChannelOrder(), rate, l.Animator.Time())
	if err != nil {
		l.Logger.Warn("Dropping malformed frame", log.Error(err))
		return true
	}
	if err = l.Session.Show(out); err != nil {
		l.displayFailed(err)
		return false
	}
	return true
}

// displayFailed forces the session idle and resets the toggle so the
// window is not reopened every tick.
func (l *Loop) displayFailed(err error) {
	if cerr := l.Session.Fail(err); cerr != nil {
		l.Logger.Warn("Failed to close display window", log.Error(cerr))
	}
	l.setControl(controls.StreamCamera, false)
	l.publishStatus(events.StatusDisplayError)
}

func (l *Loop) setControl(name string, value any) {
	if err := l.Panel.SetValue(name, value); err != nil {
		l.Logger.Warn("Failed to update control", log.String("control", name), log.Error(err))
	}
}

func (l *Loop) publishStatus(msg string) {
	if l.Bus == nil {
		l.setControl(controls.Status, msg)
		return
	}
	if err := l.Bus.Publish(events.NewStatus(eventSource, msg)); err != nil {
		l.Logger.Warn("Failed to publish status", log.Error(err))
	}
}

func (l *Loop) noteChanges(s controls.Snapshot) {
	fp := s.Fingerprint()
	if fp == l.fingerprint {
		return
	}
	if l.ticks > 1 {
		l.Logger.Debug("Controls changed",
			log.Bool("streaming", s.Streaming),
			log.Float64("target_fps", s.TargetFPS),
			log.Any("eye", s.Eye),
			log.Any("look_at", s.LookAt),
			log.Float64("speed", s.Speed),
			log.Bool("paused", s.Paused),
		)
	}
	l.fingerprint = fp
}
