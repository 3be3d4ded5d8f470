package animation

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/zeusync/virtualcam/internal/core/scene"
)

var ErrInvalidStep = errors.New("invalid animation step")

// Clock is the simulated time. It only moves forward.
type Clock struct {
	SimulatedTime   float64
	SpeedMultiplier float64
	Paused          bool
}

// Entities are the handles the animator owns.
type Entities struct {
	OrbitA   scene.Handle
	OrbitB   scene.Handle
	Rotating scene.Handle
	Bouncing scene.Handle
}

// Animator writes the procedural poses. It is driven from a single
// goroutine.
type Animator struct {
	clock    Clock
	entities Entities
}

func New(entities Entities) *Animator {
	return &Animator{
		clock:    Clock{SpeedMultiplier: 1},
		entities: entities,
	}
}

// Clock returns a copy of the current clock.
func (a *Animator) Clock() Clock {
	return a.clock
}

func (a *Animator) Time() float64 {
	return a.clock.SimulatedTime
}

// Step applies this tick's speed and pause values, advances the clock by
// dt*speed and writes the new poses. When paused neither the clock nor any
// pose changes. A non-positive speed is rejected and leaves the clock as it
// was.
func (a *Animator) Step(dt, speed float64, paused bool) error {
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: dt=%v", ErrInvalidStep, dt)
	}
	a.clock.Paused = paused
	if paused {
		return nil
	}
	if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return fmt.Errorf("%w: speed=%v", ErrInvalidStep, speed)
	}

	a.clock.SpeedMultiplier = speed
	a.clock.SimulatedTime += dt * speed
	return a.apply(a.clock.SimulatedTime)
}

func (a *Animator) apply(t float64) error {
	return errors.Join(
		setPosition(a.entities.OrbitA, OrbitPosition(t, 0)),
		setPosition(a.entities.OrbitB, OrbitPosition(t, math.Pi)),
		setOrientation(a.entities.Rotating, Spin(t)),
		setPosition(a.entities.Bouncing, Bounce(t)),
	)
}

// Unbound handles are skipped so a partial scene can still be animated.
func setPosition(h scene.Handle, p mgl64.Vec3) error {
	if !h.IsBound() {
		return nil
	}
	if err := h.SetPosition(p); err != nil {
		return fmt.Errorf("%s: %w", h.Name(), err)
	}
	return nil
}

func setOrientation(h scene.Handle, q mgl64.Quat) error {
	if !h.IsBound() {
		return nil
	}
	if err := h.SetOrientation(q); err != nil {
		return fmt.Errorf("%s: %w", h.Name(), err)
	}
	return nil
}
