// Package pacer decides how long the control loop sleeps after each tick.
package pacer

import (
	"context"
	"math"
	"time"
)

const (
	DefaultMinDelay  = time.Millisecond
	DefaultIdleDelay = 16 * time.Millisecond

	// MaxBudget caps the per-frame budget of very low targets.
	MaxBudget = time.Minute
)

// Pacer computes per-tick delays. MinDelay keeps a late loop from spinning
// without yielding; IdleDelay is used whenever nothing is being streamed.
type Pacer struct {
	MinDelay  time.Duration
	IdleDelay time.Duration
}

func New(minDelay, idleDelay time.Duration) Pacer {
	if minDelay <= 0 {
		minDelay = DefaultMinDelay
	}
	if idleDelay <= 0 {
		idleDelay = DefaultIdleDelay
	}
	return Pacer{MinDelay: minDelay, IdleDelay: idleDelay}
}

// Delay returns max(MinDelay, 1/targetFPS - spent), with the budget capped
// at MaxBudget. A non-positive or non-finite target falls back to the idle
// delay.
func (p Pacer) Delay(targetFPS float64, spent time.Duration) time.Duration {
	floor := p.floor()
	if targetFPS <= 0 || math.IsNaN(targetFPS) || math.IsInf(targetFPS, 0) {
		return max(floor, p.idle())
	}
	budget := MaxBudget
	if secs := 1 / targetFPS; secs < MaxBudget.Seconds() {
		budget = time.Duration(secs * float64(time.Second))
	}
	return max(floor, budget-max(spent, 0))
}

// Idle is the fixed delay used while not streaming.
func (p Pacer) Idle() time.Duration {
	return p.idle()
}

func (p Pacer) floor() time.Duration {
	if p.MinDelay <= 0 {
		return DefaultMinDelay
	}
	return p.MinDelay
}

func (p Pacer) idle() time.Duration {
	if p.IdleDelay <= 0 {
		return DefaultIdleDelay
	}
	return p.IdleDelay
}

// Sleeper suspends the loop. It returns early with ctx.Err() when ctx ends.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
