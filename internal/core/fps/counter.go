// Package fps estimates frame rates from tick timestamps.
package fps

import "time"

// Mode selects how a Counter turns samples into a rate.
type Mode uint8

const (
	// Windowed recomputes the rate and restarts the count whenever the
	// elapsed window exceeds the configured duration.
	Windowed Mode = iota
	// Cumulative recomputes the rate on every sample as the average since
	// the last Reset.
	Cumulative
)

func (m Mode) String() string {
	if m == Cumulative {
		return "cumulative"
	}
	return "windowed"
}

// DefaultWindow is the refresh period of the simulation counter.
const DefaultWindow = 500 * time.Millisecond

// Counter is a single rate estimator. It is not safe for concurrent use; the
// control loop owns its counters.
type Counter struct {
	mode   Mode
	window time.Duration
	now    func() time.Time

	count int
	start time.Time
	rate  float64
}

// New creates a counter whose window starts now. A nil clock uses time.Now.
// window is ignored in Cumulative mode.
func New(mode Mode, window time.Duration, now func() time.Time) *Counter {
	if now == nil {
		now = time.Now
	}
	if window <= 0 {
		window = DefaultWindow
	}
	c := &Counter{mode: mode, window: window, now: now}
	c.start = now()
	return c
}

// NewWindowed is the simulation-tick counter.
func NewWindowed(window time.Duration, now func() time.Time) *Counter {
	return New(Windowed, window, now)
}

// NewCumulative is the render counter.
func NewCumulative(now func() time.Time) *Counter {
	return New(Cumulative, 0, now)
}

// Tick records one sample. It returns the current rate and whether the rate
// was recomputed by this call.
func (c *Counter) Tick() (float64, bool) {
	c.count++
	now := c.now()
	elapsed := now.Sub(c.start).Seconds()

	switch c.mode {
	case Cumulative:
		if elapsed <= 0 {
			return c.rate, false
		}
		c.rate = float64(c.count) / elapsed
		return c.rate, true
	default:
		if elapsed <= c.window.Seconds() {
			return c.rate, false
		}
		c.rate = float64(c.count) / elapsed
		c.count = 0
		c.start = now
		return c.rate, true
	}
}

// Reset zeroes the sample count and restarts the window. The last rate is
// kept until the next recompute.
func (c *Counter) Reset() {
	c.count = 0
	c.start = c.now()
}

func (c *Counter) Rate() float64                 { return c.rate }
func (c *Counter) Count() int                    { return c.count }
func (c *Counter) WindowStart() time.Time        { return c.start }
func (c *Counter) Mode() Mode                    { return c.mode }
func (c *Counter) WindowDuration() time.Duration { return c.window }
