package controls

import (
	"fmt"
	"math"
	"sync"
)

var _ Panel = (*Board)(nil)

// Listener is called after a control value changed. It runs on the writer's
// goroutine without the board lock held. Listeners see changes in the order
// they were stored and must not write the board themselves.
type Listener func(name string, value any)

// Board is a thread-safe Panel. Control clients write it from network
// goroutines while the loop reads it once per tick.
type Board struct {
	// notifyMu is held from store to the end of dispatch
	notifyMu sync.Mutex

	mu        sync.RWMutex
	controls  map[string]*Control
	order     []string
	listeners []Listener
}

func NewBoard(controls ...Control) (*Board, error) {
	b := &Board{controls: make(map[string]*Control, len(controls))}
	for _, c := range controls {
		if _, exists := b.controls[c.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, c.Name)
		}
		normalized, err := normalize(&c, c.Value)
		if err != nil {
			return nil, err
		}
		c.Value = normalized
		cc := c
		b.controls[c.Name] = &cc
		b.order = append(b.order, c.Name)
	}
	return b, nil
}

// OnChange registers a listener for every accepted change.
func (b *Board) OnChange(l Listener) {
	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()
}

func (b *Board) Value(name string) (any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, ok := b.controls[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownControl, name)
	}
	return c.Value, nil
}

// SetValue stores a value after clamping sliders to their range and step.
// Listeners are only notified when the stored value actually changes.
func (b *Board) SetValue(name string, value any) error {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	b.mu.Lock()
	c, ok := b.controls[name]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownControl, name)
	}
	normalized, err := normalize(c, value)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	changed := c.Value != normalized
	c.Value = normalized
	listeners := append([]Listener(nil), b.listeners...)
	b.mu.Unlock()

	if changed {
		for _, l := range listeners {
			l(name, normalized)
		}
	}
	return nil
}

// SetFromClient is SetValue for remote clients: disabled controls are
// rejected.
func (b *Board) SetFromClient(name string, value any) error {
	b.mu.RLock()
	c, ok := b.controls[name]
	disabled := ok && c.Disabled
	b.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownControl, name)
	}
	if disabled {
		return fmt.Errorf("%w: %s", ErrReadOnly, name)
	}
	return b.SetValue(name, value)
}

// Controls returns copies of all controls in declaration order.
func (b *Board) Controls() []Control {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Control, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, *b.controls[name])
	}
	return out
}

// WithControls calls fn with the current controls while no change can be
// stored or dispatched. Every change fn does not see reaches the listeners
// after fn returns.
func (b *Board) WithControls(fn func([]Control) error) error {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()
	return fn(b.Controls())
}

func normalize(c *Control, value any) (any, error) {
	switch c.Kind {
	case KindSlider:
		f, ok := toFloat(value)
		if !ok || math.IsNaN(f) {
			return nil, fmt.Errorf("%w: %s wants a number, got %T", ErrTypeMismatch, c.Name, value)
		}
		return snap(f, c.Min, c.Max, c.Step), nil
	case KindCheckbox:
		v, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s wants a bool, got %T", ErrTypeMismatch, c.Name, value)
		}
		return v, nil
	case KindText:
		v, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s wants a string, got %T", ErrTypeMismatch, c.Name, value)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %s has kind %q", ErrTypeMismatch, c.Name, c.Kind)
	}
}

// JSON numbers arrive as float64; Go callers may pass ints.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func snap(v, lo, hi, step float64) float64 {
	if hi > lo {
		v = math.Min(math.Max(v, lo), hi)
	}
	if step > 0 {
		v = lo + math.Round((v-lo)/step)*step
		// keep 0.1-step sliders free of 0.30000000000000004 artifacts
		v = math.Round(v*1e9) / 1e9
		if hi > lo {
			v = math.Min(v, hi)
		}
	}
	return v
}
