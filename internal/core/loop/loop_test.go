package loop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/virtualcam/internal/core/animation"
	"github.com/zeusync/virtualcam/internal/core/camera"
	"github.com/zeusync/virtualcam/internal/core/controls"
	"github.com/zeusync/virtualcam/internal/core/events"
	"github.com/zeusync/virtualcam/internal/core/events/bus"
	"github.com/zeusync/virtualcam/internal/core/fault"
	"github.com/zeusync/virtualcam/internal/core/fps"
	"github.com/zeusync/virtualcam/internal/core/frame"
	"github.com/zeusync/virtualcam/internal/core/observability/log"
	"github.com/zeusync/virtualcam/internal/core/pacer"
	"github.com/zeusync/virtualcam/internal/core/scene"
	"github.com/zeusync/virtualcam/internal/core/session"
)

type fakeSink struct {
	opens, closes, shows int
	open                 bool
	openErr, showErr     error
	cancelNext           bool
	lastOrder            frame.ChannelOrder
}

func (f *fakeSink) Open() error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opens++
	f.open = true
	return nil
}

func (f *fakeSink) Close() error {
	f.closes++
	f.open = false
	return nil
}

func (f *fakeSink) Show(buf *frame.Buffer) error {
	if f.showErr != nil {
		return f.showErr
	}
	f.shows++
	f.lastOrder = buf.Order
	return nil
}

func (f *fakeSink) PollCancelKey() bool {
	c := f.cancelNext
	f.cancelNext = false
	return c
}

func (f *fakeSink) ChannelOrder() frame.ChannelOrder { return frame.BGR }

// fakeCapturer checks that every capture sees the poses of the current
// clock value.
type fakeCapturer struct {
	t        *testing.T
	graph    *scene.Graph
	animator *animation.Animator
	orbitA   scene.EntityID
	err      error
	captures int
}

func (f *fakeCapturer) Capture(_ context.Context, pose scene.CameraPose, w, h int) (*frame.Buffer, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.captures++
	e, ok := f.graph.Entity(f.orbitA)
	require.True(f.t, ok)
	want := animation.OrbitPosition(f.animator.Time(), 0)
	assert.InDelta(f.t, want.X(), e.Pose.Position.X(), 1e-9)
	assert.InDelta(f.t, want.Z(), e.Pose.Position.Z(), 1e-9)
	require.NoError(f.t, pose.Validate())
	return frame.New(w, h, frame.RGB)
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// recordingSleeper advances the fake clock instead of sleeping and cancels
// the run after limit sleeps.
type recordingSleeper struct {
	clock  *fakeClock
	delays []time.Duration
	limit  int
	cancel context.CancelFunc
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	s.clock.Advance(d)
	if s.limit > 0 && len(s.delays) >= s.limit && s.cancel != nil {
		s.cancel()
	}
	return ctx.Err()
}

type presence struct{ connected atomic.Bool }

func (p *presence) Connected() bool { return p.connected.Load() }

type harness struct {
	loop     *Loop
	board    *controls.Board
	graph    *scene.Graph
	handles  scene.Handles
	animator *animation.Animator
	camera   *camera.Model
	session  *session.Session
	sink     *fakeSink
	capturer *fakeCapturer
	clock    *fakeClock
	sleeper  *recordingSleeper
	presence *presence
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	eye, lookAt := mgl64.Vec3{5, 5, 4}, mgl64.Vec3{0, 0, 0.5}

	board, err := controls.NewBoard(controls.Layout(eye, lookAt, 30)...)
	require.NoError(t, err)

	graph := scene.NewGraph()
	handles, err := scene.Populate(graph, scene.FrustumSpec{Eye: eye, FOV: mgl64.DegToRad(60), Aspect: 16.0 / 9.0})
	require.NoError(t, err)

	animator := animation.New(animation.Entities{
		OrbitA:   handles.OrbitA,
		OrbitB:   handles.OrbitB,
		Rotating: handles.Rotating,
		Bouncing: handles.Bouncing,
	})
	cam, err := camera.New(eye, lookAt, mgl64.DegToRad(60), 16.0/9.0, handles.Frustum)
	require.NoError(t, err)

	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := bus.New()
	_, err = events.BindStatus(b, board)
	require.NoError(t, err)

	sink := &fakeSink{}
	sess := session.New(sink, fps.NewCumulative(clock.Now), b, log.NewNop())
	capturer := &fakeCapturer{t: t, graph: graph, animator: animator, orbitA: handles.OrbitA.ID()}
	sleeper := &recordingSleeper{clock: clock}
	p := &presence{}
	p.connected.Store(true)

	l := New(Config{Width: 32, Height: 24}, Deps{
		Panel:    board,
		Presence: p,
		Animator: animator,
		Camera:   cam,
		Session:  sess,
		Capturer: capturer,
		Pacer:    pacer.New(time.Millisecond, 16*time.Millisecond),
		Sleeper:  sleeper,
		SimFPS:   fps.NewWindowed(fps.DefaultWindow, clock.Now),
		Bus:      b,
		Logger:   log.NewNop(),
		Now:      clock.Now,
	})

	return &harness{
		loop: l, board: board, graph: graph, handles: handles, animator: animator,
		camera: cam, session: sess, sink: sink, capturer: capturer, clock: clock,
		sleeper: sleeper, presence: p,
	}
}

func (h *harness) tick(t *testing.T) time.Duration {
	t.Helper()
	d, err := h.loop.Tick(context.Background())
	require.NoError(t, err)
	return d
}

func (h *harness) value(name string) any {
	v, _ := h.board.Value(name)
	return v
}

func TestIdleTicksAnimateWithoutStreaming(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 5; i++ {
		assert.Equal(t, 16*time.Millisecond, h.tick(t))
	}
	assert.InDelta(t, 5*DefaultTickDT, h.animator.Time(), 1e-12)
	assert.Zero(t, h.sink.opens)
	assert.Zero(t, h.capturer.captures)
	assert.Equal(t, session.Idle, h.session.State())
	assert.EqualValues(t, 5, h.loop.Ticks())
}

func TestStreamingTogglesOpenAndCloseOnce(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.board.SetValue(controls.StreamCamera, true))
	for i := 0; i < 3; i++ {
		d := h.tick(t)
		assert.Equal(t, time.Second/30, d)
		assert.Equal(t, h.session.State() == session.Active, h.session.WindowOpen())
		h.clock.Advance(d)
	}
	assert.Equal(t, 1, h.sink.opens)
	assert.Equal(t, 3, h.sink.shows)
	assert.Equal(t, frame.BGR, h.sink.lastOrder)
	assert.Equal(t, events.StatusStreaming, h.value(controls.Status))

	require.NoError(t, h.board.SetValue(controls.StreamCamera, false))
	assert.Equal(t, 16*time.Millisecond, h.tick(t))
	h.tick(t)

	assert.Equal(t, 1, h.sink.closes)
	assert.False(t, h.session.WindowOpen())
	assert.Equal(t, events.StatusStopped, h.value(controls.Status))
}

func TestPacingAccountsForTimeSpent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.board.SetValue(controls.StreamCamera, true))
	require.NoError(t, h.board.SetValue(controls.TargetFPS, 10.0))

	slow := &slowCapturer{inner: h.capturer, clock: h.clock, cost: 30 * time.Millisecond}
	h.loop.Capturer = slow

	assert.Equal(t, 70*time.Millisecond, h.tick(t))

	slow.cost = time.Second
	assert.Equal(t, time.Millisecond, h.tick(t))
}

type slowCapturer struct {
	inner *fakeCapturer
	clock *fakeClock
	cost  time.Duration
}

func (s *slowCapturer) Capture(ctx context.Context, pose scene.CameraPose, w, h int) (*frame.Buffer, error) {
	s.clock.Advance(s.cost)
	return s.inner.Capture(ctx, pose, w, h)
}

func TestCancelKeyStopsSessionAndResetsToggle(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.board.SetValue(controls.StreamCamera, true))
	h.tick(t)

	h.sink.cancelNext = true
	assert.Equal(t, 16*time.Millisecond, h.tick(t), "the closing tick still sleeps")

	assert.Equal(t, session.Idle, h.session.State())
	assert.False(t, h.session.WindowOpen())
	assert.Equal(t, 1, h.sink.closes)
	assert.Equal(t, false, h.value(controls.StreamCamera))
	assert.Equal(t, events.StatusUserClose, h.value(controls.Status))

	// the loop keeps running idle and does not reopen
	assert.Equal(t, 16*time.Millisecond, h.tick(t))
	assert.Equal(t, 1, h.sink.opens)
}

func TestCaptureFailureSkipsFrame(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.board.SetValue(controls.StreamCamera, true))
	h.capturer.err = fault.New(fault.KindCaptureFailed, "capture", errors.New("renderer busy"))

	for i := 0; i < 3; i++ {
		h.tick(t)
	}
	assert.Zero(t, h.sink.shows)
	assert.Equal(t, session.Active, h.session.State())
	assert.Equal(t, true, h.value(controls.StreamCamera))

	h.capturer.err = nil
	h.tick(t)
	assert.Equal(t, 1, h.sink.shows)
}

func TestDisplayFailureFallsBackToIdle(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.board.SetValue(controls.StreamCamera, true))
	h.tick(t)

	h.sink.showErr = errors.New("window destroyed")
	assert.Equal(t, 16*time.Millisecond, h.tick(t))

	assert.Equal(t, session.Idle, h.session.State())
	assert.False(t, h.session.WindowOpen())
	assert.Equal(t, 1, h.sink.closes)
	assert.Equal(t, false, h.value(controls.StreamCamera))
	assert.Equal(t, events.StatusDisplayError, h.value(controls.Status))
}

func TestOpenFailureResetsToggle(t *testing.T) {
	h := newHarness(t)
	h.sink.openErr = errors.New("no display")
	require.NoError(t, h.board.SetValue(controls.StreamCamera, true))

	assert.Equal(t, 16*time.Millisecond, h.tick(t))
	assert.Equal(t, session.Idle, h.session.State())
	assert.Equal(t, false, h.value(controls.StreamCamera))
	assert.Equal(t, events.StatusDisplayError, h.value(controls.Status))
	assert.Zero(t, h.capturer.captures)
}

func TestPausedTicksFreezeScene(t *testing.T) {
	h := newHarness(t)
	h.tick(t)
	before := h.graph.Snapshot()
	simTime := h.animator.Time()

	require.NoError(t, h.board.SetValue(controls.Pause, true))
	for i := 0; i < 10; i++ {
		h.tick(t)
	}
	assert.Equal(t, simTime, h.animator.Time())
	assert.Equal(t, before, h.graph.Snapshot())
}

func TestCameraFollowsSlidersAndIgnoresDegenerateView(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.board.SetValue(controls.CameraX, 1.0))
	h.tick(t)
	assert.Equal(t, mgl64.Vec3{1, 5, 4}, h.camera.Eye())
	frustum, _ := h.graph.Entity(h.handles.Frustum.ID())
	assert.Equal(t, mgl64.Vec3{1, 5, 4}, frustum.Pose.Position)

	for name, v := range map[string]float64{
		controls.CameraX: 0, controls.CameraY: 0, controls.CameraZ: 0.5,
	} {
		require.NoError(t, h.board.SetValue(name, v))
	}
	h.tick(t)
	assert.Equal(t, mgl64.Vec3{1, 5, 4}, h.camera.Eye())
}

func TestSimulationRateIsPublished(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 31; i++ {
		h.clock.Advance(time.Second / 60)
		h.tick(t)
	}
	assert.Equal(t, "60.0", h.value(controls.SimFPS))
}

func TestRenderRateIsPublished(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.board.SetValue(controls.StreamCamera, true))

	for i := 0; i < 11; i++ {
		h.clock.Advance(100 * time.Millisecond)
		h.tick(t)
	}
	// eleven frames, the first at session start, over one second
	assert.Equal(t, "11.0", h.value(controls.RenderFPS))
}

func TestRunStopsOnInterruptAndClosesWindow(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.board.SetValue(controls.StreamCamera, true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.sleeper.limit, h.sleeper.cancel = 5, cancel

	err := h.loop.Run(ctx)
	assert.True(t, fault.Is(err, fault.KindInterrupted))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, h.sleeper.delays, 5)
	assert.Equal(t, 1, h.sink.opens)
	assert.Equal(t, 1, h.sink.closes)
	assert.False(t, h.session.WindowOpen())
}

func TestRunStopsWhenControlClientLeaves(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.board.SetValue(controls.StreamCamera, true))

	h.loop.Sleeper = sleeperFunc(func(context.Context, time.Duration) error {
		if h.loop.Ticks() == 3 {
			h.presence.connected.Store(false)
		}
		return nil
	})

	err := h.loop.Run(context.Background())
	assert.True(t, fault.Is(err, fault.KindControlDisconnected))
	assert.True(t, fault.IsFatal(err))
	assert.EqualValues(t, 3, h.loop.Ticks())
	assert.Equal(t, 1, h.sink.closes)
}

type sleeperFunc func(ctx context.Context, d time.Duration) error

func (f sleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

func TestReadErrorsAreFatal(t *testing.T) {
	h := newHarness(t)
	board, err := controls.NewBoard(controls.Checkbox(controls.FolderCamera, controls.StreamCamera, false))
	require.NoError(t, err)
	h.loop.Panel = board

	err = h.loop.Run(context.Background())
	assert.ErrorIs(t, err, controls.ErrUnknownControl)
	assert.True(t, fault.IsFatal(err))
}
