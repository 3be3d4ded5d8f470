package render

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/virtualcam/internal/core/fault"
	"github.com/zeusync/virtualcam/internal/core/frame"
	"github.com/zeusync/virtualcam/internal/core/scene"
)

type staticSource []scene.Entity

func (s staticSource) Snapshot() []scene.Entity { return s }

var frontView = scene.CameraPose{
	Eye:    mgl64.Vec3{5, 0, 0},
	LookAt: mgl64.Vec3{0, 0, 0},
	FOV:    mgl64.DegToRad(60),
	Aspect: 4.0 / 3.0,
}

func sphere(at mgl64.Vec3, col scene.Color) scene.Entity {
	return scene.Entity{
		ID:         1,
		Kind:       scene.KindSphere,
		Pose:       scene.At(at),
		Appearance: scene.Appearance{Color: col, Radius: 1},
	}
}

func noGrid() Options {
	o := DefaultOptions()
	o.GridExtent = 0
	return o
}

func pixel(t *testing.T, b *frame.Buffer, x, y int) [3]byte {
	t.Helper()
	require.Equal(t, frame.RGB, b.Order)
	i := (y*b.Width + x) * 3
	return [3]byte{b.Pix[i], b.Pix[i+1], b.Pix[i+2]}
}

func assertColor(t *testing.T, want scene.Color, got [3]byte) {
	t.Helper()
	assert.InDelta(t, want.R*255, float64(got[0]), 2)
	assert.InDelta(t, want.G*255, float64(got[1]), 2)
	assert.InDelta(t, want.B*255, float64(got[2]), 2)
}

func TestCaptureReturnsRGBFrame(t *testing.T) {
	r := NewRasterizer(staticSource{}, noGrid())

	buf, err := r.Capture(context.Background(), frontView, 80, 60)
	require.NoError(t, err)
	require.NoError(t, buf.Validate())
	assert.Equal(t, 80, buf.Width)
	assert.Equal(t, 60, buf.Height)
	assert.Len(t, buf.Pix, 80*60*3)
	assertColor(t, noGrid().Background, pixel(t, buf, 0, 0))
}

func TestSphereInFrontIsDrawn(t *testing.T) {
	red := scene.Color{R: 0.8, G: 0.2, B: 0.2}
	r := NewRasterizer(staticSource{sphere(mgl64.Vec3{}, red)}, noGrid())

	buf, err := r.Capture(context.Background(), frontView, 80, 60)
	require.NoError(t, err)

	assertColor(t, red, pixel(t, buf, 40, 30))
	assertColor(t, noGrid().Background, pixel(t, buf, 1, 1))
}

func TestEntitiesBehindTheEyeAreCulled(t *testing.T) {
	r := NewRasterizer(staticSource{sphere(mgl64.Vec3{10, 0, 0}, scene.Color{R: 1})}, noGrid())

	buf, err := r.Capture(context.Background(), frontView, 80, 60)
	require.NoError(t, err)
	assertColor(t, noGrid().Background, pixel(t, buf, 40, 30))
}

func TestNearerEntityPaintsOver(t *testing.T) {
	far := sphere(mgl64.Vec3{-3, 0, 0}, scene.Color{B: 1})
	near := sphere(mgl64.Vec3{1, 0, 0}, scene.Color{G: 1})

	// order in the source must not matter
	for _, src := range []staticSource{{far, near}, {near, far}} {
		buf, err := NewRasterizer(src, noGrid()).Capture(context.Background(), frontView, 80, 60)
		require.NoError(t, err)
		assertColor(t, scene.Color{G: 1}, pixel(t, buf, 40, 30))
	}
}

func TestBoxAndFrameAreDrawn(t *testing.T) {
	box := scene.Entity{
		Kind:       scene.KindBox,
		Pose:       scene.At(mgl64.Vec3{}),
		Appearance: scene.Appearance{Color: scene.Color{R: 1, G: 1}, Dimensions: mgl64.Vec3{1, 1, 1}},
	}
	axes := scene.Entity{
		Kind:       scene.KindFrame,
		Pose:       scene.At(mgl64.Vec3{0, 0, 2}),
		Appearance: scene.Appearance{AxesLength: 1, AxesRadius: 0.02},
	}
	frustum := scene.Entity{Kind: scene.KindFrustum, Pose: scene.At(mgl64.Vec3{4, 0, 0})}

	buf, err := NewRasterizer(staticSource{box, axes, frustum}, noGrid()).Capture(context.Background(), frontView, 80, 60)
	require.NoError(t, err)

	center := pixel(t, buf, 40, 30)
	assert.Greater(t, center[0], byte(100))
	assert.Greater(t, center[1], byte(100))
	assert.Less(t, center[2], byte(50))
}

func TestCaptureFailures(t *testing.T) {
	r := NewRasterizer(staticSource{}, DefaultOptions())

	_, err := r.Capture(context.Background(), frontView, 0, 60)
	assert.True(t, fault.Is(err, fault.KindCaptureFailed))
	assert.ErrorIs(t, err, frame.ErrInvalidSize)

	degenerate := frontView
	degenerate.LookAt = degenerate.Eye
	_, err = r.Capture(context.Background(), degenerate, 80, 60)
	assert.True(t, fault.Is(err, fault.KindCaptureFailed))
	assert.ErrorIs(t, err, scene.ErrDegenerateView)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Capture(ctx, frontView, 80, 60)
	assert.True(t, fault.Is(err, fault.KindCaptureFailed))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGridDoesNotPanicWhenCrossingTheEye(t *testing.T) {
	low := scene.CameraPose{Eye: mgl64.Vec3{0, 0, 0.5}, LookAt: mgl64.Vec3{1, 0, 0.4}}
	_, err := NewRasterizer(staticSource{}, DefaultOptions()).Capture(context.Background(), low, 64, 48)
	assert.NoError(t, err)
}
