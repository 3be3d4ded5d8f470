package render

import (
	"context"
	"image"
	"math"
	"slices"

	"github.com/fogleman/gg"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/virtualcam/internal/core/fault"
	"github.com/zeusync/virtualcam/internal/core/frame"
	"github.com/zeusync/virtualcam/internal/core/scene"
)

var _ Capturer = (*Rasterizer)(nil)

// minW is the smallest clip-space w still treated as in front of the eye.
const minW = 1e-3

type Options struct {
	Background scene.Color
	// GridExtent draws a unit ground grid on z=0 out to +-GridExtent.
	// Zero disables it.
	GridExtent float64
	GridColor  scene.Color
}

func DefaultOptions() Options {
	return Options{
		Background: scene.Color{R: 0.1, G: 0.1, B: 0.12},
		GridExtent: 5,
		GridColor:  scene.Color{R: 0.3, G: 0.3, B: 0.33},
	}
}

// Rasterizer is a painter's-algorithm software renderer. It is slow next to
// a GPU but needs no display server.
type Rasterizer struct {
	source Source
	opts   Options
}

func NewRasterizer(source Source, opts Options) *Rasterizer {
	return &Rasterizer{source: source, opts: opts}
}

// drawable is one primitive queued for painting, farthest first.
type drawable struct {
	depth float64
	paint func(dc *gg.Context)
}

// view bundles the per-capture projection state.
type view struct {
	eye    mgl64.Vec3
	vp     mgl64.Mat4
	focal  float64 // projection scale along y
	width  float64
	height float64
}

func (r *Rasterizer) Capture(ctx context.Context, pose scene.CameraPose, width, height int) (*frame.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault.New(fault.KindCaptureFailed, "capture canceled", err)
	}
	if width <= 0 || height <= 0 {
		return nil, fault.Newf(fault.KindCaptureFailed, frame.ErrInvalidSize, "capture %dx%d", width, height)
	}
	if err := pose.Validate(); err != nil {
		return nil, fault.New(fault.KindCaptureFailed, "capture pose", err)
	}

	// the requested image, not the frustum marker, decides the aspect
	pose.Aspect = float64(width) / float64(height)
	proj := pose.Projection()
	v := view{
		eye:    pose.Eye,
		vp:     proj.Mul4(pose.View()),
		focal:  proj.At(1, 1),
		width:  float64(width),
		height: float64(height),
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	dc := gg.NewContextForRGBA(img)
	bg := r.opts.Background
	dc.SetRGB(bg.R, bg.G, bg.B)
	dc.Clear()

	if r.opts.GridExtent > 0 {
		r.drawGrid(dc, v)
	}

	var queue []drawable
	for _, e := range r.source.Snapshot() {
		switch e.Kind {
		case scene.KindSphere:
			queue = appendSphere(queue, v, e)
		case scene.KindBox:
			queue = appendBox(queue, v, e)
		case scene.KindFrame:
			queue = appendFrame(queue, v, e)
		case scene.KindFrustum:
			// the frustum marks the capturing camera itself
		}
	}
	slices.SortStableFunc(queue, func(a, b drawable) int {
		switch {
		case a.depth > b.depth:
			return -1
		case a.depth < b.depth:
			return 1
		default:
			return 0
		}
	})
	for _, d := range queue {
		d.paint(dc)
	}

	if err := ctx.Err(); err != nil {
		return nil, fault.New(fault.KindCaptureFailed, "capture canceled", err)
	}
	buf, err := frame.FromRGBA(img, frame.RGB)
	if err != nil {
		return nil, fault.New(fault.KindCaptureFailed, "pack frame", err)
	}
	return buf, nil
}

func (v view) clip(p mgl64.Vec3) mgl64.Vec4 {
	return v.vp.Mul4x1(p.Vec4(1))
}

func (v view) toScreen(c mgl64.Vec4) (x, y float64) {
	nx, ny := c.X()/c.W(), c.Y()/c.W()
	return (nx + 1) * 0.5 * v.width, (1 - ny) * 0.5 * v.height
}

// project maps p to pixel coordinates. ok is false behind the eye.
func (v view) project(p mgl64.Vec3) (x, y, depth float64, ok bool) {
	c := v.clip(p)
	if c.W() < minW {
		return 0, 0, 0, false
	}
	x, y = v.toScreen(c)
	return x, y, c.W(), true
}

// segment clips a-b against the near side of the eye and returns the
// visible part in pixels.
func (v view) segment(a, b mgl64.Vec3) (x0, y0, x1, y1 float64, ok bool) {
	ca, cb := v.clip(a), v.clip(b)
	if ca.W() < minW && cb.W() < minW {
		return 0, 0, 0, 0, false
	}
	if ca.W() < minW {
		ca = ca.Add(cb.Sub(ca).Mul((minW - ca.W()) / (cb.W() - ca.W())))
	} else if cb.W() < minW {
		cb = cb.Add(ca.Sub(cb).Mul((minW - cb.W()) / (ca.W() - cb.W())))
	}
	x0, y0 = v.toScreen(ca)
	x1, y1 = v.toScreen(cb)
	return x0, y0, x1, y1, true
}

func (r *Rasterizer) drawGrid(dc *gg.Context, v view) {
	c := r.opts.GridColor
	dc.SetRGB(c.R, c.G, c.B)
	dc.SetLineWidth(1)
	ext := math.Floor(r.opts.GridExtent)
	for i := -ext; i <= ext; i++ {
		lines := [2][2]mgl64.Vec3{
			{{i, -ext, 0}, {i, ext, 0}},
			{{-ext, i, 0}, {ext, i, 0}},
		}
		for _, l := range lines {
			if x0, y0, x1, y1, ok := v.segment(l[0], l[1]); ok {
				dc.DrawLine(x0, y0, x1, y1)
				dc.Stroke()
			}
		}
	}
}

func appendSphere(queue []drawable, v view, e scene.Entity) []drawable {
	x, y, depth, ok := v.project(e.Pose.Position)
	if !ok {
		return queue
	}
	radius := e.Appearance.Radius * v.focal / depth * v.height / 2
	if radius < 0.5 {
		radius = 0.5
	}
	col := e.Appearance.Color
	return append(queue, drawable{depth: depth, paint: func(dc *gg.Context) {
		dc.DrawCircle(x, y, radius)
		dc.SetRGB(col.R, col.G, col.B)
		dc.FillPreserve()
		dc.SetRGB(col.R*0.5, col.G*0.5, col.B*0.5)
		dc.SetLineWidth(1)
		dc.Stroke()
	}})
}

// Corner indices of the faces of a box, outward normals first.
var boxFaces = [6]struct {
	normal  mgl64.Vec3
	corners [4]int
}{
	{mgl64.Vec3{-1, 0, 0}, [4]int{0, 2, 6, 4}},
	{mgl64.Vec3{1, 0, 0}, [4]int{1, 5, 7, 3}},
	{mgl64.Vec3{0, -1, 0}, [4]int{0, 4, 5, 1}},
	{mgl64.Vec3{0, 1, 0}, [4]int{2, 3, 7, 6}},
	{mgl64.Vec3{0, 0, -1}, [4]int{0, 1, 3, 2}},
	{mgl64.Vec3{0, 0, 1}, [4]int{4, 6, 7, 5}},
}

func boxCorners(e scene.Entity) [8]mgl64.Vec3 {
	half := e.Appearance.Dimensions.Mul(0.5)
	q := e.Pose.Orientation
	var out [8]mgl64.Vec3
	for i := range out {
		local := mgl64.Vec3{-half.X(), -half.Y(), -half.Z()}
		if i&1 != 0 {
			local[0] = half.X()
		}
		if i&2 != 0 {
			local[1] = half.Y()
		}
		if i&4 != 0 {
			local[2] = half.Z()
		}
		out[i] = e.Pose.Position.Add(q.Rotate(local))
	}
	return out
}

// appendBox queues the faces turned towards the eye, each shaded by how
// much it faces up.
func appendBox(queue []drawable, v view, e scene.Entity) []drawable {
	corners := boxCorners(e)
	col := e.Appearance.Color
	q := e.Pose.Orientation

	for _, f := range boxFaces {
		normal := q.Rotate(f.normal)
		var center mgl64.Vec3
		for _, ci := range f.corners {
			center = center.Add(corners[ci])
		}
		center = center.Mul(0.25)
		if normal.Dot(v.eye.Sub(center)) <= 0 {
			continue
		}

		var pts [4][2]float64
		visible := true
		for i, ci := range f.corners {
			x, y, _, ok := v.project(corners[ci])
			if !ok {
				visible = false
				break
			}
			pts[i] = [2]float64{x, y}
		}
		if !visible {
			continue
		}
		_, _, depth, _ := v.project(center)
		shade := 0.65 + 0.35*(normal.Z()+1)/2
		queue = append(queue, drawable{depth: depth, paint: func(dc *gg.Context) {
			dc.MoveTo(pts[0][0], pts[0][1])
			for _, p := range pts[1:] {
				dc.LineTo(p[0], p[1])
			}
			dc.ClosePath()
			dc.SetRGB(col.R*shade, col.G*shade, col.B*shade)
			dc.FillPreserve()
			dc.SetRGB(col.R*0.4, col.G*0.4, col.B*0.4)
			dc.SetLineWidth(1)
			dc.Stroke()
		}})
	}
	return queue
}

// appendFrame queues the three axes as red, green and blue lines.
func appendFrame(queue []drawable, v view, e scene.Entity) []drawable {
	length := e.Appearance.AxesLength
	if length <= 0 {
		length = 1
	}
	axes := [3]struct {
		dir mgl64.Vec3
		col scene.Color
	}{
		{mgl64.Vec3{1, 0, 0}, scene.Color{R: 1}},
		{mgl64.Vec3{0, 1, 0}, scene.Color{G: 1}},
		{mgl64.Vec3{0, 0, 1}, scene.Color{B: 1}},
	}
	origin := e.Pose.Position
	for _, a := range axes {
		tip := origin.Add(e.Pose.Orientation.Rotate(a.dir).Mul(length))
		x0, y0, x1, y1, ok := v.segment(origin, tip)
		if !ok {
			continue
		}
		_, _, depth, ok := v.project(origin.Add(tip).Mul(0.5))
		width := 1.0
		if ok {
			width = math.Max(1, 2*e.Appearance.AxesRadius*v.focal/depth*v.height/2)
		}
		col := a.col
		queue = append(queue, drawable{depth: depth, paint: func(dc *gg.Context) {
			dc.SetRGB(col.R, col.G, col.B)
			dc.SetLineWidth(width)
			dc.DrawLine(x0, y0, x1, y1)
			dc.Stroke()
		}})
	}
	return queue
}
