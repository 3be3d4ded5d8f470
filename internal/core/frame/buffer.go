// Package frame holds the pixel buffers passed from render capture to the
// display sink.
package frame

import (
	"errors"
	"fmt"
	"image"
)

var (
	ErrInvalidSize  = errors.New("invalid frame size")
	ErrInvalidOrder = errors.New("invalid channel order")
	ErrShortBuffer  = errors.New("pixel data shorter than frame size")
)

// ChannelOrder is the byte layout of one pixel.
type ChannelOrder uint8

const (
	RGB ChannelOrder = iota
	BGR
	RGBA
	BGRA
)

func (o ChannelOrder) String() string {
	switch o {
	case RGB:
		return "RGB"
	case BGR:
		return "BGR"
	case RGBA:
		return "RGBA"
	case BGRA:
		return "BGRA"
	default:
		return fmt.Sprintf("ChannelOrder(%d)", uint8(o))
	}
}

// Channels returns the bytes per pixel, or 0 for an unknown order.
func (o ChannelOrder) Channels() int {
	switch o {
	case RGB, BGR:
		return 3
	case RGBA, BGRA:
		return 4
	default:
		return 0
	}
}

// offsets returns the byte offsets of red, green, blue and alpha (-1 when
// absent) inside one pixel.
func (o ChannelOrder) offsets() (r, g, b, a int) {
	switch o {
	case BGR:
		return 2, 1, 0, -1
	case RGBA:
		return 0, 1, 2, 3
	case BGRA:
		return 2, 1, 0, 3
	default:
		return 0, 1, 2, -1
	}
}

// Buffer is a tightly packed, row-major pixel buffer.
type Buffer struct {
	Width  int
	Height int
	Order  ChannelOrder
	Pix    []byte
}

// New allocates a zeroed buffer.
func New(width, height int, order ChannelOrder) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if order.Channels() == 0 {
		return nil, ErrInvalidOrder
	}
	return &Buffer{
		Width:  width,
		Height: height,
		Order:  order,
		Pix:    make([]byte, width*height*order.Channels()),
	}, nil
}

// Validate checks that Pix covers Width x Height pixels of Order.
func (b *Buffer) Validate() error {
	if b == nil || b.Width <= 0 || b.Height <= 0 {
		return ErrInvalidSize
	}
	ch := b.Order.Channels()
	if ch == 0 {
		return ErrInvalidOrder
	}
	if len(b.Pix) < b.Width*b.Height*ch {
		return ErrShortBuffer
	}
	return nil
}

// Convert returns a copy of the buffer in the requested channel order.
// Alpha is dropped when the target has none and set opaque when the source
// has none.
func (b *Buffer) Convert(order ChannelOrder) (*Buffer, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	out, err := New(b.Width, b.Height, order)
	if err != nil {
		return nil, err
	}

	srcCh, dstCh := b.Order.Channels(), order.Channels()
	sr, sg, sb, sa := b.Order.offsets()
	dr, dg, db, da := order.offsets()

	n := b.Width * b.Height
	for i := 0; i < n; i++ {
		s := b.Pix[i*srcCh : i*srcCh+srcCh]
		d := out.Pix[i*dstCh : i*dstCh+dstCh]
		d[dr], d[dg], d[db] = s[sr], s[sg], s[sb]
		if da >= 0 {
			if sa >= 0 {
				d[da] = s[sa]
			} else {
				d[da] = 0xff
			}
		}
	}
	return out, nil
}

// ToRGBA converts the buffer to an image the drawing and encoding code can
// use.
func (b *Buffer) ToRGBA() (*image.RGBA, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.Order == RGBA {
		img := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
		copy(img.Pix, b.Pix)
		return img, nil
	}
	converted, err := b.Convert(RGBA)
	if err != nil {
		return nil, err
	}
	return &image.RGBA{
		Pix:    converted.Pix,
		Stride: b.Width * 4,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}, nil
}

// FromRGBA packs img into a buffer of the given order.
func FromRGBA(img *image.RGBA, order ChannelOrder) (*Buffer, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	src, err := New(w, h, RGBA)
	if err != nil {
		return nil, err
	}
	for y := 0; y < h; y++ {
		row := img.Pix[img.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		copy(src.Pix[y*w*4:(y+1)*w*4], row[:w*4])
	}
	if order == RGBA {
		return src, nil
	}
	return src.Convert(order)
}
