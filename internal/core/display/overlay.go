package display

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/zeusync/virtualcam/internal/core/frame"
)

// Overlay text positions, baseline in pixels from the top-left corner.
const (
	overlayX     = 10
	fpsBaselineY = 30
	simBaselineY = 60
)

// Annotate draws the render rate and simulated time onto img in place.
func Annotate(img *image.RGBA, renderFPS, simTime float64) {
	dc := gg.NewContextForRGBA(img)
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetRGB(0, 1, 0)
	dc.DrawString(fmt.Sprintf("Render FPS: %.1f", renderFPS), overlayX, fpsBaselineY)

	dc.SetRGB(1, 1, 0)
	dc.DrawString(fmt.Sprintf("Time: %.2fs", simTime), overlayX, simBaselineY)
}

// AnnotateBuffer annotates buf and returns it in the requested order.
func AnnotateBuffer(buf *frame.Buffer, order frame.ChannelOrder, renderFPS, simTime float64) (*frame.Buffer, error) {
	img, err := buf.ToRGBA()
	if err != nil {
		return nil, err
	}
	Annotate(img, renderFPS, simTime)
	return frame.FromRGBA(img, order)
}
