// Package render turns the scene into pixel frames seen from the virtual
// camera.
package render

import (
	"context"

	"github.com/zeusync/virtualcam/internal/core/frame"
	"github.com/zeusync/virtualcam/internal/core/scene"
)

// Capturer produces one frame of the scene as seen from pose. Frames come
// back in RGB order.
type Capturer interface {
	Capture(ctx context.Context, pose scene.CameraPose, width, height int) (*frame.Buffer, error)
}

// Source is where a capturer reads entities from. *scene.Graph satisfies it.
type Source interface {
	Snapshot() []scene.Entity
}

var _ Source = (*scene.Graph)(nil)
