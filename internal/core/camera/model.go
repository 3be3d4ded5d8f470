// Package camera keeps the virtual camera pose in step with the user's
// controls. It never reads the animation clock.
package camera

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/zeusync/virtualcam/internal/core/scene"
)

// Model is the virtual camera. Eye and LookAt always differ.
type Model struct {
	eye    mgl64.Vec3
	lookAt mgl64.Vec3
	fov    float64
	aspect float64

	frustum scene.Handle
}

// New builds a camera. The initial pose must not be degenerate.
func New(eye, lookAt mgl64.Vec3, fov, aspect float64, frustum scene.Handle) (*Model, error) {
	m := &Model{fov: fov, aspect: aspect, frustum: frustum}
	if err := (scene.CameraPose{Eye: eye, LookAt: lookAt}).Validate(); err != nil {
		return nil, err
	}
	m.eye, m.lookAt = eye, lookAt
	return m, nil
}

// Update writes eye and look-at verbatim and moves the frustum marker to the
// eye. A degenerate pair (eye == look-at) is rejected with
// scene.ErrDegenerateView and the previous pose is kept, frustum included.
// The frustum orientation is never touched.
func (m *Model) Update(eye, lookAt mgl64.Vec3) error {
	if err := (scene.CameraPose{Eye: eye, LookAt: lookAt}).Validate(); err != nil {
		return err
	}
	m.eye, m.lookAt = eye, lookAt
	if !m.frustum.IsBound() {
		return nil
	}
	return m.frustum.SetPosition(eye)
}

func (m *Model) Eye() mgl64.Vec3    { return m.eye }
func (m *Model) LookAt() mgl64.Vec3 { return m.lookAt }
func (m *Model) FOV() float64       { return m.fov }
func (m *Model) Aspect() float64    { return m.aspect }

// Pose is the render request pose for the current tick.
func (m *Model) Pose() scene.CameraPose {
	return scene.CameraPose{
		Eye:    m.eye,
		LookAt: m.lookAt,
		Up:     scene.WorldUp,
		FOV:    m.fov,
		Aspect: m.aspect,
	}
}
