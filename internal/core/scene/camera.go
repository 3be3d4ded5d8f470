package scene

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var ErrDegenerateView = errors.New("camera eye and look-at coincide")

// The scene is Z-up.
var WorldUp = mgl64.Vec3{0, 0, 1}

const (
	nearPlane = 0.05
	farPlane  = 200.0
	viewEps   = 1e-9
)

// CameraPose is what a render capture is requested with.
type CameraPose struct {
	Eye    mgl64.Vec3
	LookAt mgl64.Vec3
	Up     mgl64.Vec3
	FOV    float64 // vertical, radians
	Aspect float64
}

// Validate rejects a pose whose view direction is undefined.
func (c CameraPose) Validate() error {
	if c.LookAt.Sub(c.Eye).Len() < viewEps {
		return ErrDegenerateView
	}
	return nil
}

// up returns c.Up, or WorldUp, swapped for +Y when the view direction is
// parallel to it.
func (c CameraPose) up() mgl64.Vec3 {
	up := c.Up
	if up.Len() < viewEps {
		up = WorldUp
	}
	dir := c.LookAt.Sub(c.Eye)
	if dir.Len() < viewEps {
		return up
	}
	if math.Abs(dir.Normalize().Dot(up.Normalize())) > 1-1e-6 {
		return mgl64.Vec3{0, 1, 0}
	}
	return up
}

func (c CameraPose) View() mgl64.Mat4 {
	return mgl64.LookAtV(c.Eye, c.LookAt, c.up())
}

func (c CameraPose) Projection() mgl64.Mat4 {
	fov := c.FOV
	if fov <= 0 || fov >= math.Pi {
		fov = mgl64.DegToRad(60)
	}
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 16.0 / 9.0
	}
	return mgl64.Perspective(fov, aspect, nearPlane, farPlane)
}
