// Package animation advances the simulated clock and derives the poses of
// the moving entities from it.
package animation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Motion parameters of the demo scene.
const (
	OrbitRadius    = 2.0
	OrbitHeight    = 0.3
	OrbitAmplitude = 0.2

	BounceHeight = 2.0
	BounceFloor  = 0.25
)

// BouncePlane is the fixed horizontal position of the bouncing entity.
var BouncePlane = mgl64.Vec2{0, -2}

// OrbitPosition returns the orbit position at time t with the given phase
// applied to both the planar angle and the vertical oscillation.
func OrbitPosition(t, phase float64) mgl64.Vec3 {
	return mgl64.Vec3{
		OrbitRadius * math.Cos(t+phase),
		OrbitRadius * math.Sin(t+phase),
		OrbitHeight + OrbitAmplitude*math.Sin(2*t+phase),
	}
}

// Spin is a yaw by t radians about the vertical axis. Angles past 2π are
// fine; the quaternion double cover wraps them.
func Spin(t float64) mgl64.Quat {
	return mgl64.Quat{
		W: math.Cos(t / 2),
		V: mgl64.Vec3{0, 0, math.Sin(t / 2)},
	}
}

// Bounce returns the bouncing entity's position; its height never drops
// below BounceFloor.
func Bounce(t float64) mgl64.Vec3 {
	return mgl64.Vec3{
		BouncePlane.X(),
		BouncePlane.Y(),
		math.Abs(math.Sin(2*t))*BounceHeight + BounceFloor,
	}
}
