package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Handles are the entities the control loop moves. Static entities are not
// returned; nothing may move them.
type Handles struct {
	OrbitA   Handle
	OrbitB   Handle
	Rotating Handle
	Bouncing Handle
	Frustum  Handle
}

// FrustumSpec describes the camera frustum marker.
type FrustumSpec struct {
	Eye    mgl64.Vec3
	FOV    float64
	Aspect float64
}

// Populate creates the demo scene: a static box and world frame, two
// orbiting spheres, a spinning box, a bouncing sphere and the frustum marker
// of the virtual camera.
func Populate(b Backend, frustum FrustumSpec) (Handles, error) {
	var (
		h   Handles
		err error
	)

	create := func(name string, kind Kind, pose Pose, app Appearance, static bool) Handle {
		if err != nil {
			return Handle{}
		}
		var handle Handle
		handle, err = b.CreateEntity(name, kind, pose, app, static)
		if err != nil {
			err = fmt.Errorf("create %s: %w", name, err)
		}
		return handle
	}

	create("/box1", KindBox, At(mgl64.Vec3{0, 0, 0.5}), Appearance{
		Color:      Color{0.2, 0.8, 0.2},
		Dimensions: mgl64.Vec3{1, 1, 1},
	}, true)

	h.OrbitA = create("/moving_sphere1", KindSphere, At(mgl64.Vec3{2, 0, 0.3}), Appearance{
		Color:  Color{0.8, 0.2, 0.2},
		Radius: 0.3,
	}, false)

	h.OrbitB = create("/moving_sphere2", KindSphere, At(mgl64.Vec3{-2, 0, 0.3}), Appearance{
		Color:  Color{0.2, 0.2, 0.8},
		Radius: 0.3,
	}, false)

	h.Rotating = create("/rotating_box", KindBox, At(mgl64.Vec3{0, 2, 1}), Appearance{
		Color:      Color{0.8, 0.8, 0.2},
		Dimensions: mgl64.Vec3{0.5, 0.5, 2},
	}, false)

	h.Bouncing = create("/bouncing_sphere", KindSphere, At(mgl64.Vec3{0, -2, 0.25}), Appearance{
		Color:  Color{0.8, 0.2, 0.8},
		Radius: 0.25,
	}, false)

	create("/world", KindFrame, At(mgl64.Vec3{}), Appearance{
		AxesLength: 1,
		AxesRadius: 0.02,
	}, true)

	h.Frustum = create("/virtual_camera", KindFrustum, At(frustum.Eye), Appearance{
		Color:  Color{1, 1, 0},
		FOV:    frustum.FOV,
		Aspect: frustum.Aspect,
		Scale:  0.5,
	}, false)

	if err != nil {
		return Handles{}, err
	}
	return h, nil
}
