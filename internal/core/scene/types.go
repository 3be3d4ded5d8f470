// Package scene is the entity store the animator and camera write poses into
// and the renderer reads from.
package scene

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrEntityNotFound = errors.New("entity not found")
	ErrStaticEntity   = errors.New("entity is static")
	ErrInvalidPose    = errors.New("invalid pose")
	ErrUnknownKind    = errors.New("unknown entity kind")
)

type EntityID uint64

type Kind uint8

const (
	KindBox Kind = iota + 1
	KindSphere
	KindFrame
	KindFrustum
)

func (k Kind) String() string {
	switch k {
	case KindBox:
		return "box"
	case KindSphere:
		return "sphere"
	case KindFrame:
		return "frame"
	case KindFrustum:
		return "frustum"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Pose is a position and a unit orientation quaternion.
type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// At returns a pose at p with identity orientation.
func At(p mgl64.Vec3) Pose {
	return Pose{Position: p, Orientation: mgl64.QuatIdent()}
}

func (p Pose) validate() error {
	for _, v := range p.Position {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: position %v", ErrInvalidPose, p.Position)
		}
	}
	if l := p.Orientation.Len(); l == 0 || math.IsNaN(l) {
		return fmt.Errorf("%w: orientation %v", ErrInvalidPose, p.Orientation)
	}
	return nil
}

type Color struct {
	R, G, B float64
}

// Appearance is fixed at creation. Only the fields relevant to the kind are
// read.
type Appearance struct {
	Color Color

	// KindBox
	Dimensions mgl64.Vec3
	// KindSphere
	Radius float64
	// KindFrame
	AxesLength float64
	AxesRadius float64
	// KindFrustum
	FOV    float64
	Aspect float64
	Scale  float64
}

// Entity is a read-only copy of a stored entity.
type Entity struct {
	ID         EntityID
	Name       string
	Kind       Kind
	Static     bool
	Pose       Pose
	Appearance Appearance
}
