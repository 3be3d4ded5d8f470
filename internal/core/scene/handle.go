package scene

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

var ErrNilHandle = errors.New("handle is not bound to a scene")

// Handle refers to one entity and only exposes pose writes. Whoever holds
// the handle owns the entity's motion.
type Handle struct {
	id     EntityID
	kind   Kind
	name   string
	writer PoseWriter
}

// NewHandle binds an existing entity id to a writer. Backends other than
// Graph use it to hand out handles.
func NewHandle(id EntityID, kind Kind, name string, writer PoseWriter) Handle {
	return Handle{id: id, kind: kind, name: name, writer: writer}
}

func (h Handle) ID() EntityID  { return h.id }
func (h Handle) Kind() Kind    { return h.kind }
func (h Handle) Name() string  { return h.name }
func (h Handle) IsBound() bool { return h.writer != nil }

func (h Handle) SetPosition(p mgl64.Vec3) error {
	if h.writer == nil {
		return ErrNilHandle
	}
	return h.writer.SetPose(h.id, &p, nil)
}

func (h Handle) SetOrientation(q mgl64.Quat) error {
	if h.writer == nil {
		return ErrNilHandle
	}
	return h.writer.SetPose(h.id, nil, &q)
}
