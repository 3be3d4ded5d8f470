package scene

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// PoseWriter is the only mutation the core performs on entities after
// creation.
type PoseWriter interface {
	SetPose(id EntityID, position *mgl64.Vec3, orientation *mgl64.Quat) error
}

// Backend creates entities and accepts pose writes.
type Backend interface {
	PoseWriter
	CreateEntity(name string, kind Kind, pose Pose, appearance Appearance, static bool) (Handle, error)
}

var _ Backend = (*Graph)(nil)

// Graph is a thread-safe in-memory Backend. Renderers read it through
// Snapshot.
type Graph struct {
	mu       sync.RWMutex
	entities map[EntityID]*Entity
	order    []EntityID
	nextID   EntityID
	version  uint64
}

func NewGraph() *Graph {
	return &Graph{
		entities: make(map[EntityID]*Entity),
	}
}

func (g *Graph) CreateEntity(name string, kind Kind, pose Pose, appearance Appearance, static bool) (Handle, error) {
	if kind < KindBox || kind > KindFrustum {
		return Handle{}, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
	if err := pose.validate(); err != nil {
		return Handle{}, err
	}
	pose.Orientation = pose.Orientation.Normalize()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextID++
	id := g.nextID
	g.entities[id] = &Entity{
		ID:         id,
		Name:       name,
		Kind:       kind,
		Static:     static,
		Pose:       pose,
		Appearance: appearance,
	}
	g.order = append(g.order, id)
	g.version++

	return Handle{id: id, kind: kind, name: name, writer: g}, nil
}

// SetPose updates the position and/or orientation of a non-static entity.
// A nil argument leaves that part unchanged.
func (g *Graph) SetPose(id EntityID, position *mgl64.Vec3, orientation *mgl64.Quat) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entities[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrEntityNotFound, id)
	}
	if e.Static {
		return fmt.Errorf("%w: %s", ErrStaticEntity, e.Name)
	}

	next := e.Pose
	if position != nil {
		next.Position = *position
	}
	if orientation != nil {
		next.Orientation = *orientation
	}
	if err := next.validate(); err != nil {
		return err
	}
	next.Orientation = next.Orientation.Normalize()
	e.Pose = next
	g.version++
	return nil
}

// Entity returns a copy of one entity.
func (g *Graph) Entity(id EntityID) (Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.entities[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// Snapshot returns copies of all entities in creation order.
func (g *Graph) Snapshot() []Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Entity, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.entities[id])
	}
	return out
}

// Version increments on every successful mutation.
func (g *Graph) Version() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.version
}

func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}
