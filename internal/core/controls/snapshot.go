package controls

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl64"
)

// Snapshot is every control the loop needs for one tick, read in one go.
type Snapshot struct {
	Streaming bool
	TargetFPS float64
	Eye       mgl64.Vec3
	LookAt    mgl64.Vec3
	Speed     float64
	Paused    bool
}

// Read takes this tick's snapshot. Values are never cached between ticks.
func Read(p Panel) (Snapshot, error) {
	var (
		s    Snapshot
		errs []error
	)
	readFloat := func(name string) float64 {
		f, err := Float(p, name)
		if err != nil {
			errs = append(errs, err)
		}
		return f
	}
	readBool := func(name string) bool {
		b, err := Bool(p, name)
		if err != nil {
			errs = append(errs, err)
		}
		return b
	}

	s.Streaming = readBool(StreamCamera)
	s.TargetFPS = readFloat(TargetFPS)
	s.Eye = mgl64.Vec3{readFloat(CameraX), readFloat(CameraY), readFloat(CameraZ)}
	s.LookAt = mgl64.Vec3{readFloat(LookAtX), readFloat(LookAtY), readFloat(LookAtZ)}
	s.Speed = readFloat(Speed)
	s.Paused = readBool(Pause)

	if len(errs) > 0 {
		return Snapshot{}, errors.Join(errs...)
	}
	return s, nil
}

// Fingerprint hashes the snapshot so the loop can tell whether a user
// changed anything since the previous tick.
func (s Snapshot) Fingerprint() uint64 {
	var buf [8*8 + 2]byte
	put := func(i int, f float64) {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	put(0, s.TargetFPS)
	put(1, s.Eye.X())
	put(2, s.Eye.Y())
	put(3, s.Eye.Z())
	put(4, s.LookAt.X())
	put(5, s.LookAt.Y())
	put(6, s.LookAt.Z())
	put(7, s.Speed)
	if s.Streaming {
		buf[64] = 1
	}
	if s.Paused {
		buf[65] = 1
	}
	return xxhash.Sum64(buf[:])
}
