package components

import (
	"github.com/scenegraph/syncengine/internal/ecs"
	"github.com/scenegraph/syncengine/internal/netcode/wire"
)

// Transform2DTypeID is Transform2d's well-known TypeID. Unlike Transform3d,
// Transform2d has no special-cased handling anywhere in the sync engine
// (see DESIGN.md's Open Question resolution on the default placeholder
// transform) — it is provided for hosts whose scene is 2-D and goes through
// the fully generic AddComponent/SetField merge path like any other
// component type.
const Transform2DTypeID ecs.TypeID = 2

// Vec2 is a plain 2-float vector.
type Vec2 = [2]float32

// Transform2d is a 2-D analogue of Transform3d: position and scale as
// 2-vectors, rotation as a single angle in degrees.
type Transform2d struct {
	LocalPosition Vec2
	LocalRotation float32
	LocalScale    Vec2
}

// NewTransform2d returns a Transform2d with unit scale and zero
// position/rotation.
func NewTransform2d() *Transform2d {
	return &Transform2d{LocalScale: Vec2{1, 1}}
}

func (t *Transform2d) TypeID() ecs.TypeID { return Transform2DTypeID }

func (t *Transform2d) Serialize(w *wire.Writer) {
	w.WriteFloat32(t.LocalPosition[0])
	w.WriteFloat32(t.LocalPosition[1])
	w.WriteFloat32(t.LocalRotation)
	w.WriteFloat32(t.LocalScale[0])
	w.WriteFloat32(t.LocalScale[1])
}

func (t *Transform2d) Deserialize(r *wire.Reader) error {
	x, err := r.ReadFloat32()
	if err != nil {
		return err
	}
	y, err := r.ReadFloat32()
	if err != nil {
		return err
	}
	rot, err := r.ReadFloat32()
	if err != nil {
		return err
	}
	sx, err := r.ReadFloat32()
	if err != nil {
		return err
	}
	sy, err := r.ReadFloat32()
	if err != nil {
		return err
	}
	t.LocalPosition = Vec2{x, y}
	t.LocalRotation = rot
	t.LocalScale = Vec2{sx, sy}
	return nil
}
