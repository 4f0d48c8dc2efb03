// Package components provides the concrete component types this repo ships
// out of the box: the transform types. The translation buffer and the
// receiver's client-side SetField path know Transform3d by name.
//
// Grounded on original_source/.../Math/Transform3d.hpp (field set: local
// position/rotation/scale as 3-vectors, dirty-tracking via a pending-sync
// flag). The original's parent-chain model matrix composition
// (GetModelMatrix) is rendering-only and out of scope (spec.md §1
// non-goals); only the replicated fields are ported.
package components

import (
	"github.com/scenegraph/syncengine/internal/ecs"
	"github.com/scenegraph/syncengine/internal/netcode/wire"
)

// Transform3DTypeID is the well-known TypeID for Transform3d, registered by
// RegisterDefaults. On the client, the receiver's SetField handler routes
// updates for this id through the translation buffer instead of applying
// them at once. AddComponent onto an existing Transform3d goes through the
// generic registry.Merge like any other type; since position, rotation and
// scale are its only fields, that merge sets exactly those three.
const Transform3DTypeID ecs.TypeID = 1

// Vec3 is a plain 3-float vector, used for position, Euler rotation, and
// scale alike.
type Vec3 = [3]float32

// Transform3d is the standard spatial component: local position, rotation
// (Euler angles in degrees, matching original_source's representation),
// and scale, relative to a parent transform (parent composition, like the
// original's GetModelMatrix, is a rendering concern and lives in the
// hosting game, not here).
type Transform3d struct {
	LocalPosition Vec3
	LocalRotation Vec3
	LocalScale    Vec3
}

// NewTransform3d returns a Transform3d with unit scale and zero
// position/rotation, the common default for a freshly created object.
func NewTransform3d() *Transform3d {
	return &Transform3d{LocalScale: Vec3{1, 1, 1}}
}

func (t *Transform3d) TypeID() ecs.TypeID { return Transform3DTypeID }

func (t *Transform3d) Serialize(w *wire.Writer) {
	w.WriteVec3(t.LocalPosition)
	w.WriteVec3(t.LocalRotation)
	w.WriteVec3(t.LocalScale)
}

func (t *Transform3d) Deserialize(r *wire.Reader) error {
	pos, err := r.ReadVec3()
	if err != nil {
		return err
	}
	rot, err := r.ReadVec3()
	if err != nil {
		return err
	}
	scale, err := r.ReadVec3()
	if err != nil {
		return err
	}
	t.LocalPosition = pos
	t.LocalRotation = rot
	t.LocalScale = scale
	return nil
}

// Note on original_source's SetLocalPosition(value, update=false): the C++
// setter both assigns the field and, by default, triggers dirty-marking;
// the false overload exists purely to skip that side effect for
// locally-applied remote writes (translation buffer). In Go a plain field
// assignment (t.LocalPosition = v) never has side effects, so that
// distinction doesn't need a method at all — internal/sync/translation
// assigns LocalPosition/LocalRotation/LocalScale directly. The receiver
// instead merges through registry.Merge and then marks the component dirty
// itself (deferred by the apply guard, so it is relayed to other peers).
