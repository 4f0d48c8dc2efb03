// Package ecs defines the minimal component contract shared by the type
// registry, the merger, and every concrete component type. It has no
// dependency on scene, sync, or transport so that all three can depend on it
// without an import cycle.
package ecs

import "github.com/scenegraph/syncengine/internal/netcode/wire"

// TypeID identifies a component's wire/type-registry identity. It is stable
// across processes and is what travels in AddComponent/RemoveComponent/
// SetField payloads instead of a runtime type name.
type TypeID uint64

// Component is anything that can be attached to a scene object, serialized to
// the wire, and merged field-by-field from a remote copy. Concrete component
// types are always pointers so that Merge can mutate them in place and so
// they can be used as map keys for hash/identity tracking.
type Component interface {
	TypeID() TypeID
	Serialize(w *wire.Writer)
	Deserialize(r *wire.Reader) error
}

// Synchronizable lets a component opt out of replication entirely (e.g. a
// purely client-local visual effect component). Components that don't
// implement it are always synchronized.
type Synchronizable interface {
	ShouldSynchronize() bool
}

// AfterMerger lets a component react after a field-wise merge actually
// changed something (e.g. recompute a derived cache). Optional.
type AfterMerger interface {
	OnAfterMerge()
}
