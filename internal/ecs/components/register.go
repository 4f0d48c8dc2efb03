package components

import (
	"github.com/scenegraph/syncengine/internal/ecs"
	"github.com/scenegraph/syncengine/internal/ecs/registry"
)

// RegisterDefaults registers every component type this package ships with
// into r. A hosting game registers its own component types into the same
// registry alongside these (original_source's TypeRegistrar pattern: new
// types register by adding to the table, no core code changes needed).
func RegisterDefaults(r *registry.TypeRegistry) {
	r.Register(Transform3DTypeID, "Transform3d", func() ecs.Component { return NewTransform3d() })
	r.Register(Transform2DTypeID, "Transform2d", func() ecs.Component { return NewTransform2d() })
}
