package translation

import (
	"testing"
	"time"

	"github.com/scenegraph/syncengine/internal/ecs/components"
	"github.com/scenegraph/syncengine/internal/scene"
)

func newOwner() *scene.GameObject {
	return scene.NewGameObject("alpha", "Widget", components.NewTransform3d(), false, nil)
}

func TestEnqueueThenUpdateInterpolatesTowardsTarget(t *testing.T) {
	b := New()
	owner := newOwner()
	transform := components.NewTransform3d()
	transform.LocalPosition = components.Vec3{0, 0, 0}

	target := components.Vec3{10, 0, 0}
	b.Enqueue(owner, transform, target, components.Vec3{}, components.Vec3{1, 1, 1})

	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after Enqueue", b.Len())
	}

	// Halfway through the snap interval (50ms of 100ms).
	b.Update(50 * time.Millisecond)
	if transform.LocalPosition[0] <= 0 || transform.LocalPosition[0] >= 10 {
		t.Fatalf("expected a partial interpolation, got %v", transform.LocalPosition)
	}
}

func TestUpdatePastSnapIntervalSnapsToTargetAndRemovesEntry(t *testing.T) {
	b := New()
	owner := newOwner()
	transform := components.NewTransform3d()
	target := components.Vec3{10, 20, 30}

	b.Enqueue(owner, transform, target, target, target)
	b.Update(1 * time.Second) // far past the 100ms snap interval

	if transform.LocalPosition != target {
		t.Fatalf("LocalPosition = %v, want %v", transform.LocalPosition, target)
	}
	if b.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 once an entry reaches its target", b.Len())
	}
}

func TestUpdateDropsEntriesForDestroyedOwners(t *testing.T) {
	b := New()
	owner := newOwner()
	transform := components.NewTransform3d()
	b.Enqueue(owner, transform, components.Vec3{1, 1, 1}, components.Vec3{}, components.Vec3{1, 1, 1})

	owner.MarkDestroyed()
	b.Update(10 * time.Millisecond)

	if b.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 once the owner is destroyed", b.Len())
	}
}

func TestEnqueueRestartsAnInFlightEntry(t *testing.T) {
	b := New()
	owner := newOwner()
	transform := components.NewTransform3d()

	b.Enqueue(owner, transform, components.Vec3{10, 0, 0}, components.Vec3{}, components.Vec3{1, 1, 1})
	b.Update(50 * time.Millisecond)
	midway := transform.LocalPosition

	// Re-enqueue from the current (midway) position towards a new target.
	b.Enqueue(owner, transform, components.Vec3{0, 10, 0}, components.Vec3{}, components.Vec3{1, 1, 1})
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after re-enqueuing the same transform", b.Len())
	}
	b.Update(1 * time.Second)
	if transform.LocalPosition != (components.Vec3{0, 10, 0}) {
		t.Fatalf("LocalPosition = %v, want the new target", transform.LocalPosition)
	}
	_ = midway
}
