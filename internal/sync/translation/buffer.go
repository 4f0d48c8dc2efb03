// Package translation implements the Translation Buffer (C10): client-side
// smoothing of remote transform updates, so a SetField(Transform3d) snaps
// the rendered position to its target over snapInterval seconds instead of
// jumping instantly.
//
// Grounded on original_source/.../ECS/Synchronization/
// TranslationBuffer.hpp: Enqueue captures the transform's current values as
// the LERP start and resets progress to 0; Update advances progress by
// Δt/snapInterval, clamps to 1, LERPs each triple, and writes back with the
// do-not-mark-dirty semantics (a plain field assignment in this port — see
// internal/ecs/components/transform3d.go).
package translation

import (
	"time"

	"github.com/scenegraph/syncengine/internal/ecs/components"
	"github.com/scenegraph/syncengine/internal/scene"
)

// snapInterval is the time a smoothed transform takes to reach its target,
// fixed by spec.md §4.10.
const snapInterval = 0.10 // seconds

type entry struct {
	owner     *scene.GameObject
	transform *components.Transform3d

	startPos, startRot, startScale    components.Vec3
	targetPos, targetRot, targetScale components.Vec3
	progress                          float32
}

// Buffer holds one in-flight smoothing entry per transform. Main-thread-only
// like the scene graph: Enqueue is called from the receiver's apply path,
// Update from the client tick loop, both on the simulation goroutine.
type Buffer struct {
	entries map[*components.Transform3d]*entry
}

// New returns an empty Buffer.
func New() *Buffer {
	return &Buffer{entries: make(map[*components.Transform3d]*entry)}
}

// Enqueue starts (or restarts) smoothing transform on owner towards
// (targetPos, targetRot, targetScale), starting from the transform's
// current values.
func (b *Buffer) Enqueue(owner *scene.GameObject, transform *components.Transform3d, targetPos, targetRot, targetScale components.Vec3) {
	b.entries[transform] = &entry{
		owner:      owner,
		transform:  transform,
		startPos:   transform.LocalPosition,
		startRot:   transform.LocalRotation,
		startScale: transform.LocalScale,
		targetPos:  targetPos,
		targetRot:  targetRot,
		targetScale: targetScale,
		progress:   0,
	}
}

// Update advances every in-flight entry by dt, writing the interpolated
// value back to its transform. Entries that reach progress >= 1, or whose
// owner has been destroyed in the meantime, are removed.
func (b *Buffer) Update(dt time.Duration) {
	dtSeconds := float32(dt.Seconds())
	for key, e := range b.entries {
		if e.owner.Destroyed() {
			delete(b.entries, key)
			continue
		}
		e.progress += dtSeconds / snapInterval
		t := e.progress
		if t > 1 {
			t = 1
		}
		e.transform.LocalPosition = lerp3(e.startPos, e.targetPos, t)
		e.transform.LocalRotation = lerp3(e.startRot, e.targetRot, t)
		e.transform.LocalScale = lerp3(e.startScale, e.targetScale, t)
		if t >= 1 {
			delete(b.entries, key)
		}
	}
}

// Len reports how many entries are currently in flight (test hook).
func (b *Buffer) Len() int {
	return len(b.entries)
}

func lerp3(a, b components.Vec3, t float32) components.Vec3 {
	return components.Vec3{
		lerp(a[0], b[0], t),
		lerp(a[1], b[1], t),
		lerp(a[2], b[2], t),
	}
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}
