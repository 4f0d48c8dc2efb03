package sender

import (
	"github.com/scenegraph/syncengine/internal/ecs"
	"github.com/scenegraph/syncengine/internal/scene"
)

// MarkDirty notifies the Sender that obj's create/destroy must be
// replicated on the next flush. Implements scene.DirtyMarker.
//
// Guards, in order (spec.md §4.8):
//  1. If a snapshot apply is in progress, defer to the deferred-dirty queue
//     instead of marking dirty directly — this is what stops a remote op's
//     local side effects from being re-sent back out as if they were local
//     changes.
//  2. Client-only: if obj is owned by a peer other than ourselves, ignore —
//     we have no authority to emit anything about it.
//  3. If obj is purely local, ignore.
func (s *Sender) MarkDirty(obj *scene.GameObject) {
	if s.applyState.Depth() > 0 {
		s.mu.Lock()
		s.deferredDirty = append(s.deferredDirty, deferredMark{obj: obj})
		s.mu.Unlock()
		return
	}
	if !s.authorityGate(obj) {
		return
	}
	if obj.IsLocal() {
		return
	}
	s.mu.Lock()
	s.dirtyObjects[obj] = struct{}{}
	s.mu.Unlock()
	s.wakeFlusher()
}

// MarkDirtyComponent notifies the Sender that the component typeID on obj
// has changed locally. Same guards as MarkDirty, plus: a component that
// opts out via Synchronizable.ShouldSynchronize() is skipped.
func (s *Sender) MarkDirtyComponent(obj *scene.GameObject, typeID ecs.TypeID) {
	if s.applyState.Depth() > 0 {
		id := typeID
		s.mu.Lock()
		s.deferredDirty = append(s.deferredDirty, deferredMark{obj: obj, typeID: &id})
		s.mu.Unlock()
		return
	}
	if !s.authorityGate(obj) {
		return
	}
	if obj.IsLocal() {
		return
	}
	if c, ok := obj.GetComponent(typeID); ok {
		if sy, ok := c.(ecs.Synchronizable); ok && !sy.ShouldSynchronize() {
			return
		}
	}
	s.mu.Lock()
	s.dirtyComponents[componentKey{obj: obj, typeID: typeID}] = struct{}{}
	s.mu.Unlock()
	s.wakeFlusher()
}

// authorityGate implements "if go owned by a peer other than ourselves:
// return (client-side only)". On the server this is always true: the
// server may mark anything dirty (it is the default authority and is also
// the relay point for client-owned updates it already received).
func (s *Sender) authorityGate(obj *scene.GameObject) bool {
	if s.isServer {
		return true
	}
	owner, has := obj.OwningClient()
	if has && owner != s.selfPeer {
		return false
	}
	return true
}

// DrainDeferred replays every deferred-dirty mark accumulated while a
// snapshot apply was in progress. Called by the Receiver's apply guard when
// the apply depth returns to zero.
func (s *Sender) DrainDeferred() {
	s.mu.Lock()
	items := s.deferredDirty
	s.deferredDirty = nil
	s.mu.Unlock()

	for _, it := range items {
		if it.typeID != nil {
			s.MarkDirtyComponent(it.obj, *it.typeID)
		} else {
			s.MarkDirty(it.obj)
		}
		if s.metrics != nil {
			s.metrics.OpsRelayed.Inc()
		}
	}
}

// wakeFlusher claims the single-producer wake-up token and, on the
// false→true transition, posts exactly one FlushDirty task to the
// main-thread executor — this yields at-most-one pending flush and
// coalesces bursts (spec.md §4.8 "Scheduling").
func (s *Sender) wakeFlusher() {
	if s.flushRequested.CompareAndSwap(false, true) {
		s.executor.Enqueue(nil, s.FlushDirty)
	}
}
