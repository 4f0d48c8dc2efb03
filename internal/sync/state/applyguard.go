// Package state holds the apply-depth counter shared between the Sender
// (C8) and Receiver (C9), split out into its own tiny package so the two
// can share it without an import cycle (the Receiver depends on the Sender
// to drain deferred dirty marks; the Sender must not depend back on the
// Receiver).
//
// Grounded on original_source/.../ECS/Synchronization/
// ReceiverSynchronization.hpp's SnapshotApplyGuard, a scope-exit RAII type.
// Go has no destructors, so the guard is a closure returned by Begin that
// the caller must defer.
package state

import "sync/atomic"

// ApplyState tracks how many nested snapshot-apply scopes are currently
// open. While non-zero, MarkDirty calls are deferred rather than applied
// immediately (spec.md §4.8/§4.9: "this prevents re-echoing: local side
// effects of applying a remote op do not re-dirty the same op back to the
// wire").
type ApplyState struct {
	depth atomic.Int32
}

// New returns a zeroed ApplyState.
func New() *ApplyState {
	return &ApplyState{}
}

// Depth reports the current nesting depth.
func (s *ApplyState) Depth() int32 {
	return s.depth.Load()
}

// Begin opens an apply scope and returns the func the caller must defer to
// close it. On the scope that brings the depth back to zero, onDrain (which
// may be nil) is invoked.
func (s *ApplyState) Begin(onDrain func()) func() {
	s.depth.Add(1)
	return func() {
		if s.depth.Add(-1) == 0 && onDrain != nil {
			onDrain()
		}
	}
}
