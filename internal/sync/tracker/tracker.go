// Package tracker implements the Sync Tracker (C7): per-peer sequence and
// ack bookkeeping, the one piece of state shared between the I/O goroutines
// and the simulation goroutine (spec.md §5).
//
// Grounded on original_source/.../ECS/Synchronization/SyncTracker.hpp,
// almost field-for-field: AllocateSequence/MarkDelivered/MarkAck/
// GetLastIncoming/GetLastAcked, an exclusive lock for writes, a shared lock
// for reads.
package tracker

import "sync"

// PeerState is one peer's sequence/ack bookkeeping.
type PeerState struct {
	LastOutgoingSequence uint64
	LastIncomingSequence uint64
	LastAckedOutgoing    uint64
	UnackedOutgoing      map[uint64]struct{}
}

func newPeerState() *PeerState {
	return &PeerState{UnackedOutgoing: make(map[uint64]struct{})}
}

// Tracker holds PeerState per peer id, guarded by a single RWMutex — the
// only lock shared between the I/O goroutines (which allocate sequences and
// report delivery/ack) and the simulation goroutine (which reads last
// incoming/acked when building outgoing snapshots).
type Tracker struct {
	mu    sync.RWMutex
	peers map[uint32]*PeerState
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{peers: make(map[uint32]*PeerState)}
}

func (t *Tracker) stateLocked(peer uint32) *PeerState {
	p, ok := t.peers[peer]
	if !ok {
		p = newPeerState()
		t.peers[peer] = p
	}
	return p
}

// AllocateSequence increments peer's LastOutgoingSequence, records it as
// unacked, and returns it.
func (t *Tracker) AllocateSequence(peer uint32) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.stateLocked(peer)
	p.LastOutgoingSequence++
	p.UnackedOutgoing[p.LastOutgoingSequence] = struct{}{}
	return p.LastOutgoingSequence
}

// MarkDelivered raises peer's LastIncomingSequence to max(prev, seq).
func (t *Tracker) MarkDelivered(peer uint32, seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.stateLocked(peer)
	if seq > p.LastIncomingSequence {
		p.LastIncomingSequence = seq
	}
}

// MarkAck raises peer's LastAckedOutgoing to max(prev, ack) and prunes every
// unacked sequence ≤ ack.
func (t *Tracker) MarkAck(peer uint32, ack uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.stateLocked(peer)
	if ack > p.LastAckedOutgoing {
		p.LastAckedOutgoing = ack
	}
	for seq := range p.UnackedOutgoing {
		if seq <= ack {
			delete(p.UnackedOutgoing, seq)
		}
	}
}

// LastIncoming returns peer's LastIncomingSequence.
func (t *Tracker) LastIncoming(peer uint32) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.peers[peer]; ok {
		return p.LastIncomingSequence
	}
	return 0
}

// LastAcked returns peer's LastAckedOutgoing.
func (t *Tracker) LastAcked(peer uint32) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.peers[peer]; ok {
		return p.LastAckedOutgoing
	}
	return 0
}

// Forget discards peer's state entirely. Called after a disconnect grace
// period (spec.md §4.4: "notify sync layer to discard that peer's state
// after a grace period").
func (t *Tracker) Forget(peer uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, peer)
}
