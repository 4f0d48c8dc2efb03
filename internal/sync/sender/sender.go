// Package sender implements Sender Synchronization (C8): the dirty-tracking
// and flush pipeline that turns local scene-graph mutations into outgoing
// snapshots.
//
// Grounded on original_source/.../ECS/Synchronization/
// SenderSynchronization.hpp: MarkDirty's apply-depth/ownership/local guards,
// WakeFlusher's single-producer coalescing token, FlushDirty's per-object
// and per-component op generation, HasStateChanged's FNV-1a64 change
// detection, FilterOpsForClient's per-recipient ownership filter, and
// SynchronizeFullTree's depth-first full-scene serialization.
package sender

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/scenegraph/syncengine/internal/ecs"
	"github.com/scenegraph/syncengine/internal/metrics"
	"github.com/scenegraph/syncengine/internal/netcode/wire"
	"github.com/scenegraph/syncengine/internal/scene"
	"github.com/scenegraph/syncengine/internal/sync/state"
	"github.com/scenegraph/syncengine/internal/sync/tracker"
)

// Network is the transport surface the Sender needs: send a framed payload
// to one peer, and (server-only) enumerate currently connected peers. The
// transport package's Server/Client types satisfy this structurally.
type Network interface {
	SendTo(peer uint32, packetType uint16, payload []byte) error
	ConnectedPeers() []uint32
}

type componentKey struct {
	obj    *scene.GameObject
	typeID ecs.TypeID
}

type deferredMark struct {
	obj    *scene.GameObject
	typeID *ecs.TypeID // nil means MarkDirty(obj); non-nil means MarkDirtyComponent(obj, *typeID)
}

// Config bundles a Sender's fixed construction parameters.
type Config struct {
	IsServer           bool
	SelfPeer           uint32 // the client's own NetworkId; unused on server
	OutgoingPacketType uint16 // C2S_Snapshot on client, S2C_Snapshot on server
	Tracker            *tracker.Tracker
	Network            Network
	Executor           Executor
	// Metrics, if non-nil, receives flush-latency and send counters.
	Metrics *metrics.Collectors
	Log     *zap.Logger
}

// Executor is the subset of internal/exec.Executor the Sender needs.
type Executor interface {
	Enqueue(holder any, task func())
}

// Sender is the process-wide dirty-tracking/flush engine (one per process,
// per spec.md §9 "Singletons").
type Sender struct {
	mu              sync.Mutex
	dirtyObjects    map[*scene.GameObject]struct{}
	dirtyComponents map[componentKey]struct{}
	lastHash        map[ecs.Component]uint64
	ownerCache      map[string]uint32
	deferredDirty   []deferredMark

	flushRequested atomic.Bool
	applyState     *state.ApplyState

	isServer           bool
	selfPeer           uint32
	outgoingPacketType uint16

	tracker  *tracker.Tracker
	network  Network
	executor Executor
	metrics  *metrics.Collectors
	log      *zap.Logger
}

// New constructs a Sender. applyState must be the same ApplyState instance
// passed to the paired Receiver.
func New(cfg Config, applyState *state.ApplyState) *Sender {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Sender{
		dirtyObjects:       make(map[*scene.GameObject]struct{}),
		dirtyComponents:    make(map[componentKey]struct{}),
		lastHash:           make(map[ecs.Component]uint64),
		ownerCache:         make(map[string]uint32),
		applyState:         applyState,
		isServer:           cfg.IsServer,
		selfPeer:           cfg.SelfPeer,
		outgoingPacketType: cfg.OutgoingPacketType,
		tracker:            cfg.Tracker,
		network:            cfg.Network,
		executor:           cfg.Executor,
		metrics:            cfg.Metrics,
		log:                log,
	}
}

// ForgetHash drops the remembered hash for c (called when c is removed). The
// hash entry is otherwise only ever set by a successful emit (emitObject/
// emitComponent in flush.go) — a remote apply must never pre-seed it, or the
// next flush's stateChanged check sees no change and silently drops the
// relay (see receiver.handleAddComponent/handleSetField).
func (s *Sender) ForgetHash(c ecs.Component) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastHash, c)
}

func (s *Sender) stateChanged(c ecs.Component, hash uint64) bool {
	prev, ok := s.lastHash[c]
	return !ok || prev != hash
}

func serialize(c ecs.Component) []byte {
	w := wire.NewWriter()
	c.Serialize(w)
	return w.Bytes()
}
