// Package proto implements the snapshot header and the five scene-graph
// operation payloads (Create, Destroy, AddComponent, RemoveComponent,
// SetField) on top of internal/netcode/wire's primitive codec.
//
// Grounded on spec.md §6 (authoritative wire layout) and
// original_source/.../ECS/Synchronization/CommonSynchronization.hpp (op
// shapes) per the Open Question resolution recorded in DESIGN.md: the newer
// ECS::Synchronization variant — route/origin/ack header, u64
// componentTypeId — is what's implemented here, not the older
// Network::OpCode/Snapshot hierarchy.
package proto

import (
	"fmt"
	"hash/fnv"

	"github.com/scenegraph/syncengine/internal/ecs"
	"github.com/scenegraph/syncengine/internal/netcode/wire"
)

// OpCode identifies a scene-graph operation record.
type OpCode uint8

const (
	OpCreate          OpCode = 1
	OpDestroy         OpCode = 2
	OpAddComponent    OpCode = 3
	OpRemoveComponent OpCode = 4
	OpSetField        OpCode = 5
)

// Route is the snapshot-level delivery mode.
type Route uint8

const (
	RouteRelayOnce       Route = 0
	RouteServerBroadcast Route = 1
)

// ServerPeer is the reserved peer id meaning "the server" (origin == 0).
const ServerPeer uint32 = 0

// SetFieldTag is the fixed field tag used by SetField ops. The wire format
// always carries a whole-component replacement rather than individual
// sub-field tags (spec.md §4.8 step 4 always emits `"ALL"`); the tag is kept
// on the wire for forward compatibility with finer-grained field tags.
const SetFieldTag = "ALL"

// Header precedes a snapshot's operation records.
type Header struct {
	Sequence       uint64
	Ack            uint64
	Origin         uint32
	Route          Route
	OperationCount uint32
}

// Encode appends the header to w.
func (h Header) Encode(w *wire.Writer) {
	w.WriteUint64(h.Sequence)
	w.WriteUint64(h.Ack)
	w.WriteUint32(h.Origin)
	w.WriteUint8(uint8(h.Route))
	w.WriteUint32(h.OperationCount)
}

// DecodeHeader reads a Header from r.
func DecodeHeader(r *wire.Reader) (Header, error) {
	var h Header
	var err error
	if h.Sequence, err = r.ReadUint64(); err != nil {
		return h, fmt.Errorf("snapshot header sequence: %w", err)
	}
	if h.Ack, err = r.ReadUint64(); err != nil {
		return h, fmt.Errorf("snapshot header ack: %w", err)
	}
	if h.Origin, err = r.ReadUint32(); err != nil {
		return h, fmt.Errorf("snapshot header origin: %w", err)
	}
	route, err := r.ReadUint8()
	if err != nil {
		return h, fmt.Errorf("snapshot header route: %w", err)
	}
	h.Route = Route(route)
	if h.OperationCount, err = r.ReadUint32(); err != nil {
		return h, fmt.Errorf("snapshot header operationCount: %w", err)
	}
	return h, nil
}

// HashComponent serializes c and hashes the result with FNV-1a 64. Used by
// both sender and receiver for change detection (spec.md §4.8
// "HasStateChanged"). FNV-1a 64 is mandated by spec, not a swappable
// concern — see DESIGN.md for why this is stdlib hash/fnv rather than a
// third-party library.
func HashComponent(c ecs.Component) uint64 {
	w := wire.NewWriter()
	c.Serialize(w)
	h := fnv.New64a()
	h.Write(w.Bytes())
	return h.Sum64()
}
