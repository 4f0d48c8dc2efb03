package sender

import (
	"time"

	"go.uber.org/zap"

	"github.com/scenegraph/syncengine/internal/ecs"
	"github.com/scenegraph/syncengine/internal/netcode/proto"
	"github.com/scenegraph/syncengine/internal/netcode/wire"
	"github.com/scenegraph/syncengine/internal/scene"
)

// FlushDirty is the Sender's flush algorithm (spec.md §4.8). It is normally
// invoked only via the main-thread executor (see wakeFlusher), but is safe
// to call directly (e.g. from a forced end-of-tick flush or from tests).
func (s *Sender) FlushDirty() {
	if !s.flushRequested.CompareAndSwap(true, false) {
		return
	}
	if s.metrics != nil {
		defer s.metrics.ObserveFlush(time.Now())()
	}

	var route proto.Route
	var origin uint32
	if s.isServer {
		route, origin = proto.RouteServerBroadcast, proto.ServerPeer
	} else {
		route, origin = proto.RouteRelayOnce, s.selfPeer
	}

	builder := proto.NewBuilder()

	s.mu.Lock()
	for obj := range s.dirtyObjects {
		s.emitObject(builder, obj)
	}
	for key := range s.dirtyComponents {
		s.emitComponent(builder, key.obj, key.typeID)
	}
	s.dirtyObjects = make(map[*scene.GameObject]struct{})
	s.dirtyComponents = make(map[componentKey]struct{})
	count := builder.Count()
	s.mu.Unlock()

	if count == 0 {
		return
	}

	if s.isServer {
		for _, peer := range s.network.ConnectedPeers() {
			filtered := s.filterForClient(builder, peer)
			if filtered.Count() == 0 {
				continue
			}
			s.send(peer, route, proto.ServerPeer, filtered)
		}
		return
	}
	s.send(proto.ServerPeer, route, origin, builder)
}

// emitObject handles one dirtyObjects entry: Destroy if the object was
// destroyed, or Create + one AddComponent per synchronizable component if
// it was newly created. Must be called with s.mu held.
func (s *Sender) emitObject(b *proto.Builder, obj *scene.GameObject) {
	path := obj.AbsolutePath()
	if obj.Destroyed() {
		delete(s.ownerCache, path)
		for _, c := range obj.Components() {
			delete(s.lastHash, c)
		}
		b.Destroy(path)
		return
	}
	if !obj.JustCreated() {
		return
	}

	owner, hasOwner := obj.OwningClient()
	if hasOwner {
		s.ownerCache[path] = owner
		ownerCopy := owner
		b.Create(path, obj.Kind, &ownerCopy)
	} else {
		s.ownerCache[path] = proto.ServerPeer
		b.Create(path, obj.Kind, nil)
	}

	for _, c := range obj.Components() {
		if sy, ok := c.(ecs.Synchronizable); ok && !sy.ShouldSynchronize() {
			continue
		}
		blob := serialize(c)
		b.AddComponent(path, c.TypeID(), blob)
		s.lastHash[c] = proto.HashComponent(c)
		obj.ClearComponentWasAdded(c.TypeID())
	}
	obj.ClearJustCreated()
}

// emitComponent handles one dirtyComponents entry. Must be called with
// s.mu held.
func (s *Sender) emitComponent(b *proto.Builder, obj *scene.GameObject, typeID ecs.TypeID) {
	path := obj.AbsolutePath()
	c, ok := obj.GetComponent(typeID)
	if !ok {
		b.RemoveComponent(path, typeID)
		return
	}
	if sy, ok := c.(ecs.Synchronizable); ok && !sy.ShouldSynchronize() {
		return
	}
	hash := proto.HashComponent(c)
	if obj.ComponentWasAdded(typeID) {
		if s.stateChanged(c, hash) {
			b.AddComponent(path, typeID, serialize(c))
			obj.ClearComponentWasAdded(typeID)
			s.lastHash[c] = hash
		}
		return
	}
	if s.stateChanged(c, hash) {
		b.SetField(path, typeID, proto.SetFieldTag, serialize(c))
		s.lastHash[c] = hash
	}
}

// filterForClient builds a copy of the template snapshot keeping only the
// operations whose root is not owned by peer (spec.md §4.8 step 7: "a peer
// never receives back mutations on a root it owns").
func (s *Sender) filterForClient(template *proto.Builder, peer uint32) *proto.Builder {
	out := proto.NewBuilder()
	it := proto.NewOperationIterator(template.Bytes(), template.Count())
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		code, payload, ok, err := it.Next()
		if !ok || err != nil {
			break
		}
		path, err := proto.PeekPath(payload)
		if err != nil {
			continue
		}
		root := proto.RootOf(path)
		if owner, tracked := s.ownerCache[root]; tracked && owner == peer {
			continue
		}
		out.AppendRaw(code, payload)
	}
	return out
}

func (s *Sender) send(peer uint32, route proto.Route, origin uint32, b *proto.Builder) {
	hdr := proto.Header{
		Sequence:       s.tracker.AllocateSequence(peer),
		Ack:            s.tracker.LastIncoming(peer),
		Origin:         origin,
		Route:          route,
		OperationCount: b.Count(),
	}
	w := wire.NewWriter()
	hdr.Encode(w)
	w.WriteRaw(b.Bytes())
	if err := s.network.SendTo(peer, s.outgoingPacketType, w.Bytes()); err != nil {
		s.log.Warn("send snapshot failed", zap.Error(err), zap.Uint32("peer", peer))
		return
	}
	if s.metrics != nil {
		s.metrics.SnapshotsSent.Inc()
	}
}

// SynchronizeFullTree serializes every root in roots, depth-first, into a
// single snapshot sent only to targetPeer: Create for each node, then its
// components in insertion order as AddComponent, then recurse into
// children (spec.md §4.8). Used on client join and for deterministic
// re-syncs; unlike FlushDirty, this is never filtered per-owner — it is
// intentionally a complete scene dump to exactly one recipient.
func (s *Sender) SynchronizeFullTree(targetPeer uint32, roots []*scene.GameObject) {
	b := proto.NewBuilder()
	for _, root := range roots {
		serializeSubtree(b, root)
	}
	if b.Count() == 0 {
		return
	}
	var route proto.Route
	var origin uint32
	if s.isServer {
		route, origin = proto.RouteServerBroadcast, proto.ServerPeer
	} else {
		route, origin = proto.RouteRelayOnce, s.selfPeer
	}
	s.send(targetPeer, route, origin, b)
}

func serializeSubtree(b *proto.Builder, obj *scene.GameObject) {
	path := obj.AbsolutePath()
	owner, hasOwner := obj.OwningClient()
	if hasOwner {
		ownerCopy := owner
		b.Create(path, obj.Kind, &ownerCopy)
	} else {
		b.Create(path, obj.Kind, nil)
	}
	for _, c := range obj.Components() {
		if sy, ok := c.(ecs.Synchronizable); ok && !sy.ShouldSynchronize() {
			continue
		}
		b.AddComponent(path, c.TypeID(), serialize(c))
	}
	for _, child := range obj.Children() {
		serializeSubtree(b, child)
	}
}
