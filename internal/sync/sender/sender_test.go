package sender

import (
	"testing"

	"github.com/scenegraph/syncengine/internal/ecs"
	"github.com/scenegraph/syncengine/internal/ecs/components"
	"github.com/scenegraph/syncengine/internal/netcode/proto"
	"github.com/scenegraph/syncengine/internal/netcode/wire"
	"github.com/scenegraph/syncengine/internal/scene"
	"github.com/scenegraph/syncengine/internal/sync/state"
	"github.com/scenegraph/syncengine/internal/sync/tracker"
)

type sentFrame struct {
	peer       uint32
	packetType uint16
	payload    []byte
}

type fakeNetwork struct {
	sent  []sentFrame
	peers []uint32
}

func (f *fakeNetwork) SendTo(peer uint32, packetType uint16, payload []byte) error {
	f.sent = append(f.sent, sentFrame{peer, packetType, payload})
	return nil
}

func (f *fakeNetwork) ConnectedPeers() []uint32 {
	return f.peers
}

type recordingExecutor struct {
	tasks []func()
}

func (e *recordingExecutor) Enqueue(holder any, task func()) {
	e.tasks = append(e.tasks, task)
}

func newTestObject(name string, owningClient *uint32) *scene.GameObject {
	return scene.NewGameObject(name, "Widget", components.NewTransform3d(), false, owningClient)
}

func newServerSender(net *fakeNetwork, exec Executor) (*Sender, *state.ApplyState) {
	as := state.New()
	s := New(Config{
		IsServer:           true,
		OutgoingPacketType: 4,
		Tracker:            tracker.New(),
		Network:            net,
		Executor:           exec,
	}, as)
	return s, as
}

func decodeFirstOp(t *testing.T, payload []byte) (proto.OpCode, []byte) {
	t.Helper()
	r := wire.NewReader(payload)
	if _, err := proto.DecodeHeader(r); err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	// The header is followed directly by the operation records; re-slice
	// payload from where the reader left off.
	ops := r.RemainingBytes()
	it := proto.NewOperationIterator(ops, 1)
	code, opPayload, ok, err := it.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	return code, opPayload
}

func TestMarkDirtyThenFlushSendsCreate(t *testing.T) {
	net := &fakeNetwork{peers: []uint32{1}}
	s, _ := newServerSender(net, &recordingExecutor{})

	obj := newTestObject("alpha", nil)
	s.MarkDirty(obj)
	s.FlushDirty()

	if len(net.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(net.sent))
	}
	code, opPayload := decodeFirstOp(t, net.sent[0].payload)
	if code != proto.OpCreate {
		t.Fatalf("op code = %v, want OpCreate", code)
	}
	data, err := proto.DecodeCreate(opPayload)
	if err != nil || data.Path != "alpha" {
		t.Fatalf("DecodeCreate: %+v, %v", data, err)
	}
}

func TestMarkDirtyOnLocalObjectIsIgnored(t *testing.T) {
	net := &fakeNetwork{peers: []uint32{1}}
	s, _ := newServerSender(net, &recordingExecutor{})

	obj := scene.NewGameObject("alpha", "Widget", components.NewTransform3d(), true, nil)
	s.MarkDirty(obj)
	s.FlushDirty()

	if len(net.sent) != 0 {
		t.Fatalf("expected no sends for a local object, got %d", len(net.sent))
	}
}

func TestMarkDirtyDuringApplyScopeIsDeferred(t *testing.T) {
	net := &fakeNetwork{peers: []uint32{1}}
	exec := &recordingExecutor{}
	s, as := newServerSender(net, exec)

	end := as.Begin(nil)
	obj := newTestObject("alpha", nil)
	s.MarkDirty(obj)
	end()

	// Deferred marks do not wake the flusher or populate dirtyObjects.
	s.FlushDirty() // flushRequested was never set true, so this is a no-op
	if len(net.sent) != 0 {
		t.Fatalf("expected no sends before DrainDeferred, got %d", len(net.sent))
	}

	s.DrainDeferred()
	if len(exec.tasks) != 1 {
		t.Fatalf("expected DrainDeferred's replay to wake the flusher exactly once, got %d enqueues", len(exec.tasks))
	}
	exec.tasks[0]()
	if len(net.sent) != 1 {
		t.Fatalf("expected the deferred mark to flush after DrainDeferred, got %d sends", len(net.sent))
	}
}

func TestClientAuthorityGateSkipsObjectsOwnedByOthers(t *testing.T) {
	net := &fakeNetwork{peers: []uint32{0}}
	as := state.New()
	s := New(Config{
		IsServer:           false,
		SelfPeer:           7,
		OutgoingPacketType: 3,
		Tracker:            tracker.New(),
		Network:            net,
		Executor:           &recordingExecutor{},
	}, as)

	otherOwner := uint32(8)
	obj := newTestObject("alpha", &otherOwner)
	s.MarkDirty(obj)
	s.FlushDirty()

	if len(net.sent) != 0 {
		t.Fatalf("expected no sends for an object owned by a different peer, got %d", len(net.sent))
	}
}

func TestClientAuthorityGateAllowsOwnObject(t *testing.T) {
	net := &fakeNetwork{peers: []uint32{0}}
	as := state.New()
	s := New(Config{
		IsServer:           false,
		SelfPeer:           7,
		OutgoingPacketType: 3,
		Tracker:            tracker.New(),
		Network:            net,
		Executor:           &recordingExecutor{},
	}, as)

	self := uint32(7)
	obj := newTestObject("alpha", &self)
	s.MarkDirty(obj)
	s.FlushDirty()

	if len(net.sent) != 1 {
		t.Fatalf("expected one send for a self-owned object, got %d", len(net.sent))
	}
}

func TestFlushDirtyFiltersOwnedObjectFromItsOwner(t *testing.T) {
	net := &fakeNetwork{peers: []uint32{7, 8}}
	s, _ := newServerSender(net, &recordingExecutor{})

	owner := uint32(8)
	obj := newTestObject("alpha", &owner)
	s.MarkDirty(obj)
	s.FlushDirty()

	var sawPeer7, sawPeer8 bool
	for _, f := range net.sent {
		if f.peer == 7 {
			sawPeer7 = true
		}
		if f.peer == 8 {
			sawPeer8 = true
		}
	}
	if !sawPeer7 {
		t.Fatal("expected peer 7 to receive the owned object's Create")
	}
	if sawPeer8 {
		t.Fatal("expected peer 8 (the owner) to NOT receive its own object echoed back")
	}
}

type nonSyncComponent struct {
	components.Transform3d
}

func (c *nonSyncComponent) ShouldSynchronize() bool { return false }

var _ ecs.Synchronizable = (*nonSyncComponent)(nil)

func TestMarkDirtyComponentSkipsNonSynchronizable(t *testing.T) {
	net := &fakeNetwork{peers: []uint32{1}}
	s, _ := newServerSender(net, &recordingExecutor{})

	transform := components.NewTransform3d()
	obj := scene.NewGameObject("alpha", "Widget", transform, false, nil)
	obj.ClearJustCreated()
	// Replace with a non-synchronizable component; it embeds Transform3d and
	// so shares its TypeID, which is why the transform is removed first.
	// This exercises MarkDirtyComponent's ShouldSynchronize guard directly.
	nc := &nonSyncComponent{}
	if err := obj.RemoveComponent(components.Transform3DTypeID); err != nil {
		t.Fatalf("RemoveComponent: %v", err)
	}
	if err := obj.AddComponent(nc); err != nil {
		t.Fatalf("AddComponent: %v", err)
	}
	obj.ClearComponentWasAdded(nc.TypeID())

	s.MarkDirtyComponent(obj, nc.TypeID())
	s.FlushDirty()

	if len(net.sent) != 0 {
		t.Fatalf("expected no sends for a non-synchronizable component change, got %d", len(net.sent))
	}
}
