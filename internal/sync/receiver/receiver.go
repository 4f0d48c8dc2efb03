// Package receiver implements the Receiver Synchronization (C9): decoding
// an incoming snapshot and applying its operations to the scene graph.
//
// Grounded on original_source/.../ECS/Synchronization/
// ReceiverSynchronization.hpp: HandleSnapshot's duplicate/out-of-order drop
// via the tracker's LastIncoming, the apply-guard scope around the whole
// operation loop (so the receiver's own mutations don't bounce straight back
// out as if they were local), and the per-opcode Handle{Create,Destroy,
// AddComponent,RemoveComponent,SetField} dispatch.
package receiver

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/scenegraph/syncengine/internal/ecs"
	"github.com/scenegraph/syncengine/internal/ecs/components"
	"github.com/scenegraph/syncengine/internal/ecs/registry"
	"github.com/scenegraph/syncengine/internal/metrics"
	"github.com/scenegraph/syncengine/internal/netcode/proto"
	"github.com/scenegraph/syncengine/internal/netcode/wire"
	"github.com/scenegraph/syncengine/internal/scene"
	"github.com/scenegraph/syncengine/internal/scripting"
	"github.com/scenegraph/syncengine/internal/sync/sender"
	"github.com/scenegraph/syncengine/internal/sync/state"
	"github.com/scenegraph/syncengine/internal/sync/tracker"
	"github.com/scenegraph/syncengine/internal/sync/translation"
)

// Config bundles a Receiver's fixed construction parameters.
type Config struct {
	IsServer bool
	SelfPeer uint32

	Registry *registry.TypeRegistry
	Manager  *scene.Manager
	Tracker  *tracker.Tracker
	Sender   *sender.Sender

	// Translation is consulted only on the client: a SetField targeting a
	// Transform3d is routed through it for smoothing instead of being
	// applied instantly. Leave nil on the server.
	Translation *translation.Buffer

	// Scripting, if non-nil, is consulted for a registered type's merge
	// hook/field validator (registry.TypeRegistry.RegisterScripted). Leave
	// nil to merge every type with plain registry.Merge.
	Scripting *scripting.Engine

	// Metrics, if non-nil, receives received/dropped snapshot counters.
	Metrics *metrics.Collectors

	Log *zap.Logger
}

// Receiver applies incoming snapshots to the scene graph (one per process,
// paired with exactly one Sender sharing the same ApplyState).
type Receiver struct {
	cfg        Config
	applyState *state.ApplyState
	log        *zap.Logger
}

// New constructs a Receiver. applyState must be the same instance passed to
// the paired Sender.
func New(cfg Config, applyState *state.ApplyState) *Receiver {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Receiver{cfg: cfg, applyState: applyState, log: log}
}

// HandleSnapshot decodes and applies one incoming snapshot payload (the
// bytes following the frame header) received from fromPeer.
func (r *Receiver) HandleSnapshot(fromPeer uint32, payload []byte) error {
	rd := wire.NewReader(payload)
	hdr, err := proto.DecodeHeader(rd)
	if err != nil {
		return fmt.Errorf("snapshot header: %w", err)
	}

	if last := r.cfg.Tracker.LastIncoming(fromPeer); hdr.Sequence <= last {
		r.log.Debug("dropping duplicate/out-of-order snapshot",
			zap.Uint32("peer", fromPeer), zap.Uint64("sequence", hdr.Sequence), zap.Uint64("last", last))
		if r.cfg.Metrics != nil {
			r.cfg.Metrics.SnapshotsDropped.WithLabelValues("duplicate_or_out_of_order").Inc()
		}
		return nil
	}
	if !r.cfg.IsServer && hdr.Origin == r.cfg.SelfPeer {
		r.log.Debug("dropping own echo from server broadcast", zap.Uint32("peer", fromPeer), zap.Uint32("origin", hdr.Origin))
		if r.cfg.Metrics != nil {
			r.cfg.Metrics.SnapshotsDropped.WithLabelValues("own_echo").Inc()
		}
		return nil
	}
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.SnapshotsReceived.Inc()
	}

	release := r.applyState.Begin(r.cfg.Sender.DrainDeferred)
	defer release()

	it := proto.NewOperationIteratorFromReader(rd, hdr.OperationCount)
	for {
		code, opPayload, ok, err := it.Next()
		if !ok {
			break
		}
		if err != nil {
			r.log.Warn("truncated operation, aborting snapshot", zap.Error(err), zap.Uint32("peer", fromPeer))
			break
		}
		if err := r.applyOp(code, opPayload); err != nil {
			r.log.Warn("apply operation failed", zap.Error(err), zap.Uint32("peer", fromPeer), zap.Uint8("opCode", uint8(code)))
			if r.cfg.Metrics != nil {
				r.cfg.Metrics.SnapshotsDropped.WithLabelValues("malformed_op").Inc()
			}
		}
	}

	r.cfg.Tracker.MarkDelivered(fromPeer, hdr.Sequence)
	r.cfg.Tracker.MarkAck(fromPeer, hdr.Ack)
	return nil
}

func (r *Receiver) applyOp(code proto.OpCode, payload []byte) error {
	switch code {
	case proto.OpCreate:
		d, err := proto.DecodeCreate(payload)
		if err != nil {
			return err
		}
		return r.handleCreate(d)
	case proto.OpDestroy:
		d, err := proto.DecodeDestroy(payload)
		if err != nil {
			return err
		}
		return r.handleDestroy(d)
	case proto.OpAddComponent:
		d, err := proto.DecodeAddComponent(payload)
		if err != nil {
			return err
		}
		return r.handleAddComponent(d)
	case proto.OpRemoveComponent:
		d, err := proto.DecodeRemoveComponent(payload)
		if err != nil {
			return err
		}
		return r.handleRemoveComponent(d)
	case proto.OpSetField:
		d, err := proto.DecodeSetField(payload)
		if err != nil {
			return err
		}
		return r.handleSetField(d)
	default:
		return fmt.Errorf("unknown op code %d", code)
	}
}

// handleCreate registers a new GameObject at d.Path. A placeholder
// Transform3d is attached at construction time — the scene graph invariant
// requires every object to carry a transform from the moment it exists, but
// the wire Create op carries no component data of its own (spec.md §6:
// components always follow as separate AddComponent records). The first
// AddComponent(Transform3d) that follows is reconciled into this placeholder
// by handleAddComponent's merge-on-conflict path rather than rejected.
func (r *Receiver) handleCreate(d proto.CreateData) error {
	if r.cfg.Manager.Has(d.Path) {
		r.log.Debug("create for already-registered path, ignoring", zap.String("path", d.Path))
		return nil
	}
	parentPath := scene.ParentPath(d.Path)
	name := scene.NameOf(d.Path)

	placeholder := components.NewTransform3d()
	obj := scene.NewGameObject(name, d.TypeName, placeholder, false, d.Owner)
	if err := r.cfg.Manager.Register(obj, parentPath, false); err != nil {
		return fmt.Errorf("register %q: %w", d.Path, err)
	}
	r.cfg.Sender.MarkDirty(obj)
	return nil
}

func (r *Receiver) handleDestroy(d proto.DestroyData) error {
	if !r.cfg.Manager.Has(d.Path) {
		return nil
	}
	return r.cfg.Manager.Unregister(d.Path)
}

func (r *Receiver) handleAddComponent(d proto.AddComponentData) error {
	obj, ok := r.cfg.Manager.Get(d.Path)
	if !ok {
		return fmt.Errorf("addComponent: %w: %q", scene.ErrNotFound, d.Path)
	}

	incoming := r.cfg.Registry.Instantiate(d.ComponentTypeID)
	if incoming == nil {
		return fmt.Errorf("addComponent: unknown component type %d", d.ComponentTypeID)
	}
	if err := decodeInto(incoming, d.Blob); err != nil {
		return fmt.Errorf("addComponent: %w", err)
	}

	if existing, has := obj.GetComponent(d.ComponentTypeID); has {
		if err := r.mergeScripted(existing, incoming); err != nil {
			return fmt.Errorf("addComponent: %w", err)
		}
		r.cfg.Sender.MarkDirtyComponent(obj, d.ComponentTypeID)
		return nil
	}

	if err := obj.AddComponent(incoming); err != nil {
		return fmt.Errorf("addComponent: %w", err)
	}
	r.cfg.Sender.MarkDirtyComponent(obj, d.ComponentTypeID)
	return nil
}

func (r *Receiver) handleRemoveComponent(d proto.RemoveComponentData) error {
	obj, ok := r.cfg.Manager.Get(d.Path)
	if !ok {
		return fmt.Errorf("removeComponent: %w: %q", scene.ErrNotFound, d.Path)
	}
	existing, has := obj.GetComponent(d.ComponentTypeID)
	if !has {
		return nil
	}
	if err := obj.RemoveComponent(d.ComponentTypeID); err != nil {
		return fmt.Errorf("removeComponent: %w", err)
	}
	r.cfg.Sender.ForgetHash(existing)
	r.cfg.Sender.MarkDirtyComponent(obj, d.ComponentTypeID)
	return nil
}

// handleSetField applies a whole-component replacement. On the client, a
// Transform3d update is routed through the translation buffer for smoothing
// instead of being written immediately (spec.md §4.10); everything else, and
// every update on the server, is merged in place right away.
func (r *Receiver) handleSetField(d proto.SetFieldData) error {
	obj, ok := r.cfg.Manager.Get(d.Path)
	if !ok {
		return fmt.Errorf("setField: %w: %q", scene.ErrNotFound, d.Path)
	}
	if obj.IsAuthoritative(r.cfg.SelfPeer, r.cfg.IsServer) {
		r.log.Debug("dropping remote SetField on a locally-owned object", zap.String("path", d.Path))
		return nil
	}
	existing, has := obj.GetComponent(d.ComponentTypeID)
	if !has {
		return fmt.Errorf("setField: %w: component %d on %q", scene.ErrNotFound, d.ComponentTypeID, d.Path)
	}

	incoming := r.cfg.Registry.Instantiate(d.ComponentTypeID)
	if incoming == nil {
		return fmt.Errorf("setField: unknown component type %d", d.ComponentTypeID)
	}
	if err := decodeInto(incoming, d.Blob); err != nil {
		return fmt.Errorf("setField: %w", err)
	}

	if !r.cfg.IsServer && d.ComponentTypeID == components.Transform3DTypeID && r.cfg.Translation != nil {
		if target, ok := incoming.(*components.Transform3d); ok {
			if transform, ok := existing.(*components.Transform3d); ok {
				r.cfg.Translation.Enqueue(obj, transform, target.LocalPosition, target.LocalRotation, target.LocalScale)
				return nil
			}
		}
	}

	if err := r.mergeScripted(existing, incoming); err != nil {
		return fmt.Errorf("setField: %w", err)
	}
	r.cfg.Sender.MarkDirtyComponent(obj, d.ComponentTypeID)
	return nil
}

// mergeScripted merges incoming into existing via registry.Merge, then, if a
// scripting.Engine is configured and existing's type has a registered merge
// hook, runs the hook over the merged fields and applies whatever it
// changes. Before merging, every field incoming carries is passed through
// the type's field validator (if any); a rejected field is dropped from the
// incoming component before the merge happens, so a malformed or
// out-of-range SetField degrades to a partial apply rather than being
// accepted wholesale.
func (r *Receiver) mergeScripted(existing, incoming ecs.Component) error {
	if r.cfg.Scripting != nil {
		if validator, ok := r.cfg.Registry.ValidatorName(incoming.TypeID()); ok {
			rejected := map[string]any{}
			for name, value := range registry.ToFieldMap(incoming) {
				if ok, reason := r.cfg.Scripting.ValidateField(validator, name, value); !ok {
					r.log.Debug("field validator rejected field", zap.String("field", name), zap.String("reason", reason))
					rejected[name] = registry.ToFieldMap(existing)[name] // revert to existing's current value
				}
			}
			if len(rejected) > 0 {
				registry.FromFieldMap(incoming, rejected)
			}
		}
	}

	changed := registry.Merge(existing, incoming)

	if changed && r.cfg.Scripting != nil {
		if hook, ok := r.cfg.Registry.MergeHookName(existing.TypeID()); ok {
			before := registry.ToFieldMap(existing)
			after, err := r.cfg.Scripting.CallMergeHook(hook, before)
			if err != nil {
				return err
			}
			registry.FromFieldMap(existing, after)
		}
	}
	return nil
}

func decodeInto(c ecs.Component, blob []byte) error {
	return c.Deserialize(wire.NewReader(blob))
}
