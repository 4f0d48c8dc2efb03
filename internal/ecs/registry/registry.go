// Package registry implements the component Type Registry (C1) and the
// generic field-wise Merger (C2).
//
// Grounded on original_source/.../Utility/TypeRegistrar.hpp and
// Demangler.hpp for the bidirectional name<->id index (TypeRegistry.NameOf/
// IDByName), and on
// original_source/.../ECS/MergeSupport.hpp for the merge contract — ported
// from compile-time trait detection + per-type thunk registration to Go's
// runtime reflect package, since Go has no equivalent of C++ template
// metaprogramming. See DESIGN.md for the full rationale.
package registry

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/scenegraph/syncengine/internal/ecs"
)

// Factory default-constructs a component. Registered factories must always
// return the same concrete pointer type for a given TypeID.
type Factory func() ecs.Component

type typeEntry struct {
	factory Factory
	goType  reflect.Type
	name    string

	// mergeHook and validator, if set, name Lua-global functions a
	// scripting.Engine should invoke after a merge changes this type's
	// fields, and before an incoming component is merged into it
	// respectively. Core code never calls into scripting directly from
	// Register/Merge; these are just carried alongside the type entry for
	// sync/receiver to consult when a scripting.Engine is configured.
	mergeHook string
	validator string
}

// TypeRegistry maps component TypeIDs to factories, and runtime names to
// TypeIDs (the NameIndex from original_source's TypeRegistrar/Demangler,
// used for legacy-style lookups by name — e.g. a scripted hook identifying a
// component type by its Lua-facing name rather than its numeric id).
type TypeRegistry struct {
	mu     sync.RWMutex
	byID   map[ecs.TypeID]typeEntry
	byName map[string]ecs.TypeID
	log    *zap.Logger
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry(log *zap.Logger) *TypeRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	return &TypeRegistry{
		byID:   make(map[ecs.TypeID]typeEntry),
		byName: make(map[string]ecs.TypeID),
		log:    log,
	}
}

// Register associates id with factory under name. Registering the same id
// with a factory producing the same concrete type is idempotent (re-running
// package init code, tests, etc.). Registering the same id to a different
// concrete type is a programmer error: spec.md §7 classifies
// "typeId double-registration to different types" as fatal at startup, so
// this panics (logging the conflict first) rather than returning an error a
// caller might ignore.
func (r *TypeRegistry) Register(id ecs.TypeID, name string, factory Factory) {
	sample := factory()
	t := reflect.TypeOf(sample)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[id]; ok {
		if existing.goType == t {
			return
		}
		r.log.Error("component type id registered to a different type",
			zap.Uint64("typeId", uint64(id)),
			zap.String("existingType", existing.goType.String()),
			zap.String("incomingType", t.String()),
		)
		panic(fmt.Sprintf("ecs: typeId %d already registered as %s, cannot also register %s", id, existing.goType, t))
	}
	r.byID[id] = typeEntry{factory: factory, goType: t, name: name}
	r.byName[name] = id
}

// RegisterScripted is Register plus scripted merge-hook/field-validator
// names, exposed to a host game so it can attach custom merge/validate
// behavior to its own component types without touching core code (see
// internal/scripting). Either name may be empty to skip that hook.
func (r *TypeRegistry) RegisterScripted(id ecs.TypeID, name string, factory Factory, mergeHook, validator string) {
	r.Register(id, name, factory)
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.byID[id]
	e.mergeHook = mergeHook
	e.validator = validator
	r.byID[id] = e
}

// MergeHookName returns the Lua merge-hook function name registered for id,
// if any.
func (r *TypeRegistry) MergeHookName(id ecs.TypeID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	return e.mergeHook, ok && e.mergeHook != ""
}

// ValidatorName returns the Lua field-validator function name registered
// for id, if any.
func (r *TypeRegistry) ValidatorName(id ecs.TypeID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	return e.validator, ok && e.validator != ""
}

// Instantiate default-constructs a new component of the given type, or nil
// if the type id is unknown (spec.md §7: "AddComponent with unknown typeId:
// drop that operation, keep snapshot" — callers are expected to handle nil).
func (r *TypeRegistry) Instantiate(id ecs.TypeID) ecs.Component {
	r.mu.RLock()
	e, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return e.factory()
}

// Has reports whether id is registered.
func (r *TypeRegistry) Has(id ecs.TypeID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// NameOf returns the registered name for id.
func (r *TypeRegistry) NameOf(id ecs.TypeID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	return e.name, ok
}

// IDByName resolves a registered name back to its TypeID.
func (r *TypeRegistry) IDByName(name string) (ecs.TypeID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}
