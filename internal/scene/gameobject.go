// Package scene implements the Scene Graph (C5) and the Scene Manager (C6):
// a hierarchical, path-addressed tree of GameObjects, each carrying a set of
// components keyed by type id.
//
// Grounded on original_source/.../ECS/GameObject.hpp (AddComponent/
// AddComponentDynamic reject-on-duplicate, AddChild reject-on-duplicate-name,
// GetTransform convenience accessor) and GameObjectManager.hpp (path-indexed
// registry, register/unregister, dotted-path resolution). Per spec.md §5 the
// graph is main-thread-only — no internal locking here; callers from other
// goroutines must post through internal/exec.
package scene

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/scenegraph/syncengine/internal/ecs"
)

var (
	ErrComponentExists   = errors.New("scene: component of that type already exists")
	ErrComponentNotFound = errors.New("scene: component not found")
	ErrDuplicateChild    = errors.New("scene: a child with that name already exists")
	ErrChildNotFound     = errors.New("scene: child not found")
)

var nextNetworkID atomic.Uint64

type componentSlot struct {
	component  ecs.Component
	wasAdded   bool
	wasRemoved bool
}

// GameObject is one node of the scene graph. A parent holds its children in
// its children map; each child keeps a plain back-pointer to its parent (nil
// for a root), which detaching a child clears.
type GameObject struct {
	networkID uint64
	name      string
	// Kind is the free-form "typeName" string carried by the wire Create
	// op. Core never interprets it; see DESIGN.md's Open Question
	// resolution.
	Kind string

	local        bool
	owningClient *uint32
	justCreated  bool
	destroyed    bool

	parent *GameObject

	components     map[ecs.TypeID]*componentSlot
	componentOrder []ecs.TypeID

	children   map[string]*GameObject
	childOrder []string
}

// NewGameObject constructs a GameObject named name with transform as its
// first (and, per the scene graph invariant, mandatory) component.
// owningClient, if non-nil, makes the peer with that id authoritative for
// this object instead of the server. local objects are never replicated
// (spec.md's MarkDirty guard: "if go.local: return").
func NewGameObject(name, kind string, transform ecs.Component, local bool, owningClient *uint32) *GameObject {
	g := &GameObject{
		networkID:    nextNetworkID.Add(1),
		name:         name,
		Kind:         kind,
		local:        local,
		owningClient: owningClient,
		justCreated:  true,
		components:   make(map[ecs.TypeID]*componentSlot),
		children:     make(map[string]*GameObject),
	}
	_ = g.AddComponent(transform)
	return g
}

// NetworkID returns this object's process-local unique id. It has no wire
// role; paths are the replicated identity.
func (g *GameObject) NetworkID() uint64 { return g.networkID }

// Name returns the object's local (non-qualified) name.
func (g *GameObject) Name() string { return g.name }

// OwningClient returns the peer id authoritative for this object, if set.
func (g *GameObject) OwningClient() (uint32, bool) {
	if g.owningClient == nil {
		return 0, false
	}
	return *g.owningClient, true
}

// IsLocal reports whether this object is purely client-local and must never
// be replicated.
func (g *GameObject) IsLocal() bool { return g.local }

// JustCreated reports whether this object has not yet had its Create op
// emitted by the sender.
func (g *GameObject) JustCreated() bool { return g.justCreated }

// ClearJustCreated marks the object as having had its Create op emitted.
func (g *GameObject) ClearJustCreated() { g.justCreated = false }

// Destroyed reports whether this object has been marked for destruction.
func (g *GameObject) Destroyed() bool { return g.destroyed }

// MarkDestroyed is a one-way transition; repeated calls are no-ops.
func (g *GameObject) MarkDestroyed() { g.destroyed = true }

// IsAuthoritative reports whether the peer identified by (selfPeer,
// isServer) is authoritative for this object: the server is authoritative
// over any object with no explicit owner; a client is authoritative only
// over objects it owns (spec.md §4.5: "owningClient absent or equal to
// local peer id on server; locally controlled on client").
func (g *GameObject) IsAuthoritative(selfPeer uint32, isServer bool) bool {
	owner, has := g.OwningClient()
	if isServer {
		return !has
	}
	return has && owner == selfPeer
}

// Parent returns the non-owning parent reference, or nil for a root.
func (g *GameObject) Parent() *GameObject { return g.parent }

// AddComponent attaches c, rejecting a type already present (spec.md §4.5:
// "addComponent on a type already present is rejected; callers must
// remove-then-add"). The slot starts with wasAdded=true.
func (g *GameObject) AddComponent(c ecs.Component) error {
	if _, exists := g.components[c.TypeID()]; exists {
		return ErrComponentExists
	}
	g.components[c.TypeID()] = &componentSlot{component: c, wasAdded: true}
	g.componentOrder = append(g.componentOrder, c.TypeID())
	return nil
}

// AddComponentDynamic is AddComponent by an already-instantiated component
// whose concrete type is only known at runtime (e.g. decoded off the wire
// via the type registry). In Go both typed and dynamic construction produce
// the same ecs.Component interface value, so this collapses to AddComponent
// — kept as a distinct name for parity with spec.md's addComponentDynamic
// operation.
func (g *GameObject) AddComponentDynamic(c ecs.Component) error {
	return g.AddComponent(c)
}

// RemoveComponent detaches the component of the given type, if present.
func (g *GameObject) RemoveComponent(typeID ecs.TypeID) error {
	slot, ok := g.components[typeID]
	if !ok {
		return ErrComponentNotFound
	}
	slot.wasRemoved = true
	delete(g.components, typeID)
	for i, id := range g.componentOrder {
		if id == typeID {
			g.componentOrder = append(g.componentOrder[:i], g.componentOrder[i+1:]...)
			break
		}
	}
	return nil
}

// HasComponent reports whether a component of typeID is attached.
func (g *GameObject) HasComponent(typeID ecs.TypeID) bool {
	_, ok := g.components[typeID]
	return ok
}

// GetComponent returns the component of typeID, if attached.
func (g *GameObject) GetComponent(typeID ecs.TypeID) (ecs.Component, bool) {
	slot, ok := g.components[typeID]
	if !ok {
		return nil, false
	}
	return slot.component, true
}

// ComponentWasAdded reports whether the component of typeID still carries
// its transient "just added" flag.
func (g *GameObject) ComponentWasAdded(typeID ecs.TypeID) bool {
	slot, ok := g.components[typeID]
	return ok && slot.wasAdded
}

// ClearComponentWasAdded clears the transient "just added" flag.
func (g *GameObject) ClearComponentWasAdded(typeID ecs.TypeID) {
	if slot, ok := g.components[typeID]; ok {
		slot.wasAdded = false
	}
}

// Components returns every attached component in insertion order. Insertion
// order is part of the wire contract (spec.md §4.5): subtree serialization
// emits components in this order, and two independent runs applying the
// same ops must produce byte-identical serializations.
func (g *GameObject) Components() []ecs.Component {
	out := make([]ecs.Component, 0, len(g.componentOrder))
	for _, id := range g.componentOrder {
		out = append(out, g.components[id].component)
	}
	return out
}

// AddChild attaches child under g, rejecting a same-named existing child
// (spec.md §4.5).
func (g *GameObject) AddChild(child *GameObject) error {
	if _, exists := g.children[child.name]; exists {
		return ErrDuplicateChild
	}
	if child.parent != nil {
		child.parent.detachChildLocked(child.name)
	}
	child.parent = g
	g.children[child.name] = child
	g.childOrder = append(g.childOrder, child.name)
	return nil
}

// RemoveChild detaches the named child, if present.
func (g *GameObject) RemoveChild(name string) error {
	child, ok := g.children[name]
	if !ok {
		return ErrChildNotFound
	}
	child.parent = nil
	g.detachChildLocked(name)
	return nil
}

func (g *GameObject) detachChildLocked(name string) {
	delete(g.children, name)
	for i, n := range g.childOrder {
		if n == name {
			g.childOrder = append(g.childOrder[:i], g.childOrder[i+1:]...)
			break
		}
	}
}

// GetChild returns the named child, if present.
func (g *GameObject) GetChild(name string) (*GameObject, bool) {
	c, ok := g.children[name]
	return c, ok
}

// Children returns every direct child in insertion order.
func (g *GameObject) Children() []*GameObject {
	out := make([]*GameObject, 0, len(g.childOrder))
	for _, n := range g.childOrder {
		out = append(out, g.children[n])
	}
	return out
}

// SetParent reparents g under newParent, or detaches it to a root if
// newParent is nil.
func (g *GameObject) SetParent(newParent *GameObject) error {
	if g.parent != nil {
		g.parent.detachChildLocked(g.name)
		g.parent = nil
	}
	if newParent == nil {
		return nil
	}
	return newParent.AddChild(g)
}

// AbsolutePath returns the dot-separated path from the scene root to g. A
// root object's path is just its name.
func (g *GameObject) AbsolutePath() string {
	if g.parent == nil {
		return g.name
	}
	var parts []string
	for n := g; n != nil; n = n.parent {
		parts = append(parts, n.name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// Update recursively visits components in insertion order, then children in
// insertion order (spec.md §4.5).
func (g *GameObject) Update(visit func(ecs.Component)) {
	if visit != nil {
		for _, c := range g.Components() {
			visit(c)
		}
	}
	for _, c := range g.Children() {
		c.Update(visit)
	}
}

// Render recursively visits components then children, like Update, but is
// never invoked on the server (spec.md §4.5: "render() is skipped entirely
// on server" — enforced by the caller, not here).
func (g *GameObject) Render(visit func(ecs.Component)) {
	g.Update(visit)
}
