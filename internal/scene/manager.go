package scene

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateRoot is returned by Register when parentPath is "." and a root
// with that name already exists.
var ErrDuplicateRoot = errors.New("scene: a root object with that name already exists")

// ErrNotFound is returned when a path does not resolve to any object.
var ErrNotFound = errors.New("scene: path not found")

// DirtyMarker is the subset of the Sender (C8) that the Scene Manager needs:
// notifying it that an object (or, for a destroy cascade, several objects)
// must be replicated. Sender implements this interface structurally; Scene
// depends only on this interface, not on the sync/sender package, to avoid
// an import cycle (sender does depend on scene.GameObject).
type DirtyMarker interface {
	MarkDirty(obj *GameObject)
}

// Manager is the process-wide, path-indexed scene index (C6). Grounded on
// original_source/.../ECS/GameObjectManager.hpp's Register/Unregister/
// Get/Has/GetAll/SplitPath. Per spec.md §5 it is main-thread-only.
type Manager struct {
	roots     map[string]*GameObject
	rootOrder []string
	dirty     DirtyMarker
}

// NewManager returns an empty Manager. SetDirtyMarker must be called before
// Register/Unregister are used with markDirty=true, since the Sender and
// Manager are constructed in sequence at startup (see cmd/syncserver).
func NewManager() *Manager {
	return &Manager{roots: make(map[string]*GameObject)}
}

// SetDirtyMarker wires the Sender (or a test double) that Register/
// Unregister notify.
func (m *Manager) SetDirtyMarker(d DirtyMarker) {
	m.dirty = d
}

// Register attaches obj under parentPath ("." denotes the scene root) and,
// unless suppressed, notifies the dirty-marker of the new subtree's root
// (spec.md §4.6).
func (m *Manager) Register(obj *GameObject, parentPath string, markDirty bool) error {
	if parentPath == "." {
		if _, exists := m.roots[obj.name]; exists {
			return ErrDuplicateRoot
		}
		m.roots[obj.name] = obj
		m.rootOrder = append(m.rootOrder, obj.name)
	} else {
		parent, ok := m.Get(parentPath)
		if !ok {
			return fmt.Errorf("%w: parent %q", ErrNotFound, parentPath)
		}
		if err := parent.AddChild(obj); err != nil {
			return err
		}
	}
	if markDirty && m.dirty != nil {
		m.dirty.MarkDirty(obj)
	}
	return nil
}

// Unregister cascades destruction of the subtree rooted at path: every node
// in the subtree is marked destroyed, the subtree's root is detached, then
// the dirty-marker is notified once per node (spec.md §4.6; this repo's Open
// Question resolution — see DESIGN.md — makes this cascade, rather than
// original_source's simpler single-node erase, authoritative).
func (m *Manager) Unregister(path string) error {
	obj, ok := m.Get(path)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, path)
	}

	subtree := collectSubtree(obj)
	for _, n := range subtree {
		n.MarkDestroyed()
	}

	if obj.parent == nil {
		delete(m.roots, obj.name)
		for i, n := range m.rootOrder {
			if n == obj.name {
				m.rootOrder = append(m.rootOrder[:i], m.rootOrder[i+1:]...)
				break
			}
		}
	} else {
		_ = obj.parent.RemoveChild(obj.name)
	}

	if m.dirty != nil {
		for _, n := range subtree {
			m.dirty.MarkDirty(n)
		}
	}
	return nil
}

// collectSubtree walks obj and its descendants pre-order (node first, then
// children in insertion order), deterministically — spec.md scenario 6
// requires a consistent order across runs, not a specific one.
func collectSubtree(obj *GameObject) []*GameObject {
	out := []*GameObject{obj}
	for _, c := range obj.Children() {
		out = append(out, collectSubtree(c)...)
	}
	return out
}

// Has reports whether path resolves to an object.
func (m *Manager) Has(path string) bool {
	_, ok := m.Get(path)
	return ok
}

// Get resolves a dotted absolute path to its object.
func (m *Manager) Get(path string) (*GameObject, bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, false
	}
	cur, ok := m.roots[segments[0]]
	if !ok {
		return nil, false
	}
	for _, seg := range segments[1:] {
		cur, ok = cur.GetChild(seg)
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// AllRoots returns every root object in insertion order.
func (m *Manager) AllRoots() []*GameObject {
	out := make([]*GameObject, 0, len(m.rootOrder))
	for _, n := range m.rootOrder {
		out = append(out, m.roots[n])
	}
	return out
}

// Walk visits every object in the scene, depth-first pre-order, root by
// root in insertion order — the order full-tree serialization relies on for
// deterministic, byte-identical output across runs (spec.md testable
// property 3).
func (m *Manager) Walk(fn func(*GameObject)) {
	for _, root := range m.AllRoots() {
		walkSubtree(root, fn)
	}
}

func walkSubtree(obj *GameObject, fn func(*GameObject)) {
	fn(obj)
	for _, c := range obj.Children() {
		walkSubtree(c, fn)
	}
}

// splitPath splits a dotted path into segments, dropping empty segments
// (mirrors original_source's SplitPath).
func splitPath(path string) []string {
	raw := strings.Split(path, ".")
	out := raw[:0]
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParentPath returns the path of path's parent ("." if path is a root's
// path), used by the receiver to resolve where to register a remotely
// created object.
func ParentPath(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return "."
	}
	return path[:i]
}

// NameOf returns the last segment of path.
func NameOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return path
	}
	return path[i+1:]
}
