package scene

import (
	"testing"

	"github.com/scenegraph/syncengine/internal/ecs/components"
)

func newTestObject(name string) *GameObject {
	return NewGameObject(name, "Widget", components.NewTransform3d(), false, nil)
}

type recordingMarker struct {
	marked []*GameObject
}

func (r *recordingMarker) MarkDirty(obj *GameObject) {
	r.marked = append(r.marked, obj)
}

func TestRegisterRootAndGet(t *testing.T) {
	m := NewManager()
	root := newTestObject("alpha")

	if err := m.Register(root, ".", false); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, ok := m.Get("alpha")
	if !ok || got != root {
		t.Fatalf("Get(alpha) = %v, %v", got, ok)
	}
	if !m.Has("alpha") {
		t.Fatal("Has(alpha) = false")
	}
}

func TestRegisterDuplicateRootRejected(t *testing.T) {
	m := NewManager()
	if err := m.Register(newTestObject("alpha"), ".", false); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := m.Register(newTestObject("alpha"), ".", false); err != ErrDuplicateRoot {
		t.Fatalf("expected ErrDuplicateRoot, got %v", err)
	}
}

func TestRegisterUnderMissingParentFails(t *testing.T) {
	m := NewManager()
	if err := m.Register(newTestObject("child"), "nope", false); err == nil {
		t.Fatal("expected an error registering under a missing parent")
	}
}

func TestRegisterUnderParentAttachesChild(t *testing.T) {
	m := NewManager()
	root := newTestObject("alpha")
	if err := m.Register(root, ".", false); err != nil {
		t.Fatalf("Register root: %v", err)
	}
	child := newTestObject("beta")
	if err := m.Register(child, "alpha", false); err != nil {
		t.Fatalf("Register child: %v", err)
	}
	got, ok := m.Get("alpha.beta")
	if !ok || got != child {
		t.Fatalf("Get(alpha.beta) = %v, %v", got, ok)
	}
}

func TestRegisterNotifiesDirtyMarker(t *testing.T) {
	m := NewManager()
	marker := &recordingMarker{}
	m.SetDirtyMarker(marker)

	root := newTestObject("alpha")
	if err := m.Register(root, ".", true); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(marker.marked) != 1 || marker.marked[0] != root {
		t.Fatalf("marker.marked = %v", marker.marked)
	}
}

func TestRegisterWithMarkDirtyFalseDoesNotNotify(t *testing.T) {
	m := NewManager()
	marker := &recordingMarker{}
	m.SetDirtyMarker(marker)

	if err := m.Register(newTestObject("alpha"), ".", false); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(marker.marked) != 0 {
		t.Fatalf("expected no notifications, got %v", marker.marked)
	}
}

func TestUnregisterCascadesAndNotifies(t *testing.T) {
	m := NewManager()
	marker := &recordingMarker{}
	m.SetDirtyMarker(marker)

	root := newTestObject("alpha")
	if err := m.Register(root, ".", false); err != nil {
		t.Fatalf("Register root: %v", err)
	}
	child := newTestObject("beta")
	if err := m.Register(child, "alpha", false); err != nil {
		t.Fatalf("Register child: %v", err)
	}
	grandchild := newTestObject("gamma")
	if err := m.Register(grandchild, "alpha.beta", false); err != nil {
		t.Fatalf("Register grandchild: %v", err)
	}

	if err := m.Unregister("alpha"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}

	if m.Has("alpha") {
		t.Fatal("root still present after Unregister")
	}
	if !root.Destroyed() || !child.Destroyed() || !grandchild.Destroyed() {
		t.Fatal("expected every node in the subtree to be marked destroyed")
	}
	if len(marker.marked) != 3 {
		t.Fatalf("expected 3 dirty notifications for the cascade, got %d", len(marker.marked))
	}
}

func TestUnregisterMissingPathFails(t *testing.T) {
	m := NewManager()
	if err := m.Unregister("nope"); err == nil {
		t.Fatal("expected an error unregistering a missing path")
	}
}

func TestAllRootsPreservesInsertionOrder(t *testing.T) {
	m := NewManager()
	names := []string{"c", "a", "b"}
	for _, n := range names {
		if err := m.Register(newTestObject(n), ".", false); err != nil {
			t.Fatalf("Register(%s): %v", n, err)
		}
	}
	roots := m.AllRoots()
	if len(roots) != len(names) {
		t.Fatalf("AllRoots len = %d, want %d", len(roots), len(names))
	}
	for i, n := range names {
		if roots[i].Name() != n {
			t.Fatalf("AllRoots()[%d] = %q, want %q", i, roots[i].Name(), n)
		}
	}
}

func TestWalkVisitsDepthFirstPreOrder(t *testing.T) {
	m := NewManager()
	root := newTestObject("alpha")
	if err := m.Register(root, ".", false); err != nil {
		t.Fatalf("Register root: %v", err)
	}
	child := newTestObject("beta")
	if err := m.Register(child, "alpha", false); err != nil {
		t.Fatalf("Register child: %v", err)
	}
	sibling := newTestObject("delta")
	if err := m.Register(sibling, ".", false); err != nil {
		t.Fatalf("Register sibling root: %v", err)
	}
	grandchild := newTestObject("gamma")
	if err := m.Register(grandchild, "alpha.beta", false); err != nil {
		t.Fatalf("Register grandchild: %v", err)
	}

	var order []string
	m.Walk(func(g *GameObject) { order = append(order, g.Name()) })

	want := []string{"alpha", "beta", "gamma", "delta"}
	if len(order) != len(want) {
		t.Fatalf("Walk order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Walk order = %v, want %v", order, want)
		}
	}
}

func TestParentPathAndNameOf(t *testing.T) {
	cases := []struct {
		path       string
		wantParent string
		wantName   string
	}{
		{"alpha", ".", "alpha"},
		{"alpha.beta", "alpha", "beta"},
		{"alpha.beta.gamma", "alpha.beta", "gamma"},
	}
	for _, c := range cases {
		if got := ParentPath(c.path); got != c.wantParent {
			t.Errorf("ParentPath(%q) = %q, want %q", c.path, got, c.wantParent)
		}
		if got := NameOf(c.path); got != c.wantName {
			t.Errorf("NameOf(%q) = %q, want %q", c.path, got, c.wantName)
		}
	}
}
