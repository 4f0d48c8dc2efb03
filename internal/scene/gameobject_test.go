package scene

import (
	"testing"

	"github.com/scenegraph/syncengine/internal/ecs"
	"github.com/scenegraph/syncengine/internal/ecs/components"
)

func TestNewGameObjectCarriesTransformAsFirstComponent(t *testing.T) {
	transform := components.NewTransform3d()
	g := NewGameObject("alpha", "Widget", transform, false, nil)

	if !g.JustCreated() {
		t.Fatal("a freshly constructed object must report JustCreated")
	}
	if !g.HasComponent(components.Transform3DTypeID) {
		t.Fatal("expected the transform to be attached")
	}
	comps := g.Components()
	if len(comps) != 1 || comps[0] != transform {
		t.Fatalf("Components() = %v, want [transform]", comps)
	}
}

func TestAddComponentRejectsDuplicateType(t *testing.T) {
	g := NewGameObject("alpha", "Widget", components.NewTransform3d(), false, nil)
	if err := g.AddComponent(components.NewTransform3d()); err != ErrComponentExists {
		t.Fatalf("expected ErrComponentExists, got %v", err)
	}
}

func TestRemoveComponentThenAddSucceeds(t *testing.T) {
	g := NewGameObject("alpha", "Widget", components.NewTransform3d(), false, nil)
	if err := g.RemoveComponent(components.Transform3DTypeID); err != nil {
		t.Fatalf("RemoveComponent: %v", err)
	}
	if g.HasComponent(components.Transform3DTypeID) {
		t.Fatal("component still present after RemoveComponent")
	}
	if err := g.AddComponent(components.NewTransform3d()); err != nil {
		t.Fatalf("re-AddComponent after remove: %v", err)
	}
}

func TestRemoveUnknownComponentFails(t *testing.T) {
	g := NewGameObject("alpha", "Widget", components.NewTransform3d(), false, nil)
	if err := g.RemoveComponent(ecs.TypeID(9999)); err != ErrComponentNotFound {
		t.Fatalf("expected ErrComponentNotFound, got %v", err)
	}
}

func TestComponentWasAddedClearsIndependently(t *testing.T) {
	g := NewGameObject("alpha", "Widget", components.NewTransform3d(), false, nil)
	if !g.ComponentWasAdded(components.Transform3DTypeID) {
		t.Fatal("freshly added component should report wasAdded")
	}
	g.ClearComponentWasAdded(components.Transform3DTypeID)
	if g.ComponentWasAdded(components.Transform3DTypeID) {
		t.Fatal("wasAdded should be cleared")
	}
}

func TestAddChildRejectsDuplicateName(t *testing.T) {
	parent := NewGameObject("alpha", "Widget", components.NewTransform3d(), false, nil)
	if err := parent.AddChild(NewGameObject("beta", "Widget", components.NewTransform3d(), false, nil)); err != nil {
		t.Fatalf("first AddChild: %v", err)
	}
	if err := parent.AddChild(NewGameObject("beta", "Widget", components.NewTransform3d(), false, nil)); err != ErrDuplicateChild {
		t.Fatalf("expected ErrDuplicateChild, got %v", err)
	}
}

func TestSetParentReparentsAndDetaches(t *testing.T) {
	oldParent := NewGameObject("old", "Widget", components.NewTransform3d(), false, nil)
	newParent := NewGameObject("new", "Widget", components.NewTransform3d(), false, nil)
	child := NewGameObject("child", "Widget", components.NewTransform3d(), false, nil)

	if err := oldParent.AddChild(child); err != nil {
		t.Fatalf("AddChild: %v", err)
	}
	if err := child.SetParent(newParent); err != nil {
		t.Fatalf("SetParent: %v", err)
	}
	if _, ok := oldParent.GetChild("child"); ok {
		t.Fatal("child still attached to oldParent")
	}
	if got, ok := newParent.GetChild("child"); !ok || got != child {
		t.Fatalf("newParent.GetChild(child) = %v, %v", got, ok)
	}
	if child.Parent() != newParent {
		t.Fatal("child.Parent() does not point at newParent")
	}
}

func TestAbsolutePathReflectsNesting(t *testing.T) {
	root := NewGameObject("alpha", "Widget", components.NewTransform3d(), false, nil)
	child := NewGameObject("beta", "Widget", components.NewTransform3d(), false, nil)
	grandchild := NewGameObject("gamma", "Widget", components.NewTransform3d(), false, nil)

	if err := root.AddChild(child); err != nil {
		t.Fatalf("AddChild: %v", err)
	}
	if err := child.AddChild(grandchild); err != nil {
		t.Fatalf("AddChild: %v", err)
	}
	if got := grandchild.AbsolutePath(); got != "alpha.beta.gamma" {
		t.Fatalf("AbsolutePath() = %q, want alpha.beta.gamma", got)
	}
	if got := root.AbsolutePath(); got != "alpha" {
		t.Fatalf("root.AbsolutePath() = %q, want alpha", got)
	}
}

func TestIsAuthoritativeServerOwnsUnownedObjects(t *testing.T) {
	g := NewGameObject("alpha", "Widget", components.NewTransform3d(), false, nil)
	if !g.IsAuthoritative(0, true) {
		t.Fatal("server must be authoritative over an unowned object")
	}
	if g.IsAuthoritative(7, false) {
		t.Fatal("a client must not be authoritative over an unowned object")
	}
}

func TestIsAuthoritativeClientOwnsItsObject(t *testing.T) {
	owner := uint32(7)
	g := NewGameObject("alpha", "Widget", components.NewTransform3d(), false, &owner)

	if g.IsAuthoritative(0, true) {
		t.Fatal("server must not be authoritative over a client-owned object")
	}
	if !g.IsAuthoritative(7, false) {
		t.Fatal("the owning client must be authoritative over its own object")
	}
	if g.IsAuthoritative(8, false) {
		t.Fatal("a different client must not be authoritative over someone else's object")
	}

	gotOwner, ok := g.OwningClient()
	if !ok || gotOwner != owner {
		t.Fatalf("OwningClient() = %v, %v", gotOwner, ok)
	}
}

func TestUpdateVisitsComponentsThenChildrenDepthFirst(t *testing.T) {
	root := NewGameObject("alpha", "Widget", components.NewTransform3d(), false, nil)
	child := NewGameObject("beta", "Widget", components.NewTransform3d(), false, nil)
	if err := root.AddChild(child); err != nil {
		t.Fatalf("AddChild: %v", err)
	}

	var visited int
	root.Update(func(c ecs.Component) { visited++ })
	if visited != 2 {
		t.Fatalf("expected 2 component visits (root + child transforms), got %d", visited)
	}
}
