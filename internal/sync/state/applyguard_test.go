package state

import "testing"

func TestBeginEndTracksDepth(t *testing.T) {
	s := New()
	if s.Depth() != 0 {
		t.Fatalf("fresh ApplyState depth = %d, want 0", s.Depth())
	}
	end := s.Begin(nil)
	if s.Depth() != 1 {
		t.Fatalf("depth after Begin = %d, want 1", s.Depth())
	}
	end()
	if s.Depth() != 0 {
		t.Fatalf("depth after end = %d, want 0", s.Depth())
	}
}

func TestNestedScopesOnlyDrainAtZero(t *testing.T) {
	s := New()
	var drains int
	onDrain := func() { drains++ }

	endOuter := s.Begin(onDrain)
	endInner := s.Begin(onDrain)
	if s.Depth() != 2 {
		t.Fatalf("depth = %d, want 2", s.Depth())
	}

	endInner()
	if drains != 0 {
		t.Fatalf("onDrain fired before depth reached zero: %d", drains)
	}

	endOuter()
	if drains != 1 {
		t.Fatalf("onDrain fire count = %d, want exactly 1", drains)
	}
	if s.Depth() != 0 {
		t.Fatalf("depth = %d, want 0", s.Depth())
	}
}

func TestOnDrainMayBeNil(t *testing.T) {
	s := New()
	end := s.Begin(nil)
	end() // must not panic
	if s.Depth() != 0 {
		t.Fatalf("depth = %d, want 0", s.Depth())
	}
}
