package kernel

import (
	"errors"
	"testing"
)

func TestCloneDropRefcount(t *testing.T) {
	s := newTestSpace()
	u := testUntyped(s, 0x10000, 0x10000)
	ch, err := RetypeFrom[*Channel](s, u)
	if err != nil {
		t.Fatal(err)
	}
	id := ch.ID()
	if s.Refs(id) != 1 {
		t.Fatalf("expected 1 ref, got %d", s.Refs(id))
	}

	other := ch.Clone()
	if s.Refs(id) != 2 {
		t.Fatalf("expected 2 refs, got %d", s.Refs(id))
	}

	g := other.Write()
	g.Get().Put(7)
	g.Release()
	g = ch.Read()
	if !g.Get().Pending() {
		t.Fatal("clone does not share the resource")
	}
	g.Release()

	ch.Drop()
	if ch.Valid() {
		t.Fatal("dropped handle still valid")
	}
	if s.Refs(id) != 1 {
		t.Fatalf("expected 1 ref after drop, got %d", s.Refs(id))
	}
	live := s.Live()
	other.Drop()
	if s.Refs(id) != 0 || s.Live() != live-1 {
		t.Fatal("last drop did not release the object")
	}
}

func TestStaleHandlePanics(t *testing.T) {
	s := newTestSpace()
	u := testUntyped(s, 0x10000, 0x10000)
	ch, _ := RetypeFrom[*Channel](s, u)
	stale := ch
	ch.Drop()

	// The slot is recycled for the next object.
	next, _ := RetypeFrom[*Channel](s, u)
	if next.ID().Index != stale.ID().Index || next.ID().Gen == stale.ID().Gen {
		t.Fatalf("expected recycled slot with new generation, got %v vs %v", next.ID(), stale.ID())
	}

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrStaleHandle) {
			t.Fatalf("expected ErrStaleHandle panic, got %v", r)
		}
	}()
	stale.Read()
}

func TestAsChecksKind(t *testing.T) {
	s := newTestSpace()
	u := testUntyped(s, 0x10000, 0x10000)
	if _, ok := As[*Task](u.AnyCap); ok {
		t.Fatal("untyped converted to task")
	}
	if c, ok := As[*Untyped](u.AnyCap); !ok || c.ID() != u.ID() {
		t.Fatal("expected untyped conversion")
	}
	if _, ok := As[*Untyped](AnyCap{}); ok {
		t.Fatal("zero handle converted")
	}
}

func TestDescriptorStringWithoutLock(t *testing.T) {
	s := newTestSpace()
	u := testUntyped(s, 0x10000, 0x10000)
	p, _ := RetypeFrom[*CPool](s, u)
	g := p.Write()
	defer g.Release()
	if got := p.String(); got == "" {
		t.Fatal("empty descriptor string")
	}
}
