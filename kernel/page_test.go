package kernel

import (
	"errors"
	"testing"
)

func TestMapRetypesIntermediateTables(t *testing.T) {
	s := newTestSpace()
	u := testUntyped(s, 0x10000, 0x100000)
	pool := newCPool()
	top, _ := RetypeFrom[*TopPageTable](s, u)
	frame, _ := RetypeFrom[*RawPage](s, u)

	ug := u.Write()
	tg := top.Write()
	if err := tg.Get().Map(0x90001000, frame, ug.Get(), pool); err != nil {
		t.Fatal(err)
	}
	if pool.Len() != 3 {
		t.Fatalf("expected 3 intermediate tables in pool, got %d", pool.Len())
	}
	pa, ok := tg.Get().Translate(0x90001010)
	if !ok || pa != frame.PAddr()+0x10 {
		t.Fatalf("unexpected translation %s (%v)", pa, ok)
	}

	ug.Release()
	other, _ := RetypeFrom[*RawPage](s, u)
	ug = u.Write()
	if err := tg.Get().Map(0x90002000, other, ug.Get(), pool); err != nil {
		t.Fatal(err)
	}
	if pool.Len() != 3 {
		t.Fatal("neighbouring page allocated new tables")
	}
	if err := tg.Get().Map(0x90002000, other, ug.Get(), pool); !errors.Is(err, ErrAlreadyMapped) {
		t.Fatalf("expected ErrAlreadyMapped, got %v", err)
	}
	ch, _ := RetypeFrom[*Channel](s, testUntyped(s, 0x200000, 0x1000))
	if err := tg.Get().Map(0x90003000, ch, ug.Get(), pool); !errors.Is(err, ErrNotMappable) {
		t.Fatalf("expected ErrNotMappable, got %v", err)
	}
	tg.Release()
	ug.Release()
}
