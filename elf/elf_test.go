package elf

import (
	"bytes"
	"testing"
)

func TestBuildParse(t *testing.T) {
	code := []byte{0x90, 0x90, 0xc3}
	data := bytes.Repeat([]byte{0xAB}, 5000)
	img := Build(0x400000,
		LoadSegment{VAddr: 0x400000, Data: code},
		LoadSegment{VAddr: 0x401010, Data: data},
	)

	bin, err := Parse(img)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if bin.Entry != 0x400000 {
		t.Fatalf("unexpected entry %s", bin.Entry)
	}
	segs := bin.Loadable()
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[1].VAddr != 0x401010 || segs[1].FileSize != 5000 || segs[1].MemSize != 5000 {
		t.Fatalf("unexpected segment %+v", segs[1])
	}
	if segs[1].Offset%4096 != 0x010 {
		t.Fatalf("segment offset 0x%x not congruent to vaddr", segs[1].Offset)
	}
	if !bytes.Equal(bin.Data(segs[0]), code) {
		t.Fatal("segment 0 data mismatch")
	}
	if !bytes.Equal(bin.Data(segs[1]), data) {
		t.Fatal("segment 1 data mismatch")
	}
}

func TestBuildMemSize(t *testing.T) {
	img := Build(0x400000, LoadSegment{VAddr: 0x400000, Data: []byte{1}, MemSize: 0x2000})
	bin, err := Parse(img)
	if err != nil {
		t.Fatal(err)
	}
	if s := bin.Loadable()[0]; s.FileSize == s.MemSize {
		t.Fatalf("expected filesz != memsz, got %+v", s)
	}
}

func TestParseGarbage(t *testing.T) {
	if _, err := Parse([]byte("not an elf")); err == nil {
		t.Fatal("expected error")
	}
}
