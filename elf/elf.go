// Package elf reads the entry point and program headers of an ELF64 image,
// and writes minimal static images for host user programs.
package elf

import (
	"bytes"
	goelf "debug/elf"
	"fmt"

	"capos/hal"
)

// Segment is one program header.
type Segment struct {
	Type     goelf.ProgType
	Flags    goelf.ProgFlag
	VAddr    hal.VAddr
	Offset   uint64
	FileSize uint64
	MemSize  uint64
}

func (s Segment) Loadable() bool { return s.Type == goelf.PT_LOAD }

// Binary is a parsed image.
type Binary struct {
	Entry    hal.VAddr
	Segments []Segment

	image []byte
}

// Parse reads the file header and program headers of b.
func Parse(b []byte) (*Binary, error) {
	f, err := goelf.NewFile(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("elf: %w", err)
	}
	defer f.Close()

	if f.Class != goelf.ELFCLASS64 {
		return nil, fmt.Errorf("elf: unsupported class %s", f.Class)
	}

	bin := &Binary{Entry: hal.VAddr(f.Entry), image: b}
	for _, p := range f.Progs {
		if p.Off > uint64(len(b)) || p.Filesz > uint64(len(b))-p.Off {
			return nil, fmt.Errorf("elf: segment at 0x%x past end of image", p.Vaddr)
		}
		bin.Segments = append(bin.Segments, Segment{
			Type:     p.Type,
			Flags:    p.Flags,
			VAddr:    hal.VAddr(p.Vaddr),
			Offset:   p.Off,
			FileSize: p.Filesz,
			MemSize:  p.Memsz,
		})
	}
	return bin, nil
}

// Loadable returns the PT_LOAD segments in header order.
func (b *Binary) Loadable() []Segment {
	var out []Segment
	for _, s := range b.Segments {
		if s.Loadable() {
			out = append(out, s)
		}
	}
	return out
}

// Data returns the file bytes of s.
func (b *Binary) Data(s Segment) []byte {
	return b.image[s.Offset : s.Offset+s.FileSize]
}
