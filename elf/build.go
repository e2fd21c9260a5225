package elf

import (
	goelf "debug/elf"
	"encoding/binary"

	"capos/hal"
)

// LoadSegment describes one PT_LOAD segment for Build.
type LoadSegment struct {
	VAddr hal.VAddr
	Data  []byte
	// MemSize defaults to len(Data).
	MemSize uint64
	Flags   goelf.ProgFlag
}

const (
	headerSize   = 64
	phentSize    = 56
	segmentAlign = hal.PageLength
)

// Build writes a static little-endian x86-64 executable.
//
// Segment file offsets are congruent to their virtual addresses modulo the
// page length.
func Build(entry hal.VAddr, segs ...LoadSegment) []byte {
	le := binary.LittleEndian

	off := uint64(headerSize + phentSize*len(segs))
	offsets := make([]uint64, len(segs))
	for i, s := range segs {
		want := uint64(s.VAddr) % segmentAlign
		if off%segmentAlign != want {
			off += (want - off%segmentAlign + segmentAlign) % segmentAlign
		}
		offsets[i] = off
		off += uint64(len(s.Data))
	}

	out := make([]byte, off)
	copy(out, []byte{0x7f, 'E', 'L', 'F', byte(goelf.ELFCLASS64), byte(goelf.ELFDATA2LSB), byte(goelf.EV_CURRENT)})
	le.PutUint16(out[16:], uint16(goelf.ET_EXEC))
	le.PutUint16(out[18:], uint16(goelf.EM_X86_64))
	le.PutUint32(out[20:], uint32(goelf.EV_CURRENT))
	le.PutUint64(out[24:], uint64(entry))
	le.PutUint64(out[32:], headerSize)
	le.PutUint16(out[52:], headerSize)
	le.PutUint16(out[54:], phentSize)
	le.PutUint16(out[56:], uint16(len(segs)))
	le.PutUint16(out[58:], 64)

	for i, s := range segs {
		ph := out[headerSize+phentSize*i:]
		memsz := s.MemSize
		if memsz == 0 {
			memsz = uint64(len(s.Data))
		}
		flags := s.Flags
		if flags == 0 {
			flags = goelf.PF_R | goelf.PF_X
		}
		le.PutUint32(ph[0:], uint32(goelf.PT_LOAD))
		le.PutUint32(ph[4:], uint32(flags))
		le.PutUint64(ph[8:], offsets[i])
		le.PutUint64(ph[16:], uint64(s.VAddr))
		le.PutUint64(ph[24:], uint64(s.VAddr))
		le.PutUint64(ph[32:], uint64(len(s.Data)))
		le.PutUint64(ph[40:], memsz)
		le.PutUint64(ph[48:], segmentAlign)
		copy(out[offsets[i]:], s.Data)
	}
	return out
}
