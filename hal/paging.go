package hal

import "encoding/binary"

// x86-64 4-level paging with 4 KiB leaves.
//
// Level 4 is the top-level table (PML4), level 1 holds leaf entries.
const (
	PagingLevels     = 4
	PageTableEntries = 512

	EntryPresent  uint64 = 1 << 0
	EntryWritable uint64 = 1 << 1
	EntryUser     uint64 = 1 << 2

	maxPhysAddrBits  = 52
	entryAddressMask = ((uint64(1) << maxPhysAddrBits) - 1) &^ 0xfff
)

// TableIndex returns the index into the level-th table for v.
func TableIndex(level int, v VAddr) int {
	shift := 12 + 9*uint(level-1)
	return int((uint64(v) >> shift) & (PageTableEntries - 1))
}

// MakeEntry builds a table entry pointing at p.
func MakeEntry(p PAddr, flags uint64) uint64 {
	return (uint64(p) & entryAddressMask) | flags
}

// EntryAddress extracts the physical address from a table entry.
func EntryAddress(e uint64) PAddr {
	return PAddr(e & entryAddressMask)
}

// ReadEntry reads entry i of the table at physical address table.
func ReadEntry(mem Memory, table PAddr, i int) uint64 {
	b := mem.Slice(table+PAddr(i*8), 8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// WriteEntry writes entry i of the table at physical address table.
func WriteEntry(mem Memory, table PAddr, i int, e uint64) {
	b := mem.Slice(table+PAddr(i*8), 8)
	if b == nil {
		return
	}
	binary.LittleEndian.PutUint64(b, e)
}

// Translate walks the tables rooted at root and returns the physical address
// backing v.
func Translate(mem Memory, root PAddr, v VAddr) (PAddr, bool) {
	if root == 0 {
		return 0, false
	}
	table := root
	for level := PagingLevels; level >= 1; level-- {
		e := ReadEntry(mem, table, TableIndex(level, v))
		if e&EntryPresent == 0 {
			return 0, false
		}
		table = EntryAddress(e)
	}
	return table + PAddr(uint64(v)%PageLength), true
}
