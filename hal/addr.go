package hal

import "fmt"

// PageLength is the base page length (4 KiB).
const PageLength = 4096

// PAddr is a physical address.
type PAddr uint64

// VAddr is a virtual address.
type VAddr uint64

func (p PAddr) Add(n uint64) PAddr { return p + PAddr(n) }

// AlignUp rounds p up to a multiple of align. It wraps on overflow; callers
// compare the result against p.
func (p PAddr) AlignUp(align uint64) PAddr {
	if align <= 1 {
		return p
	}
	r := uint64(p) % align
	if r == 0 {
		return p
	}
	return p + PAddr(align-r)
}

func (p PAddr) IsAligned(align uint64) bool {
	return align <= 1 || uint64(p)%align == 0
}

func (p PAddr) String() string { return fmt.Sprintf("0x%x", uint64(p)) }

func (v VAddr) Add(n uint64) VAddr { return v + VAddr(n) }

func (v VAddr) AlignDown(align uint64) VAddr {
	if align <= 1 {
		return v
	}
	return v - VAddr(uint64(v)%align)
}

func (v VAddr) IsAligned(align uint64) bool {
	return align <= 1 || uint64(v)%align == 0
}

func (v VAddr) String() string { return fmt.Sprintf("0x%x", uint64(v)) }

// Region is a contiguous range of physical memory.
type Region struct {
	Start  PAddr
	Length uint64
}

// End returns the first address past the region.
func (r Region) End() PAddr { return r.Start + PAddr(r.Length) }

func (r Region) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start, r.End())
}
