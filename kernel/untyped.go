package kernel

import (
	"fmt"

	"capos/hal"
)

// Untyped is a bump allocator over one physical region. Memory it hands out
// is never returned.
type Untyped struct {
	start  PAddr
	end    PAddr
	cursor PAddr
}

func (*Untyped) Kind() Kind { return KindUntyped }

// BootstrapUntyped wraps a free physical region reported by the machine.
func BootstrapUntyped(s *Space, r hal.Region) Cap[*Untyped] {
	u := &Untyped{start: r.Start, end: r.End(), cursor: r.Start}
	return Cap[*Untyped]{AnyCap{space: s, id: s.insert(KindUntyped, u, r.Start, r.Length)}}
}

// Allocate carves size bytes aligned to align. On failure the cursor does
// not move.
func (u *Untyped) Allocate(size, align uint64) (PAddr, error) {
	start := u.cursor.AlignUp(align)
	if start < u.cursor || start > u.end || size > uint64(u.end-start) {
		return 0, fmt.Errorf("%w: need 0x%x (align 0x%x) at %s, region ends %s",
			ErrOutOfMemory, size, align, u.cursor, u.end)
	}
	u.cursor = start + PAddr(size)
	return start, nil
}

func (u *Untyped) Start() PAddr      { return u.start }
func (u *Untyped) Length() uint64    { return uint64(u.end - u.start) }
func (u *Untyped) Remaining() uint64 { return uint64(u.end - u.cursor) }

func (u *Untyped) String() string {
	return fmt.Sprintf("Untyped[%s, %s) cursor %s", u.start, u.end, u.cursor)
}
