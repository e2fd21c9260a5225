package kernel

import (
	"fmt"

	"capos/abi"
	"capos/hal"
)

// page is a one-page object whose contents live in physical memory.
type page struct {
	space *Space
	paddr PAddr
}

func (p page) PAddr() PAddr { return p.paddr }

// Bytes returns the page's physical memory.
func (p page) Bytes() []byte { return p.space.mem.Slice(p.paddr, PageLength) }

// RawPage is a mappable data page.
type RawPage struct{ page }

func (*RawPage) Kind() Kind { return KindRawPage }

// BootstrapRawPage wraps an existing physical page, such as device memory.
// The page is neither allocated from an Untyped nor cleared.
func BootstrapRawPage(s *Space, paddr PAddr) Cap[*RawPage] {
	r := &RawPage{page{s, paddr}}
	return Cap[*RawPage]{AnyCap{space: s, id: s.insert(KindRawPage, r, paddr, PageLength)}}
}

// TaskBufferPage carries one system-call request between a task and the
// kernel.
type TaskBufferPage struct{ page }

func (*TaskBufferPage) Kind() Kind { return KindTaskBufferPage }

// Call decodes the pending request.
func (b *TaskBufferPage) Call() (abi.SystemCall, error) { return abi.Decode(b.Bytes()) }

// Respond fills the response of the pending request.
func (b *TaskBufferPage) Respond(v uint64) error { return abi.SetResponse(b.Bytes(), v) }

// PageTable is an intermediate paging level.
type PageTable struct{ page }

func (*PageTable) Kind() Kind { return KindPageTable }

// TopPageTable is the root of an address space.
type TopPageTable struct{ page }

func (*TopPageTable) Kind() Kind { return KindTopPageTable }

const userEntry = hal.EntryPresent | hal.EntryWritable | hal.EntryUser

// Map installs frame at v, retyping missing intermediate tables from u and
// keeping them alive in pool. frame must be a RawPage or TaskBufferPage.
func (t *TopPageTable) Map(v VAddr, frame Descriptor, u *Untyped, pool *CPool) error {
	f := frame.Any()
	switch f.Kind() {
	case KindRawPage, KindTaskBufferPage:
	default:
		return fmt.Errorf("map %s: %w: %s", v, ErrNotMappable, f.Kind())
	}

	mem := t.space.mem
	table := t.paddr
	for level := hal.PagingLevels; level > 1; level-- {
		i := hal.TableIndex(level, v)
		e := hal.ReadEntry(mem, table, i)
		if e&hal.EntryPresent == 0 {
			next, err := retype[*PageTable](t.space, u)
			if err != nil {
				return fmt.Errorf("map %s: %w", v, err)
			}
			pool.DowngradeFree(next)
			e = hal.MakeEntry(next.PAddr(), userEntry)
			hal.WriteEntry(mem, table, i, e)
			next.Drop()
		}
		table = hal.EntryAddress(e)
	}

	i := hal.TableIndex(1, v)
	if hal.ReadEntry(mem, table, i)&hal.EntryPresent != 0 {
		return fmt.Errorf("map %s: %w", v, ErrAlreadyMapped)
	}
	hal.WriteEntry(mem, table, i, hal.MakeEntry(f.PAddr(), userEntry))
	return nil
}

// Translate returns the physical address v maps to.
func (t *TopPageTable) Translate(v VAddr) (PAddr, bool) {
	return hal.Translate(t.space.mem, t.paddr, v)
}
