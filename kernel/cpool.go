package kernel

import (
	"github.com/bits-and-blooms/bitset"

	"capos/abi"
)

// PoolSize is the fixed width of every CPool.
const PoolSize = 256

// CPool is an indexed table of type-erased capabilities. Callers hold the
// pool's own lock around every method.
type CPool struct {
	slots [PoolSize]AnyCap
	used  *bitset.BitSet
}

func newCPool() *CPool {
	return &CPool{used: bitset.New(PoolSize)}
}

func (*CPool) Kind() Kind { return KindCPool }

// DowngradeAt installs a clone of d at idx. An occupied slot keeps its
// occupant and DowngradeAt reports false.
func (p *CPool) DowngradeAt(d Descriptor, idx abi.Index) bool {
	c := d.Any()
	if idx >= PoolSize || !c.Valid() || p.used.Test(uint(idx)) {
		return false
	}
	p.slots[idx] = c.Clone()
	p.used.Set(uint(idx))
	return true
}

// DowngradeFree installs a clone of d in the lowest empty slot. A full pool
// installs nothing.
func (p *CPool) DowngradeFree(d Descriptor) (abi.Index, bool) {
	c := d.Any()
	if !c.Valid() {
		return 0, false
	}
	i, ok := p.used.NextClear(0)
	if !ok || i >= PoolSize {
		return 0, false
	}
	p.slots[i] = c.Clone()
	p.used.Set(i)
	return abi.Index(i), true
}

// UpgradeAny returns a new handle to the occupant of idx.
func (p *CPool) UpgradeAny(idx abi.Index) (AnyCap, bool) {
	if !p.Occupied(idx) {
		return AnyCap{}, false
	}
	return p.slots[idx].Clone(), true
}

// Upgrade returns a new typed handle to the occupant of idx if it is a T.
func Upgrade[T Resource](p *CPool, idx abi.Index) (Cap[T], bool) {
	if !p.Occupied(idx) || p.slots[idx].Kind() != kindOf[T]() {
		return Cap[T]{}, false
	}
	return Cap[T]{p.slots[idx].Clone()}, true
}

// DropAny releases a handle obtained from UpgradeAny without knowing its kind.
func DropAny(c *AnyCap) { c.Drop() }

func (p *CPool) Occupied(idx abi.Index) bool {
	return idx < PoolSize && p.used.Test(uint(idx))
}

// Len returns the number of occupied slots.
func (p *CPool) Len() int { return int(p.used.Count()) }
