package kernel

import (
	"fmt"
	"sync"

	"capos/hal"
)

// ID is a generation-checked index into a Space.
type ID struct {
	Index uint32
	Gen   uint32
}

// object is the resource half of a capability: the value and its lock.
type object struct {
	mu    sync.RWMutex
	kind  Kind
	value Resource
	paddr PAddr
	size  uint64
}

type slot struct {
	obj  *object
	refs int
	gen  uint32
}

// Space is the arena holding every live capability object. Handles name
// objects by ID; a slot is recycled once its last handle is dropped, and the
// generation bump makes stale IDs detectable.
type Space struct {
	mem hal.Memory

	mu      sync.Mutex
	slots   []slot
	free    []uint32
	live    int
	nextKey uint64
}

func NewSpace(mem hal.Memory) *Space {
	return &Space{mem: mem}
}

// Memory returns the physical memory objects are carved from.
func (s *Space) Memory() hal.Memory { return s.mem }

// Live returns the number of objects with at least one handle.
func (s *Space) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Refs returns the handle count of id, 0 once released.
func (s *Space) Refs(id ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(id.Index) >= len(s.slots) {
		return 0
	}
	sl := &s.slots[id.Index]
	if sl.gen != id.Gen {
		return 0
	}
	return sl.refs
}

func (s *Space) newKey() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextKey++
	return s.nextKey
}

func (s *Space) insert(kind Kind, value Resource, paddr PAddr, size uint64) ID {
	obj := &object{kind: kind, value: value, paddr: paddr, size: size}

	s.mu.Lock()
	defer s.mu.Unlock()
	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		s.slots = append(s.slots, slot{})
		idx = uint32(len(s.slots) - 1)
	}
	sl := &s.slots[idx]
	sl.obj = obj
	sl.refs = 1
	s.live++
	return ID{Index: idx, Gen: sl.gen}
}

// lookup returns the slot for id. s.mu must be held.
func (s *Space) lookup(id ID) *slot {
	if int(id.Index) >= len(s.slots) {
		panic(fmt.Errorf("%w: %d/%d", ErrStaleHandle, id.Index, id.Gen))
	}
	sl := &s.slots[id.Index]
	if sl.gen != id.Gen || sl.refs == 0 {
		panic(fmt.Errorf("%w: %d/%d", ErrStaleHandle, id.Index, id.Gen))
	}
	return sl
}

func (s *Space) get(id ID) *object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id).obj
}

func (s *Space) retain(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookup(id).refs++
}

func (s *Space) release(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.lookup(id)
	sl.refs--
	if sl.refs > 0 {
		return
	}
	sl.obj = nil
	sl.gen++
	s.free = append(s.free, id.Index)
	s.live--
}

// AnyCap is a type-erased handle to one capability object. The zero value
// holds nothing.
type AnyCap struct {
	space *Space
	id    ID
}

// Descriptor is anything that can be installed in a CPool.
type Descriptor interface {
	Any() AnyCap
}

func (c AnyCap) Any() AnyCap { return c }

func (c AnyCap) Valid() bool { return c.space != nil }

func (c AnyCap) ID() ID { return c.id }

func (c AnyCap) Kind() Kind {
	if c.space == nil {
		return KindInvalid
	}
	return c.space.get(c.id).kind
}

// PAddr is the start of the object's physical backing.
func (c AnyCap) PAddr() PAddr {
	if c.space == nil {
		return 0
	}
	return c.space.get(c.id).paddr
}

// Clone returns a new handle to the same object.
func (c AnyCap) Clone() AnyCap {
	if c.space == nil {
		return AnyCap{}
	}
	c.space.retain(c.id)
	return c
}

// Drop releases the handle and zeroes c. Dropping the zero value is a no-op.
func (c *AnyCap) Drop() {
	if c.space == nil {
		return
	}
	c.space.release(c.id)
	*c = AnyCap{}
}

// String never takes the object lock, so a pool may list itself.
func (c AnyCap) String() string {
	if c.space == nil {
		return "Capability(none)"
	}
	obj := c.space.get(c.id)
	return fmt.Sprintf("%s{paddr: %s, size: 0x%x, refs: %d}",
		obj.kind, obj.paddr, obj.size, c.space.Refs(c.id))
}

// Cap is a typed handle.
type Cap[T Resource] struct {
	AnyCap
}

func (c Cap[T]) Clone() Cap[T] { return Cap[T]{c.AnyCap.Clone()} }

// Read takes the shared lock. The guard must be released.
func (c Cap[T]) Read() Guard[T] {
	obj := c.space.get(c.id)
	obj.mu.RLock()
	return Guard[T]{obj: obj, value: obj.value.(T)}
}

// Write takes the exclusive lock. The guard must be released.
func (c Cap[T]) Write() Guard[T] {
	obj := c.space.get(c.id)
	obj.mu.Lock()
	return Guard[T]{obj: obj, value: obj.value.(T), write: true}
}

// Guard is a held read or write lock on one object.
type Guard[T Resource] struct {
	obj   *object
	value T
	write bool
}

func (g Guard[T]) Get() T { return g.value }

func (g Guard[T]) Release() {
	if g.write {
		g.obj.mu.Unlock()
	} else {
		g.obj.mu.RUnlock()
	}
}

// As reinterprets c as a typed handle, taking over its reference.
func As[T Resource](c AnyCap) (Cap[T], bool) {
	if !c.Valid() {
		return Cap[T]{}, false
	}
	var zero T
	if c.Kind() != zero.Kind() {
		return Cap[T]{}, false
	}
	return Cap[T]{c}, true
}

func kindOf[T Resource]() Kind {
	var zero T
	return zero.Kind()
}
