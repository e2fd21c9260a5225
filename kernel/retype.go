package kernel

import "fmt"

// RetypeFrom carves a new zeroed object of kind T out of u and returns the
// only handle to it.
func RetypeFrom[T Resource](s *Space, u Cap[*Untyped]) (Cap[T], error) {
	g := u.Write()
	defer g.Release()
	return retype[T](s, g.Get())
}

func retype[T Resource](s *Space, u *Untyped) (Cap[T], error) {
	kind := kindOf[T]()
	size, align, ok := kind.layout()
	if !ok {
		return Cap[T]{}, fmt.Errorf("retype %s: %w", kind, ErrNotRetypable)
	}

	paddr, err := u.Allocate(size, align)
	if err != nil {
		return Cap[T]{}, fmt.Errorf("retype %s: %w", kind, err)
	}
	b := s.mem.Slice(paddr, size)
	if b == nil {
		return Cap[T]{}, fmt.Errorf("retype %s at %s: %w", kind, paddr, ErrUnbacked)
	}
	clear(b)

	value := newResource(s, kind, paddr).(T)
	return Cap[T]{AnyCap{space: s, id: s.insert(kind, value, paddr, size)}}, nil
}

func newResource(s *Space, kind Kind, paddr PAddr) Resource {
	switch kind {
	case KindCPool:
		return newCPool()
	case KindTask:
		return newTask(s.newKey())
	case KindChannel:
		return &Channel{}
	case KindRawPage:
		return &RawPage{page{s, paddr}}
	case KindTaskBufferPage:
		return &TaskBufferPage{page{s, paddr}}
	case KindTopPageTable:
		return &TopPageTable{page{s, paddr}}
	case KindPageTable:
		return &PageTable{page{s, paddr}}
	default:
		panic(fmt.Sprintf("newResource: %s", kind))
	}
}
