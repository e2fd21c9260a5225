package kernel

// Kind is the closed set of capability kinds.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUntyped
	KindCPool
	KindTask
	KindChannel
	KindRawPage
	KindTaskBufferPage
	KindTopPageTable
	// KindPageTable is an intermediate paging level, created only by Map.
	KindPageTable
)

func (k Kind) String() string {
	switch k {
	case KindUntyped:
		return "Untyped"
	case KindCPool:
		return "CPool"
	case KindTask:
		return "Task"
	case KindChannel:
		return "Channel"
	case KindRawPage:
		return "RawPage"
	case KindTaskBufferPage:
		return "TaskBufferPage"
	case KindTopPageTable:
		return "TopPageTable"
	case KindPageTable:
		return "PageTable"
	default:
		return "Invalid"
	}
}

// Resource is the object a capability refers to.
type Resource interface {
	Kind() Kind
}

// Physical footprint of each retypable kind. Page kinds are one page; the
// rest reserve room for their in-memory descriptor.
const (
	cpoolSize    = PoolSize * 16
	cpoolAlign   = 16
	taskSize     = 256
	taskAlign    = 16
	channelSize  = 16
	channelAlign = 8
)

func (k Kind) layout() (size, align uint64, ok bool) {
	switch k {
	case KindCPool:
		return cpoolSize, cpoolAlign, true
	case KindTask:
		return taskSize, taskAlign, true
	case KindChannel:
		return channelSize, channelAlign, true
	case KindRawPage, KindTaskBufferPage, KindTopPageTable, KindPageTable:
		return PageLength, PageLength, true
	default:
		return 0, 0, false
	}
}
