package kernel

import "capos/hal"

// State is a task's scheduling status.
type State uint8

const (
	StateInactive State = iota
	StateActive
	StateChannelWait
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "Inactive"
	case StateActive:
		return "Active"
	case StateChannelWait:
		return "ChannelWait"
	default:
		return "Unknown"
	}
}

// Task is one user execution context. Methods require the task's lock.
type Task struct {
	ctx   hal.UserContext
	state State
	wait  Cap[*Channel]

	cpool  Cap[*CPool]
	table  Cap[*TopPageTable]
	buffer Cap[*TaskBufferPage]
}

func newTask(key uint64) *Task {
	return &Task{ctx: hal.UserContext{Key: key}}
}

func (*Task) Kind() Kind { return KindTask }

func (t *Task) State() State { return t.state }

// Key identifies the task to the CPU for its whole lifetime.
func (t *Task) Key() uint64 { return t.ctx.Key }

func (t *Task) InstructionPointer() VAddr { return t.ctx.IP }
func (t *Task) StackPointer() VAddr       { return t.ctx.SP }

func (t *Task) SetInstructionPointer(v VAddr) { t.ctx.IP = v }
func (t *Task) SetStackPointer(v VAddr)       { t.ctx.SP = v }

// Activate moves Inactive to Active.
func (t *Task) Activate() bool {
	if t.state != StateInactive {
		return false
	}
	t.state = StateActive
	return true
}

// Deactivate moves Active to Inactive.
func (t *Task) Deactivate() bool {
	if t.state != StateActive {
		return false
	}
	t.state = StateInactive
	return true
}

// WaitOn parks an Active task on ch.
func (t *Task) WaitOn(ch Cap[*Channel]) bool {
	if t.state != StateActive || !ch.Valid() {
		return false
	}
	t.wait = ch.Clone()
	t.state = StateChannelWait
	return true
}

// Waiting returns a new handle to the channel a parked task waits on.
func (t *Task) Waiting() (Cap[*Channel], bool) {
	if t.state != StateChannelWait {
		return Cap[*Channel]{}, false
	}
	return t.wait.Clone(), true
}

// Wake moves a parked task back to Active.
func (t *Task) Wake() bool {
	if t.state != StateChannelWait {
		return false
	}
	t.wait.Drop()
	t.state = StateActive
	return true
}

func (t *Task) DowngradeCPool(c Cap[*CPool]) {
	next := c.Clone()
	t.cpool.Drop()
	t.cpool = next
}

func (t *Task) DowngradeTopPageTable(c Cap[*TopPageTable]) {
	next := c.Clone()
	t.table.Drop()
	t.table = next
}

func (t *Task) DowngradeBuffer(c Cap[*TaskBufferPage]) {
	next := c.Clone()
	t.buffer.Drop()
	t.buffer = next
}

func (t *Task) UpgradeCPool() (Cap[*CPool], bool) {
	return t.cpool.Clone(), t.cpool.Valid()
}

func (t *Task) UpgradeTopPageTable() (Cap[*TopPageTable], bool) {
	return t.table.Clone(), t.table.Valid()
}

func (t *Task) UpgradeBuffer() (Cap[*TaskBufferPage], bool) {
	return t.buffer.Clone(), t.buffer.Valid()
}

// Context is the register state SwitchTo resumes.
func (t *Task) Context() hal.UserContext {
	uc := t.ctx
	uc.Root = 0
	if t.table.Valid() {
		uc.Root = t.table.PAddr()
	}
	return uc
}

func (t *Task) saveContext(uc hal.UserContext) {
	t.ctx.IP = uc.IP
	t.ctx.SP = uc.SP
}
