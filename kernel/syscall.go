package kernel

import (
	"strings"

	"capos/abi"
)

// Result is the kernel-side outcome of one system call. Tasks never see it.
type Result uint8

const (
	ResultOK Result = iota
	ResultNoOperand
	ResultSlotOccupied
	ResultOutOfMemory
	ResultBadTransition
	ResultUnknown
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultNoOperand:
		return "no such operand"
	case ResultSlotOccupied:
		return "slot occupied"
	case ResultOutOfMemory:
		return "out of memory"
	case ResultBadTransition:
		return "bad state transition"
	default:
		return "unknown"
	}
}

// systemCall decodes t's pending request and dispatches it under the write
// lock of t's capability pool.
func (k *Kernel) systemCall(t Cap[*Task]) {
	g := t.Read()
	pool, hasPool := g.Get().UpgradeCPool()
	buf, hasBuf := g.Get().UpgradeBuffer()
	key := g.Get().Key()
	g.Release()
	defer pool.Drop()
	defer buf.Drop()

	if !hasPool || !hasBuf {
		k.logf("task %d: system call without cpool or buffer", key)
		k.stats.ignored.Add(1)
		return
	}

	bg := buf.Read()
	sc, err := bg.Get().Call()
	bg.Release()
	if err != nil {
		k.logf("task %d: bad system call: %v", key, err)
		k.stats.ignored.Add(1)
		return
	}

	pg := pool.Write()
	res := k.dispatch(t, pg.Get(), sc)
	pg.Release()

	if res != ResultOK {
		k.stats.ignored.Add(1)
	}
	k.tracef("task %d: %s => %s", key, sc.Call(), res)
}

func (k *Kernel) dispatch(t Cap[*Task], p *CPool, sc abi.SystemCall) Result {
	switch c := sc.(type) {
	case abi.Print:
		k.logf("Userspace print: %s", strings.ToValidUTF8(string(c.Payload()), "�"))
		return ResultOK
	case abi.CPoolListDebug:
		k.listPool(p)
		return ResultOK
	case abi.RetypeCPool:
		return retypeInto[*CPool](k, p, c.Source, c.Target)
	case abi.RetypeTask:
		return retypeInto[*Task](k, p, c.Source, c.Target)
	case abi.TaskSetInstructionPointer:
		return withTask(p, c.Task, func(task *Task) Result {
			task.SetInstructionPointer(c.VAddr)
			return ResultOK
		})
	case abi.TaskSetStackPointer:
		return withTask(p, c.Task, func(task *Task) Result {
			task.SetStackPointer(c.VAddr)
			return ResultOK
		})
	case abi.TaskSetCPool:
		return setTaskCap(p, c.Task, c.CPool, (*Task).DowngradeCPool)
	case abi.TaskSetTopPageTable:
		return setTaskCap(p, c.Task, c.Table, (*Task).DowngradeTopPageTable)
	case abi.TaskSetBuffer:
		return setTaskCap(p, c.Task, c.Buffer, (*Task).DowngradeBuffer)
	case abi.TaskSetActive:
		return withTask(p, c.Task, func(task *Task) Result {
			return transition(task.Activate())
		})
	case abi.TaskSetInactive:
		return withTask(p, c.Task, func(task *Task) Result {
			return transition(task.Deactivate())
		})
	case abi.ChannelTake:
		ch, ok := Upgrade[*Channel](p, c.Channel)
		if !ok {
			return ResultNoOperand
		}
		defer ch.Drop()
		g := t.Write()
		defer g.Release()
		return transition(g.Get().WaitOn(ch))
	case abi.ChannelPut:
		ch, ok := Upgrade[*Channel](p, c.Channel)
		if !ok {
			return ResultNoOperand
		}
		defer ch.Drop()
		g := ch.Write()
		g.Get().Put(c.Value)
		g.Release()
		return ResultOK
	default:
		return ResultUnknown
	}
}

func transition(ok bool) Result {
	if !ok {
		return ResultBadTransition
	}
	return ResultOK
}

// withTask runs fn under the write lock of the task at idx.
func withTask(p *CPool, idx abi.Index, fn func(*Task) Result) Result {
	c, ok := Upgrade[*Task](p, idx)
	if !ok {
		return ResultNoOperand
	}
	defer c.Drop()
	g := c.Write()
	defer g.Release()
	return fn(g.Get())
}

// setTaskCap installs the T at idx into the task at task.
func setTaskCap[T Resource](p *CPool, task, idx abi.Index, set func(*Task, Cap[T])) Result {
	c, ok := Upgrade[T](p, idx)
	if !ok {
		return ResultNoOperand
	}
	defer c.Drop()
	return withTask(p, task, func(t *Task) Result {
		set(t, c)
		return ResultOK
	})
}

// retypeInto retypes the Untyped at src into a new T installed at dst. An
// occupied dst is checked first so no memory is carved for nothing.
func retypeInto[T Resource](k *Kernel, p *CPool, src, dst abi.Index) Result {
	u, ok := Upgrade[*Untyped](p, src)
	if !ok || dst >= PoolSize {
		return ResultNoOperand
	}
	defer u.Drop()
	if p.Occupied(dst) {
		return ResultSlotOccupied
	}

	c, err := RetypeFrom[T](k.space, u)
	if err != nil {
		k.logf("warning: %v", err)
		return ResultOutOfMemory
	}
	defer c.Drop()
	p.DowngradeAt(c, dst)

	if task, ok := As[*Task](c.AnyCap); ok {
		k.register(task)
	}
	return ResultOK
}

// listPool logs every occupied slot. Kinds without a typed view here are
// arch specific and released through DropAny.
func (k *Kernel) listPool(p *CPool) {
	for i := abi.Index(0); i < PoolSize; i++ {
		c, ok := p.UpgradeAny(i)
		if !ok {
			continue
		}
		switch c.Kind() {
		case KindPageTable:
			k.logf("CPool index %d (arch specific) => %v", i, c)
			DropAny(&c)
		default:
			k.logf("CPool index %d => %v", i, c)
			c.Drop()
		}
	}
}
