// Package kernel is the capability core: untyped memory and retype, the
// capability arena, capability pools, tasks, channels, bootstrap of the
// first user program, and the scheduler loop that dispatches its system
// calls.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"capos/abi"
	"capos/hal"
)

// Config describes the machine the kernel boots on.
type Config struct {
	Machine hal.Machine
	Logger  hal.Logger
	// Trace logs every dispatched system call with its result.
	Trace bool
}

// Stats counts scheduler activity since boot.
type Stats struct {
	Iterations  uint64
	IdleWaits   uint64
	SystemCalls uint64
	Interrupts  uint64
	Ignored     uint64
}

type stats struct {
	iterations  atomic.Uint64
	idleWaits   atomic.Uint64
	systemCalls atomic.Uint64
	interrupts  atomic.Uint64
	ignored     atomic.Uint64
}

// Kernel is the single context object every entry point works on. It is
// built once by Boot and never torn down.
type Kernel struct {
	cpu   hal.CPU
	ports hal.Ports
	log   hal.Logger
	trace bool

	space    *Space
	root     Cap[*CPool]
	untyped  Cap[*Untyped]
	keyboard Cap[*Channel]
	utility  Cap[*Channel]

	mu    sync.Mutex
	tasks []Cap[*Task]

	current atomic.Uint64
	stats   stats
}

func (k *Kernel) Space() *Space           { return k.space }
func (k *Kernel) Root() Cap[*CPool]       { return k.root }
func (k *Kernel) Untyped() Cap[*Untyped]  { return k.untyped }
func (k *Kernel) Keyboard() Cap[*Channel] { return k.keyboard }

// Tasks returns the scheduler's traversal order.
func (k *Kernel) Tasks() []Cap[*Task] {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]Cap[*Task], len(k.tasks))
	copy(out, k.tasks)
	return out
}

func (k *Kernel) Stats() Stats {
	return Stats{
		Iterations:  k.stats.iterations.Load(),
		IdleWaits:   k.stats.idleWaits.Load(),
		SystemCalls: k.stats.systemCalls.Load(),
		Interrupts:  k.stats.interrupts.Load(),
		Ignored:     k.stats.ignored.Load(),
	}
}

// register appends t to the traversal order, keeping its own handle.
func (k *Kernel) register(t Cap[*Task]) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.tasks = append(k.tasks, t.Clone())
}

func (k *Kernel) task(i int) (Cap[*Task], bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if i >= len(k.tasks) {
		return Cap[*Task]{}, false
	}
	return k.tasks[i], true
}

// Run enters the scheduler loop until ctx is done. A kernel panic is
// reported to the handler installed with SetPanicHandler and returned as an
// error.
func (k *Kernel) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(k.recovered(r).Summary())
		}
	}()

	k.logf("hello, world!")
	k.cpu.EnableTimer()
	for ctx.Err() == nil {
		k.Step(ctx)
	}
	return ctx.Err()
}

// Step runs one scheduler iteration over every task in registry order.
// Tasks retyped during the pass are visited in the same pass.
func (k *Kernel) Step(ctx context.Context) {
	k.stats.iterations.Add(1)

	idle := true
	for i := 0; ; i++ {
		t, ok := k.task(i)
		if !ok {
			break
		}

		g := t.Read()
		state := g.Get().State()
		g.Release()

		switch state {
		case StateInactive:
			continue
		case StateChannelWait:
			if !k.wake(t) {
				continue
			}
		}
		idle = false
		k.resume(t)
	}

	if idle {
		k.stats.idleWaits.Add(1)
		if exc := k.cpu.Idle(ctx); exc == hal.ExceptionKeyboard {
			k.stats.interrupts.Add(1)
			k.deliverKeyboard()
		}
	}
}

// wake polls the channel a parked task waits on. On a value it fills the
// pending ChannelTake response and reactivates the task.
func (k *Kernel) wake(t Cap[*Task]) bool {
	g := t.Read()
	ch, waiting := g.Get().Waiting()
	buf, hasBuf := g.Get().UpgradeBuffer()
	key := g.Get().Key()
	g.Release()
	defer ch.Drop()
	defer buf.Drop()
	if !waiting {
		return false
	}

	cg := ch.Write()
	v, ok := cg.Get().Take()
	cg.Release()
	if !ok {
		return false
	}

	if hasBuf {
		bg := buf.Write()
		k.respond(bg.Get(), key, v)
		bg.Release()
	} else {
		k.logf("task %d woke without a buffer; value 0x%x lost", key, v)
	}

	wg := t.Write()
	wg.Get().Wake()
	wg.Release()
	return true
}

func (k *Kernel) respond(b *TaskBufferPage, key uint64, v uint64) {
	sc, err := b.Call()
	if err != nil {
		k.logf("task %d: waking with unreadable request: %v", key, err)
		return
	}
	if _, ok := sc.(abi.ChannelTake); !ok {
		k.logf("task %d: waking with pending %s, not ChannelTake", key, sc.Call())
		return
	}
	if err := b.Respond(v); err != nil {
		k.logf("task %d: respond: %v", key, err)
	}
}

// resume switches to t with no lock held and handles the trap it returns
// with.
func (k *Kernel) resume(t Cap[*Task]) {
	g := t.Read()
	uc := g.Get().Context()
	g.Release()

	k.current.Store(uc.Key)
	exc := k.cpu.SwitchTo(&uc)
	k.current.Store(0)

	wg := t.Write()
	wg.Get().saveContext(uc)
	wg.Release()

	switch exc {
	case hal.ExceptionSystemCall:
		k.stats.systemCalls.Add(1)
		k.systemCall(t)
	case hal.ExceptionKeyboard:
		k.stats.interrupts.Add(1)
		k.deliverKeyboard()
	case hal.ExceptionTimer:
		k.stats.interrupts.Add(1)
	}
}

// deliverKeyboard reads the latched scancode into the keyboard channel.
func (k *Kernel) deliverKeyboard() {
	code := k.ports.Inb(hal.PortKeyboardData)
	g := k.keyboard.Write()
	g.Get().Put(uint64(code))
	g.Release()
	k.ports.Outb(hal.PortPICCommand, hal.PICEndOfInterrupt)
}

func (k *Kernel) logf(format string, args ...any) {
	if k.log == nil {
		return
	}
	k.log.WriteLineString(fmt.Sprintf(format, args...))
}

func (k *Kernel) tracef(format string, args ...any) {
	if k.trace {
		k.logf(format, args...)
	}
}
