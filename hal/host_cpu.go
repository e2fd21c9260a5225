//go:build !tinygo

package hal

import (
	"context"
	"errors"
	"sync"
)

// ErrPageFault is returned when user code touches an unmapped address.
var ErrPageFault = errors.New("page fault")

// Program is host user code started at an entry address.
//
// It runs as a coroutine of the kernel: it only executes between SwitchTo
// and the next trap.
type Program func(env *Env)

type trapFrame struct {
	exc  Exception
	ip   VAddr
	sp   VAddr
	done bool
}

// Env is the user-mode view of the machine handed to a Program.
type Env struct {
	mem    Memory
	ctx    UserContext
	resume chan UserContext
	trap   chan trapFrame
}

// Context returns the register state the task was last resumed with.
func (e *Env) Context() UserContext { return e.ctx }

// ReadAt copies len(p) bytes from user virtual address v.
func (e *Env) ReadAt(v VAddr, p []byte) error {
	return e.walk(v, len(p), func(b []byte, off int) { copy(p[off:], b) })
}

// WriteAt copies p to user virtual address v.
func (e *Env) WriteAt(v VAddr, p []byte) error {
	return e.walk(v, len(p), func(b []byte, off int) { copy(b, p[off:]) })
}

func (e *Env) walk(v VAddr, n int, fn func(b []byte, off int)) error {
	off := 0
	for off < n {
		pa, ok := Translate(e.mem, e.ctx.Root, v)
		if !ok {
			return ErrPageFault
		}
		chunk := int(PageLength - uint64(v)%PageLength)
		if chunk > n-off {
			chunk = n - off
		}
		b := e.mem.Slice(pa, uint64(chunk))
		if b == nil {
			return ErrPageFault
		}
		fn(b, off)
		off += chunk
		v += VAddr(chunk)
	}
	return nil
}

// Syscall traps into the kernel and returns once the task is resumed.
func (e *Env) Syscall() {
	e.trap <- trapFrame{exc: ExceptionSystemCall, ip: e.ctx.IP, sp: e.ctx.SP}
	e.ctx = <-e.resume
}

type userThread struct {
	env      *Env
	finished bool
}

type hostCPU struct {
	mem  Memory
	line *interruptLine
	t    *hostTime

	timerOnce sync.Once

	mu       sync.Mutex
	programs map[VAddr]Program
	threads  map[uint64]*userThread
}

func newHostCPU(mem Memory, line *interruptLine, t *hostTime, programs map[VAddr]Program) *hostCPU {
	p := make(map[VAddr]Program, len(programs))
	for k, v := range programs {
		p[k] = v
	}
	return &hostCPU{
		mem:      mem,
		line:     line,
		t:        t,
		programs: p,
		threads:  make(map[uint64]*userThread),
	}
}

func (c *hostCPU) EnableTimer() {
	c.timerOnce.Do(func() {
		go func() {
			for range c.t.Ticks() {
				c.line.raise(irqTimer)
			}
		}()
	})
}

// SwitchTo delivers a pending interrupt before entering user code, the way
// an interrupt taken on the return to user mode would.
func (c *hostCPU) SwitchTo(uc *UserContext) Exception {
	if exc, ok := c.line.take(); ok {
		return exc
	}

	th := c.thread(uc)
	if th == nil || th.finished {
		return ExceptionNone
	}

	th.env.resume <- *uc
	tf := <-th.env.trap
	if tf.done {
		th.finished = true
		return ExceptionNone
	}
	uc.IP = tf.ip
	uc.SP = tf.sp
	return tf.exc
}

func (c *hostCPU) thread(uc *UserContext) *userThread {
	c.mu.Lock()
	defer c.mu.Unlock()

	if th, ok := c.threads[uc.Key]; ok {
		return th
	}
	prog, ok := c.programs[uc.IP]
	if !ok {
		return nil
	}
	env := &Env{
		mem:    c.mem,
		resume: make(chan UserContext),
		trap:   make(chan trapFrame),
	}
	th := &userThread{env: env}
	c.threads[uc.Key] = th

	go func() {
		env.ctx = <-env.resume
		prog(env)
		env.trap <- trapFrame{done: true}
	}()
	return th
}

func (c *hostCPU) Idle(ctx context.Context) Exception {
	for {
		if exc, ok := c.line.take(); ok {
			return exc
		}
		select {
		case <-ctx.Done():
			return ExceptionNone
		case <-c.line.wake:
		}
	}
}
