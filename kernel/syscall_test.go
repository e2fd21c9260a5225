package kernel

import (
	"context"
	"strings"
	"testing"

	"capos/abi"
	"capos/hal"
)

// scripted drives several tasks: each switch issues the next call of the
// task's list through its buffer.
type scripted struct {
	t      *testing.T
	m      *fakeMachine
	calls  map[uint64][]abi.SystemCall
	buffer map[uint64]VAddr
}

func (s *scripted) onSwitch(uc *hal.UserContext) hal.Exception {
	calls := s.calls[uc.Key]
	if len(calls) == 0 {
		return hal.ExceptionNone
	}
	buf, ok := s.buffer[uc.Key]
	if !ok {
		buf = abi.BufferVAddr
	}
	issue(s.t, s.m, uc, buf, calls[0])
	s.calls[uc.Key] = calls[1:]
	return hal.ExceptionSystemCall
}

func steps(k *Kernel, n int) {
	for i := 0; i < n; i++ {
		k.Step(context.Background())
	}
}

func rootPool(t *testing.T, k *Kernel) (*CPool, func()) {
	t.Helper()
	g := k.Root().Read()
	return g.Get(), g.Release
}

func TestChannelPutWakesParkedTask(t *testing.T) {
	m := newFakeMachine(testImage())
	k, _ := bootFake(t, m)

	const child = 249
	s := &scripted{t: t, m: m,
		calls: map[uint64][]abi.SystemCall{
			1: {
				abi.RetypeTask{Source: 2, Target: child},
				abi.TaskSetInstructionPointer{Task: child, VAddr: 0x500000},
				abi.TaskSetStackPointer{Task: child, VAddr: abi.InitialSP(abi.ChildStackVAddr)},
				abi.TaskSetCPool{Task: child, CPool: abi.SlotRootPool},
				abi.TaskSetTopPageTable{Task: child, Table: 3},
				abi.TaskSetBuffer{Task: child, Buffer: abi.SlotChildBuffer},
				abi.TaskSetActive{Task: child},
				abi.ChannelTake{Channel: abi.SlotKeyboard},
			},
			2: {
				abi.NewPrint("child up"),
				abi.ChannelPut{Channel: abi.SlotKeyboard, Value: 0x41},
			},
		},
		buffer: map[uint64]VAddr{2: abi.ChildBufferVAddr},
	}
	m.cpu.onSwitch = s.onSwitch

	steps(k, 7)
	tasks := k.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("expected child registered, got %d tasks", len(tasks))
	}
	g := tasks[1].Read()
	childCtx := g.Get().Context()
	g.Release()
	if childCtx.IP != 0x500000 || childCtx.SP != abi.InitialSP(abi.ChildStackVAddr) || childCtx.Root == 0 {
		t.Fatalf("unexpected child context %+v", childCtx)
	}

	steps(k, 1)
	if st := taskState(tasks[0]); st != StateChannelWait {
		t.Fatalf("expected rinit parked, got %s", st)
	}
	g = tasks[0].Read()
	root := g.Get().Context().Root
	g.Release()
	if _, ok := response(t, m, root, abi.BufferVAddr); ok {
		t.Fatal("response filled before the value arrived")
	}

	// The child's put lands in the same pass; rinit is woken on the next.
	steps(k, 1)
	if st := taskState(tasks[0]); st != StateActive {
		t.Fatalf("expected rinit active, got %s", st)
	}
	v, ok := response(t, m, root, abi.BufferVAddr)
	if !ok || v != 0x41 {
		t.Fatalf("expected response 0x41, got 0x%x (%v)", v, ok)
	}
	if last := m.cpu.switches[len(m.cpu.switches)-2]; last != 1 {
		t.Fatalf("woken task not resumed in the same pass: %v", m.cpu.switches)
	}
}

func TestKeyboardInterruptWhileIdle(t *testing.T) {
	m := newFakeMachine(testImage())
	k, _ := bootFake(t, m)
	m.cpu.onSwitch = script(t, m, abi.ChannelTake{Channel: abi.SlotKeyboard})

	steps(k, 1)
	rinit := k.Tasks()[0]
	if taskState(rinit) != StateChannelWait {
		t.Fatal("expected rinit parked")
	}

	m.ports.data = 0x1E
	m.cpu.idle = []hal.Exception{hal.ExceptionKeyboard}
	steps(k, 1)
	if k.Stats().IdleWaits != 1 || m.ports.eoi != 1 {
		t.Fatalf("expected one idle wait with EOI, got %+v eoi %d", k.Stats(), m.ports.eoi)
	}

	steps(k, 1)
	if taskState(rinit) != StateActive {
		t.Fatal("keyboard value did not wake rinit")
	}
	g := rinit.Read()
	root := g.Get().Context().Root
	g.Release()
	if v, ok := response(t, m, root, abi.BufferVAddr); !ok || v != 0x1E {
		t.Fatalf("expected scancode 0x1e, got 0x%x (%v)", v, ok)
	}
}

func TestKeyboardInterruptFromTask(t *testing.T) {
	m := newFakeMachine(testImage())
	k, _ := bootFake(t, m)
	m.ports.data = 0x30
	m.cpu.onSwitch = func(uc *hal.UserContext) hal.Exception { return hal.ExceptionKeyboard }

	steps(k, 1)
	g := k.Keyboard().Write()
	v, ok := g.Get().Take()
	g.Release()
	if !ok || v != 0x30 {
		t.Fatalf("expected 0x30 in keyboard channel, got 0x%x (%v)", v, ok)
	}
}

func TestInvalidOperandsAreSilent(t *testing.T) {
	m := newFakeMachine(testImage())
	k, log := bootFake(t, m)
	m.cpu.onSwitch = script(t, m,
		abi.TaskSetActive{Task: 77},
		abi.ChannelTake{Channel: 3},
		abi.ChannelPut{Channel: 3, Value: 1},
		abi.TaskSetCPool{Task: 0, CPool: 0},
		abi.RetypeTask{Source: 0, Target: 100},
		abi.TaskSetInactive{Task: 1000},
	)

	live := k.Space().Live()
	steps(k, 6)
	rinit := k.Tasks()[0]
	if taskState(rinit) != StateActive {
		t.Fatal("invalid ChannelTake parked the task")
	}
	g := rinit.Read()
	root := g.Get().Context().Root
	g.Release()
	if _, ok := response(t, m, root, abi.BufferVAddr); ok {
		t.Fatal("invalid call filled a response")
	}
	if k.Space().Live() != live || len(k.Tasks()) != 1 {
		t.Fatal("invalid calls changed kernel state")
	}
	if st := k.Stats(); st.SystemCalls != 6 || st.Ignored != 6 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if !strings.Contains(strings.Join(log.lines, "\n"), "TaskSetActive => no such operand") {
		t.Fatal("expected traced result")
	}
}

func TestRetypeCPoolIntoSlots(t *testing.T) {
	m := newFakeMachine(testImage())
	k, _ := bootFake(t, m)
	m.cpu.onSwitch = script(t, m,
		abi.RetypeCPool{Source: 2, Target: 248},
		abi.RetypeCPool{Source: 2, Target: 0},
		abi.RetypeCPool{Source: 2, Target: 248},
	)

	steps(k, 1)
	pool, release := rootPool(t, k)
	c, ok := Upgrade[*CPool](pool, 248)
	release()
	if !ok {
		t.Fatal("expected new cpool at 248")
	}
	c.Drop()

	ug := k.Untyped().Read()
	before := ug.Get().Remaining()
	ug.Release()

	steps(k, 2)
	ug = k.Untyped().Read()
	after := ug.Get().Remaining()
	ug.Release()
	if after != before {
		t.Fatalf("retype into occupied slots consumed memory: 0x%x -> 0x%x", before, after)
	}
	pool, release = rootPool(t, k)
	self, ok := Upgrade[*CPool](pool, 0)
	release()
	if !ok || self.ID() != k.Root().ID() {
		t.Fatal("root self reference replaced")
	}
	self.Drop()
}

func TestSetInactiveStopsScheduling(t *testing.T) {
	m := newFakeMachine(testImage())
	k, _ := bootFake(t, m)

	s := &scripted{t: t, m: m, calls: map[uint64][]abi.SystemCall{
		1: {
			abi.RetypeTask{Source: 2, Target: 249},
			abi.TaskSetActive{Task: 249},
			abi.TaskSetInactive{Task: 249},
			abi.TaskSetInactive{Task: 249},
		},
	}}
	m.cpu.onSwitch = s.onSwitch
	steps(k, 4)
	child := k.Tasks()[1]
	if taskState(child) != StateInactive {
		t.Fatalf("expected child inactive, got %s", taskState(child))
	}
	var childRuns int
	for _, key := range m.cpu.switches {
		if key == 2 {
			childRuns++
		}
	}
	if childRuns != 1 {
		t.Fatalf("expected child to run once while active, got %d (%v)", childRuns, m.cpu.switches)
	}
	if k.Stats().Ignored != 1 {
		t.Fatalf("expected second deactivate ignored, got %+v", k.Stats())
	}
}

func TestPrintAndListDebug(t *testing.T) {
	m := newFakeMachine(testImage())
	k, log := bootFake(t, m)

	bad := abi.NewPrint("a\xffb")
	m.cpu.onSwitch = script(t, m, bad, abi.CPoolListDebug{})
	steps(k, 2)

	joined := strings.Join(log.lines, "\n")
	for _, want := range []string{
		"Userspace print: a�b",
		"CPool index 0 => CPool",
		"CPool index 1 => Untyped",
		"CPool index 254 => Channel",
		"(arch specific) => PageTable",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in log:\n%s", want, joined)
		}
	}
}
