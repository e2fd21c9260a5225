package kernel

import (
	"context"
	"testing"

	"capos/abi"
	"capos/elf"
	"capos/hal"
)

type fakeMemory struct {
	b []byte
}

func newFakeMemory(size int) *fakeMemory { return &fakeMemory{b: make([]byte, size)} }

func (m *fakeMemory) Slice(p PAddr, n uint64) []byte {
	if uint64(p) > uint64(len(m.b)) || n > uint64(len(m.b))-uint64(p) {
		return nil
	}
	return m.b[p : uint64(p)+n]
}

func (m *fakeMemory) Size() uint64 { return uint64(len(m.b)) }

type fakePorts struct {
	data uint8
	eoi  int
}

func (p *fakePorts) Inb(port uint16) uint8 {
	if port == hal.PortKeyboardData {
		return p.data
	}
	return 0
}

func (p *fakePorts) Outb(port uint16, v uint8) {
	if port == hal.PortPICCommand && v == hal.PICEndOfInterrupt {
		p.eoi++
	}
}

// fakeCPU runs onSwitch in place of user code and records who ran.
type fakeCPU struct {
	timer    bool
	switches []uint64
	onSwitch func(uc *hal.UserContext) hal.Exception
	idle     []hal.Exception
}

func (c *fakeCPU) EnableTimer() { c.timer = true }

func (c *fakeCPU) SwitchTo(uc *hal.UserContext) hal.Exception {
	c.switches = append(c.switches, uc.Key)
	if c.onSwitch == nil {
		return hal.ExceptionNone
	}
	return c.onSwitch(uc)
}

func (c *fakeCPU) Idle(ctx context.Context) hal.Exception {
	if len(c.idle) == 0 {
		return hal.ExceptionNone
	}
	exc := c.idle[0]
	c.idle = c.idle[1:]
	return exc
}

type fakeMachine struct {
	mem     *fakeMemory
	regions []hal.Region
	rinit   hal.Region
	ports   *fakePorts
	cpu     *fakeCPU
}

func (m *fakeMachine) FreeRegions() []hal.Region { return m.regions }
func (m *fakeMachine) RinitRegion() hal.Region   { return m.rinit }
func (m *fakeMachine) Memory() hal.Memory        { return m.mem }
func (m *fakeMachine) Ports() hal.Ports          { return m.ports }
func (m *fakeMachine) CPU() hal.CPU              { return m.cpu }

type lineLog struct {
	lines []string
}

func (l *lineLog) WriteLineString(s string) { l.lines = append(l.lines, s) }
func (l *lineLog) WriteLineBytes(b []byte)  { l.lines = append(l.lines, string(b)) }

const (
	testRinitAt = 0x100000
	testEntry   = 0x400000
)

func testImage() []byte {
	return elf.Build(testEntry, elf.LoadSegment{VAddr: testEntry, Data: []byte("rinit text")})
}

// newFakeMachine lays out 8 MiB: the rinit image at 1 MiB, a 1 MiB free
// region at 2 MiB and a 4 MiB one at 4 MiB.
func newFakeMachine(image []byte) *fakeMachine {
	mem := newFakeMemory(8 << 20)
	copy(mem.b[testRinitAt:], image)
	return &fakeMachine{
		mem: mem,
		regions: []hal.Region{
			{Start: 0x200000, Length: 1 << 20},
			{Start: 0x400000, Length: 4 << 20},
		},
		rinit: hal.Region{Start: testRinitAt, Length: uint64(len(image))},
		ports: &fakePorts{},
		cpu:   &fakeCPU{},
	}
}

func bootFake(t *testing.T, m *fakeMachine) (*Kernel, *lineLog) {
	t.Helper()
	log := &lineLog{}
	k, err := Boot(Config{Machine: m, Logger: log, Trace: true})
	if err != nil {
		t.Fatalf("boot: %v", err)
	}
	return k, log
}

// issue writes sc into the task buffer mapped at v in uc's address space.
func issue(t *testing.T, m *fakeMachine, uc *hal.UserContext, v VAddr, sc abi.SystemCall) {
	t.Helper()
	pa, ok := hal.Translate(m.mem, uc.Root, v)
	if !ok {
		t.Fatalf("buffer %s not mapped", v)
	}
	if err := abi.Encode(m.mem.Slice(pa, abi.BufferSize), sc); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func response(t *testing.T, m *fakeMachine, root PAddr, v VAddr) (uint64, bool) {
	t.Helper()
	pa, ok := hal.Translate(m.mem, root, v)
	if !ok {
		t.Fatalf("buffer %s not mapped", v)
	}
	return abi.Response(m.mem.Slice(pa, abi.BufferSize))
}

// script returns an onSwitch that issues one call per switch and then
// reports no trap.
func script(t *testing.T, m *fakeMachine, calls ...abi.SystemCall) func(uc *hal.UserContext) hal.Exception {
	return func(uc *hal.UserContext) hal.Exception {
		if len(calls) == 0 {
			return hal.ExceptionNone
		}
		issue(t, m, uc, abi.BufferVAddr, calls[0])
		calls = calls[1:]
		return hal.ExceptionSystemCall
	}
}

func taskState(c Cap[*Task]) State {
	g := c.Read()
	defer g.Release()
	return g.Get().State()
}

func newTestSpace() *Space {
	return NewSpace(newFakeMemory(4 << 20))
}

func testUntyped(s *Space, start PAddr, length uint64) Cap[*Untyped] {
	return BootstrapUntyped(s, hal.Region{Start: start, Length: length})
}
