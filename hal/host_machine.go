//go:build !tinygo

package hal

import (
	"fmt"
	"sync"
	"sync/atomic"
)

const (
	defaultRAMBytes = 64 << 20
	minRAMBytes     = 8 << 20

	// Host physical layout: low memory (VGA text page lives here), the rinit
	// image, a small free region, then everything else free.
	hostRinitStart PAddr = 0x100000
	hostRinitMax         = 0x100000
	hostFreeStart  PAddr = 0x200000
	hostFreeSplit  PAddr = 0x400000
)

type hostMemory struct {
	ram []byte
}

func (m *hostMemory) Slice(p PAddr, n uint64) []byte {
	size := uint64(len(m.ram))
	if uint64(p) > size || n > size-uint64(p) {
		return nil
	}
	return m.ram[p : uint64(p)+n : uint64(p)+n]
}

func (m *hostMemory) Size() uint64 { return uint64(len(m.ram)) }

type hostMachine struct {
	mem   *hostMemory
	free  []Region
	rinit Region
	ports *hostPorts
	cpu   *hostCPU
}

func newHostMachine(cfg HostConfig, kbd *hostKeyboard, t *hostTime) (*hostMachine, error) {
	ramBytes := cfg.RAMBytes
	if ramBytes == 0 {
		ramBytes = defaultRAMBytes
	}
	if ramBytes < minRAMBytes {
		return nil, fmt.Errorf("ram %d bytes below minimum %d", ramBytes, minRAMBytes)
	}
	if len(cfg.Rinit) > hostRinitMax {
		return nil, fmt.Errorf("rinit image %d bytes exceeds %d", len(cfg.Rinit), hostRinitMax)
	}

	mem := &hostMemory{ram: make([]byte, ramBytes)}
	copy(mem.ram[hostRinitStart:], cfg.Rinit)

	line := newInterruptLine()
	ports := &hostPorts{irq: line}
	m := &hostMachine{
		mem: mem,
		free: []Region{
			{Start: hostFreeStart, Length: uint64(hostFreeSplit - hostFreeStart)},
			{Start: hostFreeSplit, Length: ramBytes - uint64(hostFreeSplit)},
		},
		rinit: Region{Start: hostRinitStart, Length: uint64(len(cfg.Rinit))},
		ports: ports,
		cpu:   newHostCPU(mem, line, t, cfg.Programs),
	}

	go func() {
		for ev := range kbd.Events() {
			if code, ok := Scancode(ev); ok {
				ports.latch(code)
			}
		}
	}()
	return m, nil
}

func (m *hostMachine) FreeRegions() []Region {
	out := make([]Region, len(m.free))
	copy(out, m.free)
	return out
}

func (m *hostMachine) RinitRegion() Region { return m.rinit }
func (m *hostMachine) Memory() Memory      { return m.mem }
func (m *hostMachine) Ports() Ports        { return m.ports }
func (m *hostMachine) CPU() CPU            { return m.cpu }

const (
	irqTimer    uint32 = 1 << 0
	irqKeyboard uint32 = 1 << 1
)

// interruptLine is a two-input PIC: pending bits plus a wakeup for Idle.
type interruptLine struct {
	pending atomic.Uint32
	wake    chan struct{}
}

func newInterruptLine() *interruptLine {
	return &interruptLine{wake: make(chan struct{}, 1)}
}

func (l *interruptLine) raise(irq uint32) {
	for {
		old := l.pending.Load()
		if l.pending.CompareAndSwap(old, old|irq) {
			break
		}
	}
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// take acknowledges the highest-priority pending interrupt.
func (l *interruptLine) take() (Exception, bool) {
	for {
		old := l.pending.Load()
		var irq uint32
		var exc Exception
		switch {
		case old&irqKeyboard != 0:
			irq, exc = irqKeyboard, ExceptionKeyboard
		case old&irqTimer != 0:
			irq, exc = irqTimer, ExceptionTimer
		default:
			return ExceptionNone, false
		}
		if l.pending.CompareAndSwap(old, old&^irq) {
			return exc, true
		}
	}
}

// hostPorts emulates the i8042 data/status ports and the PIC command port.
type hostPorts struct {
	mu    sync.Mutex
	queue []uint8
	data  uint8
	irq   *interruptLine
}

const keyboardQueueMax = 64

func (p *hostPorts) latch(code uint8) {
	p.mu.Lock()
	if len(p.queue) >= keyboardQueueMax {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, code)
	p.mu.Unlock()
	p.irq.raise(irqKeyboard)
}

func (p *hostPorts) Inb(port uint16) uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch port {
	case PortKeyboardData:
		if len(p.queue) > 0 {
			p.data = p.queue[0]
			p.queue = p.queue[1:]
			if len(p.queue) > 0 {
				p.irq.raise(irqKeyboard)
			}
		}
		return p.data
	case PortKeyboardStatus:
		if len(p.queue) > 0 {
			return 1
		}
		return 0
	default:
		return 0xFF
	}
}

// Outb accepts PIC end-of-interrupt writes; the emulated controller
// re-raises from Inb, so nothing needs to happen here.
func (p *hostPorts) Outb(port uint16, v uint8) {
	_ = port
	_ = v
}
