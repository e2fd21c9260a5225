package hal

import (
	"context"
	"errors"
)

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var ErrNotImplemented = errors.New("not implemented")

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// KeyCode is a minimal key identifier.
type KeyCode uint16

const (
	KeyUnknown KeyCode = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyEnter
	KeyEscape
	KeyBackspace
	KeyTab
)

// KeyEvent is a keyboard event.
type KeyEvent struct {
	Code  KeyCode
	Press bool
	Rune  rune
}

// Keyboard provides key events (best-effort on each platform).
type Keyboard interface {
	Events() <-chan KeyEvent
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Input provides access to input devices (if available).
type Input interface {
	Keyboard() Keyboard
}

// Time provides a base tick stream.
//
// The tick duration is platform-defined.
type Time interface {
	Ticks() <-chan uint64
}

// Exception is the reason control came back to the kernel.
type Exception uint8

const (
	ExceptionNone Exception = iota
	ExceptionSystemCall
	ExceptionKeyboard
	ExceptionTimer
)

func (e Exception) String() string {
	switch e {
	case ExceptionNone:
		return "none"
	case ExceptionSystemCall:
		return "system_call"
	case ExceptionKeyboard:
		return "keyboard"
	case ExceptionTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// UserContext is the saved register state of one user task.
type UserContext struct {
	// Key identifies the owning task for the lifetime of the machine.
	Key uint64
	IP  VAddr
	SP  VAddr
	// Root is the physical address of the top-level page table (0 = none).
	Root PAddr
}

// CPU runs user code.
//
// SwitchTo enters the task described by uc and returns on the next trap,
// with uc updated to the trapped register state. Idle halts until the next
// hardware interrupt (or ctx is done).
type CPU interface {
	EnableTimer()
	SwitchTo(uc *UserContext) Exception
	Idle(ctx context.Context) Exception
}

// Ports is raw port I/O.
type Ports interface {
	Inb(port uint16) uint8
	Outb(port uint16, v uint8)
}

const (
	PortKeyboardData   uint16 = 0x60
	PortKeyboardStatus uint16 = 0x64
	PortPICCommand     uint16 = 0x20

	PICEndOfInterrupt uint8 = 0x20
)

// Memory is a view of physical memory.
//
// Slice returns nil when [p, p+n) is not backed by memory.
type Memory interface {
	Slice(p PAddr, n uint64) []byte
	Size() uint64
}

// Machine is the boot/arch layer the kernel is started on.
type Machine interface {
	// FreeRegions enumerates physical memory not used by anything at boot.
	FreeRegions() []Region
	// RinitRegion holds the initial user binary.
	RinitRegion() Region
	Memory() Memory
	Ports() Ports
	CPU() CPU
}

// HAL provides the only contact point between the OS and the outside world.
type HAL interface {
	Logger() Logger
	Display() Display
	Input() Input
	Time() Time
	Machine() Machine
}
