// Package rinit is the first user program. It checks its own image, lists
// the root pool, builds a child task that shares its address space, waits
// for the child's greeting on the utility channel, then echoes keys.
package rinit

import (
	"bytes"

	"capos/abi"
	"capos/elf"
	"capos/hal"
	"capos/user/sys"
)

const (
	Entry      hal.VAddr = 0x400000
	ChildEntry hal.VAddr = 0x400100

	// ChildHello is what the child puts on the utility channel.
	ChildHello uint64 = 0xC0FFEE
)

// Root pool layout as left by the kernel on a machine with two free regions.
const (
	slotUntyped   abi.Index = 2
	slotTable     abi.Index = 3
	slotChildPool abi.Index = 248
	slotChild     abi.Index = 249
)

var (
	banner      = []byte("capos rinit")
	childBanner = []byte("capos rinit child")
)

// Image returns the ELF image the kernel loads; its single text segment
// holds the two entry points.
func Image() []byte {
	text := make([]byte, 0x200)
	copy(text, banner)
	copy(text[ChildEntry-Entry:], childBanner)
	return elf.Build(Entry, elf.LoadSegment{VAddr: Entry, Data: text})
}

// Programs maps the entry points of Image to their host code.
func Programs() map[hal.VAddr]hal.Program {
	return map[hal.VAddr]hal.Program{
		Entry:      Main,
		ChildEntry: Child,
	}
}

func Main(env *hal.Env) {
	s := sys.New(env, abi.BufferVAddr)
	if err := run(env, s); err != nil {
		_ = s.Printf("rinit: %v", err)
	}
}

func run(env *hal.Env, s *sys.Sys) error {
	if err := s.Print("hello from rinit"); err != nil {
		return err
	}

	text := make([]byte, len(banner))
	if err := env.ReadAt(Entry, text); err != nil {
		return err
	}
	if bytes.Equal(text, banner) {
		s.Print("text segment ok")
	} else {
		s.Printf("text segment corrupt: %q", text)
	}
	if err := writeVGA(env, 0, "capos"); err != nil {
		return err
	}

	steps := []func() error{
		s.CPoolListDebug,
		func() error { return s.RetypeCPool(slotUntyped, slotChildPool) },
		func() error { return s.RetypeTask(slotUntyped, slotChild) },
		func() error { return s.TaskSetInstructionPointer(slotChild, ChildEntry) },
		func() error { return s.TaskSetStackPointer(slotChild, abi.InitialSP(abi.ChildStackVAddr)) },
		func() error { return s.TaskSetCPool(slotChild, abi.SlotRootPool) },
		func() error { return s.TaskSetTopPageTable(slotChild, slotTable) },
		func() error { return s.TaskSetBuffer(slotChild, abi.SlotChildBuffer) },
		func() error { return s.TaskSetActive(slotChild) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	v, err := s.ChannelTake(abi.SlotUtility)
	if err != nil {
		return err
	}
	s.Printf("child says 0x%x", v)

	for {
		code, err := s.ChannelTake(abi.SlotKeyboard)
		if err != nil {
			return err
		}
		if r, ok := hal.ScancodeRune(uint8(code)); ok {
			s.Printf("key: %c", r)
		}
	}
}

// Child runs on its own stack and buffer, greets its parent and parks.
func Child(env *hal.Env) {
	s := sys.New(env, abi.ChildBufferVAddr)
	if err := s.Print("hello from child"); err != nil {
		return
	}
	if err := s.ChannelPut(abi.SlotUtility, ChildHello); err != nil {
		return
	}
	_ = s.TaskSetInactive(slotChild)
}

// writeVGA writes s on row of the VGA text page, white on black.
func writeVGA(env *hal.Env, row int, s string) error {
	cells := make([]byte, 0, 2*len(s))
	for i := 0; i < len(s); i++ {
		cells = append(cells, s[i], 0x0F)
	}
	return env.WriteAt(abi.VGAVAddr+hal.VAddr(row*80*2), cells)
}
