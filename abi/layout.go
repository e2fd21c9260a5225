package abi

import "capos/hal"

// Well-known slots of the root capability pool.
const (
	SlotRootPool    Index = 0
	SlotChildBuffer Index = 250
	SlotKeyboard    Index = 254
	SlotUtility     Index = 255
)

// Address-space layout set up for rinit at boot.
const (
	StackPages = 4

	StackVAddr       hal.VAddr = 0x80000000
	ChildStackVAddr  hal.VAddr = 0x70000000
	BufferVAddr      hal.VAddr = 0x90001000
	VGAVAddr         hal.VAddr = 0x90002000
	ChildBufferVAddr hal.VAddr = 0x90003000

	// VGAPAddr is the VGA text-mode page.
	VGAPAddr hal.PAddr = 0xb8000
)

// InitialSP is the stack pointer a task starts with on a stack at base.
func InitialSP(base hal.VAddr) hal.VAddr {
	return base + StackPages*hal.PageLength - 8
}
