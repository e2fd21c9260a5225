package kernel

import "capos/hal"

type (
	PAddr = hal.PAddr
	VAddr = hal.VAddr
)

const PageLength = hal.PageLength
