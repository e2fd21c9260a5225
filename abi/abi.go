// Package abi is the system-call interface shared by the kernel and user
// space. One request, and for ChannelTake one response, travels through the
// task buffer page at a time.
package abi

import (
	"capos/hal"
)

// Index names a slot in a capability pool.
type Index uint64

// Call identifies a system call.
type Call uint8

const (
	CallNone Call = iota
	CallPrint
	CallCPoolListDebug
	CallRetypeCPool
	CallRetypeTask
	CallTaskSetInstructionPointer
	CallTaskSetStackPointer
	CallTaskSetCPool
	CallTaskSetTopPageTable
	CallTaskSetBuffer
	CallTaskSetActive
	CallTaskSetInactive
	CallChannelTake
	CallChannelPut
)

func (c Call) String() string {
	switch c {
	case CallNone:
		return "None"
	case CallPrint:
		return "Print"
	case CallCPoolListDebug:
		return "CPoolListDebug"
	case CallRetypeCPool:
		return "RetypeCPool"
	case CallRetypeTask:
		return "RetypeTask"
	case CallTaskSetInstructionPointer:
		return "TaskSetInstructionPointer"
	case CallTaskSetStackPointer:
		return "TaskSetStackPointer"
	case CallTaskSetCPool:
		return "TaskSetCPool"
	case CallTaskSetTopPageTable:
		return "TaskSetTopPageTable"
	case CallTaskSetBuffer:
		return "TaskSetBuffer"
	case CallTaskSetActive:
		return "TaskSetActive"
	case CallTaskSetInactive:
		return "TaskSetInactive"
	case CallChannelTake:
		return "ChannelTake"
	case CallChannelPut:
		return "ChannelPut"
	default:
		return "Unknown"
	}
}

// SystemCall is one decoded request.
type SystemCall interface {
	Call() Call
}

// PrintMax is the largest Print payload.
const PrintMax = 128

type Print struct {
	Bytes [PrintMax]byte
	Len   uint16
}

// NewPrint builds a Print request, truncating s to PrintMax bytes.
func NewPrint(s string) Print {
	var p Print
	p.Len = uint16(copy(p.Bytes[:], s))
	return p
}

// Payload returns the valid part of Bytes.
func (p *Print) Payload() []byte {
	n := int(p.Len)
	if n > PrintMax {
		n = PrintMax
	}
	return p.Bytes[:n]
}

type CPoolListDebug struct{}

type RetypeCPool struct {
	Source Index
	Target Index
}

type RetypeTask struct {
	Source Index
	Target Index
}

type TaskSetInstructionPointer struct {
	Task  Index
	VAddr hal.VAddr
}

type TaskSetStackPointer struct {
	Task  Index
	VAddr hal.VAddr
}

type TaskSetCPool struct {
	Task  Index
	CPool Index
}

type TaskSetTopPageTable struct {
	Task  Index
	Table Index
}

type TaskSetBuffer struct {
	Task   Index
	Buffer Index
}

type TaskSetActive struct {
	Task Index
}

type TaskSetInactive struct {
	Task Index
}

// ChannelTake parks the caller until Channel holds a value. The kernel
// fills Response before the task runs again.
type ChannelTake struct {
	Channel     Index
	Response    uint64
	HasResponse bool
}

type ChannelPut struct {
	Channel Index
	Value   uint64
}

func (Print) Call() Call                     { return CallPrint }
func (CPoolListDebug) Call() Call            { return CallCPoolListDebug }
func (RetypeCPool) Call() Call               { return CallRetypeCPool }
func (RetypeTask) Call() Call                { return CallRetypeTask }
func (TaskSetInstructionPointer) Call() Call { return CallTaskSetInstructionPointer }
func (TaskSetStackPointer) Call() Call       { return CallTaskSetStackPointer }
func (TaskSetCPool) Call() Call              { return CallTaskSetCPool }
func (TaskSetTopPageTable) Call() Call       { return CallTaskSetTopPageTable }
func (TaskSetBuffer) Call() Call             { return CallTaskSetBuffer }
func (TaskSetActive) Call() Call             { return CallTaskSetActive }
func (TaskSetInactive) Call() Call           { return CallTaskSetInactive }
func (ChannelTake) Call() Call               { return CallChannelTake }
func (ChannelPut) Call() Call                { return CallChannelPut }
