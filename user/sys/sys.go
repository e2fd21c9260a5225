// Package sys is the user-space side of the system-call ABI: each call
// writes one request into the task buffer and traps.
package sys

import (
	"fmt"

	"capos/abi"
	"capos/hal"
)

// Sys issues system calls for one task.
type Sys struct {
	env    *hal.Env
	buffer hal.VAddr
	page   [abi.BufferSize]byte
}

// New returns stubs using the task buffer mapped at buffer.
func New(env *hal.Env, buffer hal.VAddr) *Sys {
	return &Sys{env: env, buffer: buffer}
}

// Call writes sc to the buffer and traps into the kernel.
func (s *Sys) Call(sc abi.SystemCall) error {
	if err := abi.Encode(s.page[:], sc); err != nil {
		return err
	}
	if err := s.env.WriteAt(s.buffer, s.page[:]); err != nil {
		return fmt.Errorf("write buffer: %w", err)
	}
	s.env.Syscall()
	return nil
}

func (s *Sys) Print(str string) error { return s.Call(abi.NewPrint(str)) }

func (s *Sys) Printf(format string, args ...any) error {
	return s.Print(fmt.Sprintf(format, args...))
}

func (s *Sys) CPoolListDebug() error { return s.Call(abi.CPoolListDebug{}) }

func (s *Sys) RetypeCPool(src, dst abi.Index) error {
	return s.Call(abi.RetypeCPool{Source: src, Target: dst})
}

func (s *Sys) RetypeTask(src, dst abi.Index) error {
	return s.Call(abi.RetypeTask{Source: src, Target: dst})
}

func (s *Sys) TaskSetInstructionPointer(task abi.Index, v hal.VAddr) error {
	return s.Call(abi.TaskSetInstructionPointer{Task: task, VAddr: v})
}

func (s *Sys) TaskSetStackPointer(task abi.Index, v hal.VAddr) error {
	return s.Call(abi.TaskSetStackPointer{Task: task, VAddr: v})
}

func (s *Sys) TaskSetCPool(task, cpool abi.Index) error {
	return s.Call(abi.TaskSetCPool{Task: task, CPool: cpool})
}

func (s *Sys) TaskSetTopPageTable(task, table abi.Index) error {
	return s.Call(abi.TaskSetTopPageTable{Task: task, Table: table})
}

func (s *Sys) TaskSetBuffer(task, buffer abi.Index) error {
	return s.Call(abi.TaskSetBuffer{Task: task, Buffer: buffer})
}

func (s *Sys) TaskSetActive(task abi.Index) error {
	return s.Call(abi.TaskSetActive{Task: task})
}

func (s *Sys) TaskSetInactive(task abi.Index) error {
	return s.Call(abi.TaskSetInactive{Task: task})
}

func (s *Sys) ChannelPut(ch abi.Index, v uint64) error {
	return s.Call(abi.ChannelPut{Channel: ch, Value: v})
}

// TryChannelTake issues one ChannelTake. It reports false when the kernel
// resumed the task without a value, which happens when ch is not a channel.
func (s *Sys) TryChannelTake(ch abi.Index) (uint64, bool, error) {
	if err := s.Call(abi.ChannelTake{Channel: ch}); err != nil {
		return 0, false, err
	}
	if err := s.env.ReadAt(s.buffer, s.page[:]); err != nil {
		return 0, false, fmt.Errorf("read buffer: %w", err)
	}
	v, ok := abi.Response(s.page[:])
	return v, ok, nil
}

// ChannelTake blocks until ch delivers a value.
func (s *Sys) ChannelTake(ch abi.Index) (uint64, error) {
	for {
		v, ok, err := s.TryChannelTake(ch)
		if err != nil || ok {
			return v, err
		}
	}
}
