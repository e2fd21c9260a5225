package abi

import (
	"encoding/binary"
	"errors"
	"fmt"

	"capos/hal"
)

var (
	ErrShortBuffer = errors.New("abi: buffer too short")
	ErrNoRequest   = errors.New("abi: no pending request")
	ErrUnknownCall = errors.New("abi: unknown call")
)

// Buffer layout (little-endian):
//
//	[0]      pending flag (1 = request present)
//	[1]      call number
//	[8:16]   arg0
//	[16:24]  arg1
//	[24]     response flag
//	[32:40]  response value
//	[40:42]  print length
//	[64:192] print bytes
const (
	offPending  = 0
	offCall     = 1
	offArg0     = 8
	offArg1     = 16
	offRespFlag = 24
	offResp     = 32
	offPrintLen = 40
	offPrint    = 64

	// BufferSize is the number of bytes of the task buffer page in use.
	BufferSize = offPrint + PrintMax
)

// Encode writes sc as the pending request in b.
func Encode(b []byte, sc SystemCall) error {
	if len(b) < BufferSize {
		return ErrShortBuffer
	}
	clear(b[:BufferSize])

	var arg0, arg1 uint64
	switch c := sc.(type) {
	case Print:
		n := copy(b[offPrint:offPrint+PrintMax], c.Payload())
		binary.LittleEndian.PutUint16(b[offPrintLen:], uint16(n))
	case *Print:
		n := copy(b[offPrint:offPrint+PrintMax], c.Payload())
		binary.LittleEndian.PutUint16(b[offPrintLen:], uint16(n))
	case CPoolListDebug:
	case RetypeCPool:
		arg0, arg1 = uint64(c.Source), uint64(c.Target)
	case RetypeTask:
		arg0, arg1 = uint64(c.Source), uint64(c.Target)
	case TaskSetInstructionPointer:
		arg0, arg1 = uint64(c.Task), uint64(c.VAddr)
	case TaskSetStackPointer:
		arg0, arg1 = uint64(c.Task), uint64(c.VAddr)
	case TaskSetCPool:
		arg0, arg1 = uint64(c.Task), uint64(c.CPool)
	case TaskSetTopPageTable:
		arg0, arg1 = uint64(c.Task), uint64(c.Table)
	case TaskSetBuffer:
		arg0, arg1 = uint64(c.Task), uint64(c.Buffer)
	case TaskSetActive:
		arg0 = uint64(c.Task)
	case TaskSetInactive:
		arg0 = uint64(c.Task)
	case ChannelTake:
		arg0 = uint64(c.Channel)
	case ChannelPut:
		arg0, arg1 = uint64(c.Channel), c.Value
	default:
		return fmt.Errorf("%w: %T", ErrUnknownCall, sc)
	}

	b[offPending] = 1
	b[offCall] = byte(sc.Call())
	binary.LittleEndian.PutUint64(b[offArg0:], arg0)
	binary.LittleEndian.PutUint64(b[offArg1:], arg1)
	return nil
}

// Decode reads the pending request from b.
func Decode(b []byte) (SystemCall, error) {
	if len(b) < BufferSize {
		return nil, ErrShortBuffer
	}
	if b[offPending] != 1 {
		return nil, ErrNoRequest
	}
	arg0 := binary.LittleEndian.Uint64(b[offArg0:])
	arg1 := binary.LittleEndian.Uint64(b[offArg1:])

	switch c := Call(b[offCall]); c {
	case CallPrint:
		var p Print
		n := binary.LittleEndian.Uint16(b[offPrintLen:])
		if n > PrintMax {
			n = PrintMax
		}
		copy(p.Bytes[:], b[offPrint:offPrint+int(n)])
		p.Len = n
		return p, nil
	case CallCPoolListDebug:
		return CPoolListDebug{}, nil
	case CallRetypeCPool:
		return RetypeCPool{Source: Index(arg0), Target: Index(arg1)}, nil
	case CallRetypeTask:
		return RetypeTask{Source: Index(arg0), Target: Index(arg1)}, nil
	case CallTaskSetInstructionPointer:
		return TaskSetInstructionPointer{Task: Index(arg0), VAddr: hal.VAddr(arg1)}, nil
	case CallTaskSetStackPointer:
		return TaskSetStackPointer{Task: Index(arg0), VAddr: hal.VAddr(arg1)}, nil
	case CallTaskSetCPool:
		return TaskSetCPool{Task: Index(arg0), CPool: Index(arg1)}, nil
	case CallTaskSetTopPageTable:
		return TaskSetTopPageTable{Task: Index(arg0), Table: Index(arg1)}, nil
	case CallTaskSetBuffer:
		return TaskSetBuffer{Task: Index(arg0), Buffer: Index(arg1)}, nil
	case CallTaskSetActive:
		return TaskSetActive{Task: Index(arg0)}, nil
	case CallTaskSetInactive:
		return TaskSetInactive{Task: Index(arg0)}, nil
	case CallChannelTake:
		v, ok := Response(b)
		return ChannelTake{Channel: Index(arg0), Response: v, HasResponse: ok}, nil
	case CallChannelPut:
		return ChannelPut{Channel: Index(arg0), Value: arg1}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCall, uint8(c))
	}
}

// SetResponse fills the response field of the pending request.
func SetResponse(b []byte, v uint64) error {
	if len(b) < BufferSize {
		return ErrShortBuffer
	}
	b[offRespFlag] = 1
	binary.LittleEndian.PutUint64(b[offResp:], v)
	return nil
}

// Response reports the response field, if the kernel has filled it.
func Response(b []byte) (uint64, bool) {
	if len(b) < BufferSize || b[offRespFlag] != 1 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b[offResp:]), true
}

// Clear drops any pending request and response.
func Clear(b []byte) {
	n := len(b)
	if n > BufferSize {
		n = BufferSize
	}
	clear(b[:n])
}
