package kernel

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// PanicInfo describes a kernel panic recovered by Run.
type PanicInfo struct {
	// TaskKey is the task being switched to, 0 when the kernel itself was
	// running.
	TaskKey uint64
	Value   any
	Stats   Stats
	Stack   []byte
}

// Summary is the one-line header of a panic report.
func (p PanicInfo) Summary() string {
	return fmt.Sprintf("kernel panic: task=%d iterations=%d syscalls=%d: %v",
		p.TaskKey, p.Stats.Iterations, p.Stats.SystemCalls, p.Value)
}

var (
	panicked  atomic.Bool
	panicOnce sync.Once
	onPanic   atomic.Pointer[func(PanicInfo)]
)

// InPanicMode reports whether a kernel has panicked in this process.
func InPanicMode() bool { return panicked.Load() }

// SetPanicHandler installs the process-wide panic handler. It runs at most
// once, for the first panic, and must not panic itself.
func SetPanicHandler(fn func(PanicInfo)) {
	onPanic.Store(&fn)
}

func (k *Kernel) recovered(v any) PanicInfo {
	info := PanicInfo{
		TaskKey: k.current.Load(),
		Value:   v,
		Stats:   k.Stats(),
		Stack:   debug.Stack(),
	}
	panicOnce.Do(func() {
		panicked.Store(true)
		if fn := onPanic.Load(); fn != nil && *fn != nil {
			(*fn)(info)
		}
	})
	return info
}
