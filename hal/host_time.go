//go:build !tinygo

package hal

import (
	"sync"
	"time"
)

// hostTime ticks once per millisecond of wall time observed by step.
type hostTime struct {
	ch chan uint64

	mu   sync.Mutex
	seq  uint64
	last time.Time
	acc  time.Duration
}

func newHostTime() *hostTime {
	return &hostTime{ch: make(chan uint64, 1024)}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

func (t *hostTime) step(n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if t.last.IsZero() {
		t.last = now
		t.acc = 0
		t.emit(n)
		return
	}

	t.acc += now.Sub(t.last)
	t.last = now

	const tickDur = time.Millisecond
	ticks := uint64(t.acc / tickDur)
	if ticks == 0 {
		return
	}
	t.acc = t.acc % tickDur
	t.emit(ticks)
}

func (t *hostTime) stepN(n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emit(n)
}

func (t *hostTime) emit(n uint64) {
	for i := uint64(0); i < n; i++ {
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
		}
	}
}
