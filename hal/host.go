//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// HostConfig describes the simulated machine.
type HostConfig struct {
	// RAMBytes is the amount of physical memory. Defaults to 64 MiB.
	RAMBytes uint64
	// Rinit is the initial user binary copied into the rinit region.
	Rinit []byte
	// Programs maps entry addresses to host user code.
	Programs map[VAddr]Program
	// Log receives kernel log lines. Defaults to stdout.
	Log io.Writer
	// ScreenWidth and ScreenHeight size the framebuffer. Default 640x400.
	ScreenWidth, ScreenHeight int
}

// Host is the host HAL: a simulated PC with RAM, a keyboard controller, a
// timer and a framebuffer.
type Host struct {
	logger  *hostLogger
	fb      *hostFramebuffer
	kbd     *hostKeyboard
	t       *hostTime
	machine *hostMachine
}

// NewHost builds a host machine from cfg.
func NewHost(cfg HostConfig) (*Host, error) {
	w := cfg.Log
	if w == nil {
		w = os.Stdout
	}
	logger := &hostLogger{w: w}
	t := newHostTime()
	kbd := newHostKeyboard()
	m, err := newHostMachine(cfg, kbd, t)
	if err != nil {
		return nil, fmt.Errorf("host machine: %w", err)
	}
	return &Host{
		logger:  logger,
		fb:      newHostFramebuffer(cfg.ScreenWidth, cfg.ScreenHeight),
		kbd:     kbd,
		t:       t,
		machine: m,
	}, nil
}

func (h *Host) Logger() Logger   { return h.logger }
func (h *Host) Display() Display { return hostDisplay{fb: h.fb} }
func (h *Host) Input() Input     { return hostInput{kbd: h.kbd} }
func (h *Host) Time() Time       { return h.t }
func (h *Host) Machine() Machine { return h.machine }

// PressKey injects a key press as if typed on the keyboard.
func (h *Host) PressKey(r rune) {
	h.kbd.push(KeyEvent{Press: true, Rune: r})
}

// Tick advances the host timebase by n ticks.
func (h *Host) Tick(n uint64) { h.t.stepN(n) }

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostInput struct {
	kbd *hostKeyboard
}

func (in hostInput) Keyboard() Keyboard { return in.kbd }

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}
