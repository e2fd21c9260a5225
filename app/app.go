// Package app wires a HAL to the kernel: console logging, boot, the
// scheduler goroutine, the fatal screen and VGA snapshots.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"capos/console"
	"capos/hal"
	"capos/internal/buildinfo"
	"capos/kernel"
)

type Config struct {
	// Trace logs every system call.
	Trace bool
	// VGASnapshot, when set, is the path of a PNG rewritten whenever the
	// VGA text page changes.
	VGASnapshot string
}

// System is a booted kernel running on its own goroutine.
type System struct {
	h   hal.HAL
	cfg Config
	k   *kernel.Kernel

	cancel context.CancelFunc
	done   chan error
	err    error

	vga []string
}

// NewWithConfig boots the kernel on h and returns the per-tick step used by
// the host runners. The step returns an error once the kernel stops.
func NewWithConfig(h hal.HAL, cfg Config) func() error {
	s, err := Start(h, cfg)
	if err != nil {
		return func() error { return err }
	}
	return s.Step
}

// Start boots the kernel and starts its scheduler loop.
func Start(h hal.HAL, cfg Config) (*System, error) {
	log := h.Logger()
	con, err := console.New(h.Display())
	switch {
	case err == nil:
		log = console.Tee{log, con}
	case errors.Is(err, console.ErrNoFramebuffer), errors.Is(err, hal.ErrNotImplemented):
	default:
		return nil, err
	}
	installPanicHandler(h)
	if log != nil {
		log.WriteLineString(buildinfo.Banner())
	}

	k, err := kernel.Boot(kernel.Config{
		Machine: h.Machine(),
		Logger:  log,
		Trace:   cfg.Trace,
	})
	if err != nil {
		if log != nil {
			log.WriteLineString(err.Error())
		}
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &System{h: h, cfg: cfg, k: k, cancel: cancel, done: make(chan error, 1)}
	go func() { s.done <- k.Run(ctx) }()
	return s, nil
}

func (s *System) Kernel() *kernel.Kernel { return s.k }

// Step reports whether the kernel is still running and refreshes the VGA
// snapshot.
func (s *System) Step() error {
	if s.err != nil {
		return s.err
	}
	select {
	case err := <-s.done:
		if err == nil {
			err = context.Canceled
		}
		s.err = err
	default:
	}
	if err := s.snapshot(); err != nil {
		s.err = err
	}
	return s.err
}

// Stop cancels the scheduler loop and waits for it.
func (s *System) Stop() error {
	s.cancel()
	if s.err == nil {
		s.err = <-s.done
	}
	if errors.Is(s.err, context.Canceled) {
		return nil
	}
	return s.err
}

func (s *System) snapshot() error {
	if s.cfg.VGASnapshot == "" {
		return nil
	}
	mem := s.h.Machine().Memory()
	rows := console.VGAText(mem)
	if slices.Equal(rows, s.vga) {
		return nil
	}
	s.vga = rows
	if err := console.SaveVGAPNG(mem, s.cfg.VGASnapshot); err != nil {
		return fmt.Errorf("vga snapshot: %w", err)
	}
	return nil
}
