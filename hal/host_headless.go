//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	Hz      int
	Ticks   uint64
	// TTY forwards keys typed on the controlling terminal to the keyboard.
	TTY bool
}

// RunHeadless runs the OS without opening a window.
//
// It returns nil once cfg.Ticks ticks have elapsed, or ctx.Err() when ctx
// is cancelled first.
func RunHeadless(ctx context.Context, newApp func(HAL) func() error, cfg HeadlessConfig, hc HostConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}
	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}

	h, err := NewHost(hc)
	if err != nil {
		return err
	}
	step := newApp(h)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancel()
		t := time.NewTicker(d)
		defer t.Stop()

		var tick uint64
		for {
			select {
			case <-gctx.Done():
				return ctx.Err()
			case <-t.C:
				h.t.step(1)
				if step != nil {
					if err := step(); err != nil {
						return err
					}
				}
				tick++
				if cfg.Ticks > 0 && tick >= cfg.Ticks {
					return nil
				}
			}
		}
	})

	if cfg.TTY {
		g.Go(func() error { return runTTYKeyboard(gctx, h.kbd) })
	}

	return g.Wait()
}
