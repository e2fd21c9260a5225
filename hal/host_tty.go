//go:build !tinygo

package hal

import (
	"context"
	"fmt"

	"github.com/mattn/go-tty"
)

// runTTYKeyboard feeds runes typed on the controlling terminal into kbd
// until ctx is done.
func runTTYKeyboard(ctx context.Context, kbd *hostKeyboard) error {
	t, err := tty.Open()
	if err != nil {
		return fmt.Errorf("open tty: %w", err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		t.Close()
	}()

	for {
		r, err := t.ReadRune()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read tty: %w", err)
		}
		if r == 0 {
			continue
		}
		// Terminals report no key-up; a synthesized release would overwrite
		// the latched make code before the kernel reads it.
		kbd.push(KeyEvent{Press: true, Rune: r})
	}
}
