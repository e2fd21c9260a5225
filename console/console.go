// Package console renders kernel log lines and user prints on the HAL
// framebuffer through a VT100 terminal, and snapshots the VGA text page.
package console

import (
	"errors"
	"sync"

	"capos/hal"

	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

var ErrNoFramebuffer = errors.New("console: no framebuffer")

// Console is a terminal on the framebuffer. It is a hal.Logger and an
// io.Writer.
type Console struct {
	mu   sync.Mutex
	d    *fbDisplay
	term *tinyterm.Terminal
}

func New(disp hal.Display) (*Console, error) {
	if disp == nil || disp.Framebuffer() == nil {
		return nil, ErrNoFramebuffer
	}
	fb := disp.Framebuffer()
	if fb.Format() != hal.PixelFormatRGB565 {
		return nil, hal.ErrNotImplemented
	}
	fb.ClearRGB(0, 0, 0)

	d := newFBDisplay(fb)
	term := tinyterm.NewTerminal(d)
	term.Configure(&tinyterm.Config{
		Font:       &proggy.TinySZ8pt7b,
		FontHeight: 10,
		FontOffset: 6,
	})
	return &Console{d: d, term: term}, nil
}

func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.term.Write(p)
	_ = c.d.Display()
	return n, err
}

func (c *Console) WriteLineString(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.term.Write([]byte(s))
	c.term.Write([]byte("\r\n"))
	_ = c.d.Display()
}

func (c *Console) WriteLineBytes(b []byte) {
	c.WriteLineString(string(b))
}

// Tee fans log lines out to every logger.
type Tee []hal.Logger

func (t Tee) WriteLineString(s string) {
	for _, l := range t {
		if l != nil {
			l.WriteLineString(s)
		}
	}
}

func (t Tee) WriteLineBytes(b []byte) {
	for _, l := range t {
		if l != nil {
			l.WriteLineBytes(b)
		}
	}
}
