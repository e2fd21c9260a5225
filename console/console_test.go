package console

import (
	"image/color"
	"testing"

	"capos/hal"
)

type testFB struct {
	w, h int
	buf  []byte
}

func newTestFB(w, h int) *testFB { return &testFB{w: w, h: h, buf: make([]byte, w*h*2)} }

func (f *testFB) Width() int              { return f.w }
func (f *testFB) Height() int             { return f.h }
func (f *testFB) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *testFB) StrideBytes() int        { return f.w * 2 }
func (f *testFB) Buffer() []byte          { return f.buf }
func (f *testFB) Present() error          { return nil }
func (f *testFB) ClearRGB(r, g, b uint8) {
	for i := range f.buf {
		f.buf[i] = 0
	}
}

type testDisplay struct{ fb hal.Framebuffer }

func (d testDisplay) Framebuffer() hal.Framebuffer { return d.fb }

func lit(buf []byte) int {
	n := 0
	for i := 0; i+1 < len(buf); i += 2 {
		if buf[i] != 0 || buf[i+1] != 0 {
			n++
		}
	}
	return n
}

func TestConsoleDrawsText(t *testing.T) {
	fb := newTestFB(320, 200)
	c, err := New(testDisplay{fb: fb})
	if err != nil {
		t.Fatal(err)
	}
	c.WriteLineString("hello, world!")
	if lit(fb.buf) == 0 {
		t.Fatal("expected text pixels in framebuffer")
	}
}

func TestConsoleNoFramebuffer(t *testing.T) {
	if _, err := New(testDisplay{}); err != ErrNoFramebuffer {
		t.Fatalf("expected ErrNoFramebuffer, got %v", err)
	}
}

func TestDisplayScrollRotatesRows(t *testing.T) {
	fb := newTestFB(4, 4)
	d := newFBDisplay(fb)
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	d.SetPixel(0, 1, white)
	d.SetScroll(1)
	if err := d.Display(); err != nil {
		t.Fatal(err)
	}
	if fb.buf[0] == 0 {
		t.Fatal("expected ring row 1 presented at the top")
	}
	d.SetScroll(-3)
	if d.scroll != 1 {
		t.Fatalf("expected negative scroll to wrap to 1, got %d", d.scroll)
	}
}

type recorder struct{ lines []string }

func (r *recorder) WriteLineString(s string) { r.lines = append(r.lines, s) }
func (r *recorder) WriteLineBytes(b []byte)  { r.lines = append(r.lines, string(b)) }

func TestTee(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	tee := Tee{a, nil, b}
	tee.WriteLineString("x")
	tee.WriteLineBytes([]byte("y"))
	if len(a.lines) != 2 || len(b.lines) != 2 || b.lines[1] != "y" {
		t.Fatalf("unexpected fan-out %v %v", a.lines, b.lines)
	}
}
