package app

import (
	"image/color"
	"strings"
	"unicode/utf8"

	"capos/hal"
	"capos/kernel"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

const (
	fatalLineHeight = 10
	fatalBaseline   = 7
)

func installPanicHandler(h hal.HAL) {
	kernel.SetPanicHandler(func(info kernel.PanicInfo) {
		lines := fatalLines(info)
		if l := h.Logger(); l != nil {
			for _, line := range lines {
				l.WriteLineString(line)
			}
		}
		if disp := h.Display(); disp != nil {
			if fb := disp.Framebuffer(); fb != nil {
				drawFatal(fb, lines)
			}
		}
	})
}

func fatalLines(info kernel.PanicInfo) []string {
	lines := []string{info.Summary()}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line != "" {
			lines = append(lines, strings.ReplaceAll(line, "\t", "  "))
		}
	}
	return lines
}

// drawFatal paints lines white on blue, wrapping at the screen width and
// stopping at the bottom.
func drawFatal(fb hal.Framebuffer, lines []string) {
	fb.ClearRGB(0, 0, 0xAA)

	font := &proggy.TinySZ8pt7b
	_, w := tinyfont.LineWidth(font, "0")
	if w == 0 {
		_ = fb.Present()
		return
	}
	cols := fb.Width() / int(w)
	d := fatalDisplay{fb: fb}
	fg := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

	y := 0
	for _, line := range lines {
		for line != "" {
			if y+fatalLineHeight > fb.Height() {
				_ = fb.Present()
				return
			}
			var chunk string
			chunk, line = takeRunes(line, cols)
			x := int16(0)
			for _, r := range chunk {
				tinyfont.DrawChar(d, font, x, int16(y+fatalBaseline), r, fg)
				x += int16(w)
			}
			y += fatalLineHeight
		}
	}
	_ = fb.Present()
}

type fatalDisplay struct {
	fb hal.Framebuffer
}

func (d fatalDisplay) Size() (x, y int16) {
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d fatalDisplay) SetPixel(x, y int16, c color.RGBA) {
	if d.fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}
	buf := d.fb.Buffer()
	off := iy*d.fb.StrideBytes() + ix*2
	if off+1 >= len(buf) {
		return
	}
	pixel := uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d fatalDisplay) Display() error { return nil }

func takeRunes(s string, n int) (prefix, rest string) {
	if n <= 0 {
		return s, ""
	}
	i := 0
	for count := 0; i < len(s) && count < n; count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i], s[i:]
}
