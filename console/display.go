package console

import (
	"image/color"

	"capos/hal"

	"tinygo.org/x/drivers"
)

// fbDisplay is a drivers.Displayer over an RGB565 framebuffer. Pixels land
// in a ring of rows; SetScroll moves the ring's top line and Display copies
// the ring to the framebuffer in screen order, like a panel with a hardware
// scroll register.
type fbDisplay struct {
	fb     hal.Framebuffer
	ring   []byte
	stride int
	scroll int
}

var _ drivers.Displayer = (*fbDisplay)(nil)

func newFBDisplay(fb hal.Framebuffer) *fbDisplay {
	stride := fb.Width() * 2
	return &fbDisplay{
		fb:     fb,
		ring:   make([]byte, stride*fb.Height()),
		stride: stride,
	}
}

func (d *fbDisplay) Size() (x, y int16) {
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d *fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}
	pixel := rgb565(c)
	off := iy*d.stride + ix*2
	d.ring[off] = byte(pixel)
	d.ring[off+1] = byte(pixel >> 8)
}

func (d *fbDisplay) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	w, h := d.fb.Width(), d.fb.Height()
	x0 := clampInt(int(x), 0, w)
	y0 := clampInt(int(y), 0, h)
	x1 := clampInt(int(x)+int(width), 0, w)
	y1 := clampInt(int(y)+int(height), 0, h)

	pixel := rgb565(c)
	lo, hi := byte(pixel), byte(pixel>>8)
	for py := y0; py < y1; py++ {
		row := py * d.stride
		for px := x0; px < x1; px++ {
			d.ring[row+px*2] = lo
			d.ring[row+px*2+1] = hi
		}
	}
	return nil
}

func (d *fbDisplay) SetScroll(line int16) {
	h := d.fb.Height()
	d.scroll = ((int(line) % h) + h) % h
}

func (d *fbDisplay) SetRotation(rotation drivers.Rotation) error {
	_ = rotation
	return nil
}

// Display presents the ring starting at the scroll line.
func (d *fbDisplay) Display() error {
	buf := d.fb.Buffer()
	if buf == nil || d.fb.Format() != hal.PixelFormatRGB565 {
		return nil
	}
	fbStride := d.fb.StrideBytes()
	row := d.stride
	if row > fbStride {
		row = fbStride
	}
	h := d.fb.Height()
	for y := 0; y < h; y++ {
		src := ((y + d.scroll) % h) * d.stride
		dst := y * fbStride
		if dst+row > len(buf) {
			break
		}
		copy(buf[dst:dst+row], d.ring[src:src+row])
	}
	return d.fb.Present()
}

func rgb565(c color.RGBA) uint16 {
	return uint16((uint16(c.R>>3)&0x1F)<<11 | (uint16(c.G>>2)&0x3F)<<5 | (uint16(c.B>>3) & 0x1F))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
