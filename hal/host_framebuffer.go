//go:build !tinygo

package hal

import "sync"

const (
	defaultScreenWidth  = 640
	defaultScreenHeight = 400
)

// hostFramebuffer is double buffered: writers draw into buf without locking
// and Present publishes a copy for the window thread.
type hostFramebuffer struct {
	width  int
	height int
	stride int
	buf    []byte

	mu     sync.Mutex
	front  []byte
	frames uint64
}

func newHostFramebuffer(width, height int) *hostFramebuffer {
	if width <= 0 || height <= 0 {
		width, height = defaultScreenWidth, defaultScreenHeight
	}
	stride := width * 2
	return &hostFramebuffer{
		width:  width,
		height: height,
		stride: stride,
		buf:    make([]byte, stride*height),
		front:  make([]byte, stride*height),
	}
}

func (f *hostFramebuffer) Width() int          { return f.width }
func (f *hostFramebuffer) Height() int         { return f.height }
func (f *hostFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *hostFramebuffer) StrideBytes() int    { return f.stride }
func (f *hostFramebuffer) Buffer() []byte      { return f.buf }

func (f *hostFramebuffer) Present() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(f.front, f.buf)
	f.frames++
	return nil
}

func (f *hostFramebuffer) ClearRGB(r, g, b uint8) {
	pixel := rgb565(r, g, b)
	if len(f.buf) < 2 {
		return
	}
	f.buf[0] = byte(pixel)
	f.buf[1] = byte(pixel >> 8)
	for n := 2; n < len(f.buf); n *= 2 {
		copy(f.buf[n:], f.buf[:n])
	}
}

// presented converts the last presented frame into dst as RGBA when it is
// newer than seen, returning the frame number.
func (f *hostFramebuffer) presented(dst []byte, seen uint64) (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frames == seen {
		return seen, false
	}
	convertRGB565(dst, f.front)
	return f.frames, true
}
