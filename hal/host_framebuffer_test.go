package hal

import "testing"

func TestFramebufferPresent(t *testing.T) {
	fb := newHostFramebuffer(4, 3)
	fb.ClearRGB(0xFF, 0, 0)
	for i := 0; i < len(fb.buf); i += 2 {
		if p := uint16(fb.buf[i]) | uint16(fb.buf[i+1])<<8; p != 0xF800 {
			t.Fatalf("pixel %d = %#04x, want 0xf800", i/2, p)
		}
	}

	dst := make([]byte, 4*3*4)
	if _, ok := fb.presented(dst, 0); ok {
		t.Fatal("nothing presented yet")
	}
	if err := fb.Present(); err != nil {
		t.Fatal(err)
	}
	frame, ok := fb.presented(dst, 0)
	if !ok || frame != 1 {
		t.Fatalf("presented = %d, %v", frame, ok)
	}
	if dst[0] != 0xFF || dst[1] != 0 || dst[2] != 0 || dst[3] != 0xFF {
		t.Fatalf("unexpected first pixel % x", dst[:4])
	}

	fb.ClearRGB(0, 0, 0)
	if _, ok := fb.presented(dst, frame); ok {
		t.Fatal("unpresented draw must not be visible")
	}
}

func TestFramebufferDefaults(t *testing.T) {
	fb := newHostFramebuffer(0, 0)
	if fb.Width() != defaultScreenWidth || fb.StrideBytes() != 2*defaultScreenWidth {
		t.Fatalf("unexpected size %dx%d", fb.Width(), fb.Height())
	}
}
