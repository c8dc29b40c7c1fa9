package texture

import (
	"bytes"
	"image/color"
	"testing"
)

func TestNewGridDefaultsAlphaTo255(t *testing.T) {
	g := NewGrid(4, 4)
	for _, p := range g.Pixels {
		if p.A != 255 {
			t.Fatalf("expected alpha 255, got %d", p.A)
		}
	}
}

func TestPNGRoundTripPreservesPixels(t *testing.T) {
	g := NewGrid(2, 2)
	g.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	g.Set(1, 1, color.RGBA{R: 200, G: 150, B: 5, A: 42})

	var buf bytes.Buffer
	ext, err := (PNGEncoder{}).Encode(&buf, g)
	if err != nil {
		t.Fatal(err)
	}
	if ext != ".png" {
		t.Fatalf("expected .png extension, got %s", ext)
	}

	got, err := (PNGDecoder{}).Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Width != 2 || got.Height != 2 {
		t.Fatalf("unexpected dims %dx%d", got.Width, got.Height)
	}
	if got.Pixels[0] != (color.RGBA{R: 10, G: 20, B: 30, A: 255}) {
		t.Errorf("pixel (0,0) mismatch: %+v", got.Pixels[0])
	}
	if got.Pixels[3] != (color.RGBA{R: 200, G: 150, B: 5, A: 42}) {
		t.Errorf("pixel (1,1) mismatch: %+v", got.Pixels[3])
	}
}
