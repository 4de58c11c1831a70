package raster

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func grayFrom(w, h int, values ...uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	copy(img.Pix, values)
	return img
}

func uniformGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func gradient(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x*255)/(w-1) ^ (y * 3))})
		}
	}
	return img
}

func TestDitherUniformWhite(t *testing.T) {
	bm := Dither(uniformGray(10, 10, 255))
	for i, v := range bm.Pix {
		if v != White {
			t.Fatalf("Expected pixel %d to be white, got %d", i, v)
		}
	}
}

func TestDitherUniformBlack(t *testing.T) {
	bm := Dither(uniformGray(10, 10, 0))
	for i, v := range bm.Pix {
		if v != Black {
			t.Fatalf("Expected pixel %d to be black, got %d", i, v)
		}
	}
}

func TestDitherCheckerboard(t *testing.T) {
	bm := Dither(grayFrom(2, 2, 0, 255, 255, 0))
	want := []uint8{Black, White, White, Black}
	if diff := cmp.Diff(want, bm.Pix); diff != "" {
		t.Errorf("Checkerboard mismatch (-want +got):\n%s", diff)
	}
}

func TestDitherThresholdBoundary(t *testing.T) {
	// A lone pixel has no neighbours to receive error.
	if got := Dither(grayFrom(1, 1, 127)).Pix[0]; got != Black {
		t.Errorf("Expected 127 to be black, got %d", got)
	}
	if got := Dither(grayFrom(1, 1, 128)).Pix[0]; got != White {
		t.Errorf("Expected 128 to be white, got %d", got)
	}
}

func TestDitherErrorDiffusion(t *testing.T) {
	// 100 is black and pushes 100*7/16 = 43 right, lifting 100 to 143.
	bm := Dither(grayFrom(2, 1, 100, 100))
	want := []uint8{Black, White}
	if diff := cmp.Diff(want, bm.Pix); diff != "" {
		t.Errorf("Diffusion mismatch (-want +got):\n%s", diff)
	}
}

func TestDitherMidGrayMix(t *testing.T) {
	bm := Dither(uniformGray(40, 40, 128))
	white := 0
	for _, v := range bm.Pix {
		if v == White {
			white++
		}
	}
	ratio := float64(white) / float64(len(bm.Pix))
	if ratio < 0.35 || ratio > 0.65 {
		t.Errorf("Expected roughly half the pixels white, got %.2f", ratio)
	}
}

func TestDitherDeterministic(t *testing.T) {
	src := gradient(64, 48)
	before := append([]uint8(nil), src.Pix...)

	a := Dither(src)
	b := Dither(src)

	if !a.Equal(b) {
		t.Error("Dithering the same canvas twice should give identical bitmaps")
	}
	if !bytes.Equal(before, src.Pix) {
		t.Error("Dither should not modify its input")
	}
}

func TestDithererModes(t *testing.T) {
	src := gradient(32, 16)

	for _, mode := range []DitherMode{DitherFloydSteinberg, DitherThreshold, DitherNone, DitherAtkinson, DitherBayer} {
		t.Run(string(mode), func(t *testing.T) {
			d := Ditherer{Mode: mode}
			a := d.Dither(src)
			if a.Width != 32 || a.Height != 16 || len(a.Pix) != 32*16 {
				t.Fatalf("Expected 32x16 bitmap, got %dx%d with %d pixels", a.Width, a.Height, len(a.Pix))
			}
			for i, v := range a.Pix {
				if v != Black && v != White {
					t.Fatalf("Pixel %d has value %d, expected 0 or 1", i, v)
				}
			}
			if !a.Equal(d.Dither(src)) {
				t.Error("Expected deterministic output")
			}
		})
	}
}

func TestDithererThresholdMode(t *testing.T) {
	src := grayFrom(4, 1, 10, 90, 110, 250)

	got := Ditherer{Mode: DitherThreshold, Threshold: 100}.Dither(src).Pix
	want := []uint8{Black, Black, White, White}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Threshold mismatch (-want +got):\n%s", diff)
	}

	got = Ditherer{Mode: DitherNone, Threshold: 100}.Dither(src).Pix
	want = []uint8{Black, Black, Black, White}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Mode none should ignore the custom threshold (-want +got):\n%s", diff)
	}
}

func TestZeroDithererMatchesDither(t *testing.T) {
	src := gradient(20, 20)
	if !(Ditherer{}).Dither(src).Equal(Dither(src)) {
		t.Error("Zero Ditherer should behave like Dither")
	}
}

func TestParseDitherMode(t *testing.T) {
	tests := []struct {
		input   string
		want    DitherMode
		wantErr bool
	}{
		{"", DitherFloydSteinberg, false},
		{"floyd", DitherFloydSteinberg, false},
		{"Floyd-Steinberg", DitherFloydSteinberg, false},
		{"threshold", DitherThreshold, false},
		{" none ", DitherNone, false},
		{"ordered", DitherBayer, false},
		{"atkinson", DitherAtkinson, false},
		{"4level", "", true},
	}

	for _, tt := range tests {
		got, err := ParseDitherMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDitherMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDitherMode(%q) = %q, expected %q", tt.input, got, tt.want)
		}
	}
}

func TestBitmapFromPaletted(t *testing.T) {
	img := image.NewPaletted(image.Rect(0, 0, 3, 1), color.Palette{color.White, color.Black, color.Gray{Y: 200}})
	img.Pix = []uint8{0, 1, 2}

	got := BitmapFromPaletted(img).Pix
	want := []uint8{White, Black, White}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Palette classification mismatch (-want +got):\n%s", diff)
	}
}
