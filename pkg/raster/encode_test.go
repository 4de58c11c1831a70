package raster

import (
	"bytes"
	"encoding/hex"
	"errors"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func patterned(w, h int) *Bitmap {
	b := &Bitmap{Width: w, Height: h, Pix: make([]uint8, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x*7+y*3)%5 < 2 {
				b.Pix[y*w+x] = White
			}
		}
	}
	return b
}

func TestStride(t *testing.T) {
	tests := map[int]int{1: 1, 7: 1, 8: 1, 9: 2, 16: 2, 296: 37, 400: 50}
	for width, want := range tests {
		if got := Stride(width); got != want {
			t.Errorf("Stride(%d) = %d, expected %d", width, got, want)
		}
	}
}

func TestPackNinePixelRow(t *testing.T) {
	black, _ := NewBitmap(9, 1)
	for i := range black.Pix {
		black.Pix[i] = Black
	}

	got := Pack(black)
	want := []byte{0x00, 0x7F}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Packed black row mismatch (-want +got):\n%s", diff)
	}
	if got[1]&0x7F != 0x7F {
		t.Errorf("Expected padding bits to be white, got %08b", got[1])
	}

	white, _ := NewBitmap(9, 1)
	if diff := cmp.Diff([]byte{0xFF, 0xFF}, Pack(white)); diff != "" {
		t.Errorf("Packed white row mismatch (-want +got):\n%s", diff)
	}
}

func TestPackBitOrder(t *testing.T) {
	b, _ := NewBitmap(8, 1)
	b.Set(0, 0, Black)
	b.Set(6, 0, Black)

	got := Pack(b)
	if got[0] != 0x7D {
		t.Errorf("Expected 0x7D (MSB is leftmost pixel), got %#02x", got[0])
	}
}

func TestPackRoundTrip(t *testing.T) {
	for _, size := range [][2]int{{1, 1}, {8, 3}, {9, 4}, {13, 7}, {400, 300}} {
		src := patterned(size[0], size[1])
		data := Pack(src)
		if len(data) != Stride(size[0])*size[1] {
			t.Errorf("%dx%d: expected %d bytes, got %d", size[0], size[1], Stride(size[0])*size[1], len(data))
		}

		back, err := Unpack(data, size[0], size[1])
		if err != nil {
			t.Fatalf("%dx%d: unexpected error: %v", size[0], size[1], err)
		}
		if !src.Equal(back) {
			t.Errorf("%dx%d: round trip changed the bitmap", size[0], size[1])
		}
	}
}

func TestUnpackRejectsWrongLength(t *testing.T) {
	if _, err := Unpack([]byte{0xFF}, 9, 1); err == nil {
		t.Error("Expected error for short data")
	}
	if _, err := Unpack([]byte{0xFF}, 0, 1); err == nil {
		t.Error("Expected error for zero width")
	}
}

func TestEncodeRawAndHex(t *testing.T) {
	src := patterned(20, 5)

	raw, err := Encode(src, FormatRaw)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if raw.Width != 20 || raw.Height != 5 {
		t.Errorf("Expected 20x5, got %dx%d", raw.Width, raw.Height)
	}

	hx, err := Encode(src, FormatHex)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if hx.Hex != hex.EncodeToString(raw.Data) {
		t.Errorf("Hex text does not match raw bytes")
	}
	if len(hx.Hex) != 2*Stride(20)*5 {
		t.Errorf("Expected %d hex characters, got %d", 2*Stride(20)*5, len(hx.Hex))
	}
	for _, c := range hx.Hex {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Fatalf("Expected lowercase hex, found %q", c)
		}
	}
}

func TestEncodePNG(t *testing.T) {
	src := patterned(17, 9)

	enc, err := Encode(src, FormatPNG)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(enc.Data))
	if err != nil {
		t.Fatalf("Failed to decode PNG: %v", err)
	}
	if img.Bounds().Dx() != 17 || img.Bounds().Dy() != 9 {
		t.Fatalf("Expected 17x9 PNG, got %v", img.Bounds())
	}

	for y := 0; y < 9; y++ {
		for x := 0; x < 17; x++ {
			gray := color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
			want := uint8(0x00)
			if src.At(x, y) == White {
				want = 0xFF
			}
			if gray != want {
				t.Fatalf("Pixel (%d,%d): expected %d, got %d", x, y, want, gray)
			}
		}
	}
}

func TestEncodeBMP(t *testing.T) {
	enc, err := Encode(patterned(10, 10), FormatBMP)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !bytes.HasPrefix(enc.Data, []byte("BM")) {
		t.Errorf("Expected BMP signature, got %q", enc.Data[:2])
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", FormatPNG, false},
		{"png", FormatPNG, false},
		{"RAW", FormatRaw, false},
		{"hex", FormatHex, false},
		{"bmp", FormatBMP, false},
		{"jpeg", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("ParseFormat(%q): expected ErrUnsupportedFormat, got %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFormat(%q): unexpected error %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, expected %q", tt.input, got, tt.want)
		}
	}
}

func TestEncodeUnknownFormat(t *testing.T) {
	if _, err := Encode(patterned(2, 2), Format("tiff")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestFormatContentType(t *testing.T) {
	if FormatPNG.ContentType() != "image/png" {
		t.Errorf("Expected image/png, got %s", FormatPNG.ContentType())
	}
	if FormatRaw.ContentType() != "application/octet-stream" {
		t.Errorf("Expected application/octet-stream, got %s", FormatRaw.ContentType())
	}
	if FormatRaw.Extension() != ".bin" {
		t.Errorf("Expected .bin, got %s", FormatRaw.Extension())
	}
}
