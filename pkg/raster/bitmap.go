package raster

import (
	"fmt"
	"image"
	"image/color"
)

// Pixel values stored in a Bitmap. The embedded client expects white to be
// the set bit, so the in-memory convention mirrors the packed wire format.
const (
	Black uint8 = 0
	White uint8 = 1
)

// MonoPalette is the two-entry palette used when a Bitmap is exposed as an
// image. Index 0 is black and index 1 is white, matching the pixel values.
var MonoPalette = color.Palette{
	color.Gray{Y: 0x00},
	color.Gray{Y: 0xFF},
}

// Bitmap is a 1-bit monochrome canvas. Pix holds one byte per pixel in
// row-major order, each either Black or White.
type Bitmap struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewBitmap allocates a bitmap filled with white
func NewBitmap(width, height int) (*Bitmap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid bitmap size %dx%d", width, height)
	}

	pix := make([]uint8, width*height)
	for i := range pix {
		pix[i] = White
	}

	return &Bitmap{Width: width, Height: height, Pix: pix}, nil
}

// At returns the pixel value at (x, y). Out-of-range coordinates read as white.
func (b *Bitmap) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return White
	}
	return b.Pix[y*b.Width+x]
}

// Set stores a pixel; any non-zero value is treated as white.
func (b *Bitmap) Set(x, y int, v uint8) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	if v != Black {
		v = White
	}
	b.Pix[y*b.Width+x] = v
}

// Equal reports whether two bitmaps have the same size and pixels.
func (b *Bitmap) Equal(other *Bitmap) bool {
	if other == nil || b.Width != other.Width || b.Height != other.Height {
		return false
	}
	for i := range b.Pix {
		if b.Pix[i] != other.Pix[i] {
			return false
		}
	}
	return true
}

// Paletted returns a two-colour paletted image of the bitmap, suitable for
// the PNG and BMP encoders.
func (b *Bitmap) Paletted() *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, b.Width, b.Height), MonoPalette)
	copy(img.Pix, b.Pix)
	return img
}

// BitmapFromPaletted converts a paletted image into a Bitmap by classifying
// each palette entry as black or white by luminance.
func BitmapFromPaletted(img *image.Paletted) *Bitmap {
	bounds := img.Bounds()
	bm := &Bitmap{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pix:    make([]uint8, bounds.Dx()*bounds.Dy()),
	}

	lookup := make([]uint8, len(img.Palette))
	for i, c := range img.Palette {
		if color.GrayModel.Convert(c).(color.Gray).Y > DefaultThreshold {
			lookup[i] = White
		}
	}

	for y := 0; y < bm.Height; y++ {
		for x := 0; x < bm.Width; x++ {
			idx := img.ColorIndexAt(bounds.Min.X+x, bounds.Min.Y+y)
			if int(idx) < len(lookup) {
				bm.Pix[y*bm.Width+x] = lookup[idx]
			}
		}
	}

	return bm
}

func (b *Bitmap) String() string {
	return fmt.Sprintf("Bitmap(%d,%d)", b.Width, b.Height)
}
