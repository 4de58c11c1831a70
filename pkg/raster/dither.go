package raster

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/makeworld-the-better-one/dither/v2"
)

// DefaultThreshold is the midpoint intensity. Values above it become white.
const DefaultThreshold uint8 = 127

// DitherMode selects how a grayscale canvas is reduced to 1 bit.
type DitherMode string

const (
	DitherFloydSteinberg DitherMode = "floyd-steinberg"
	DitherThreshold      DitherMode = "threshold"
	DitherNone           DitherMode = "none"
	DitherAtkinson       DitherMode = "atkinson"
	DitherBayer          DitherMode = "bayer"
)

var ditherAliases = map[string]DitherMode{
	"":                DitherFloydSteinberg,
	"floyd-steinberg": DitherFloydSteinberg,
	"floyd_steinberg": DitherFloydSteinberg,
	"floyd":           DitherFloydSteinberg,
	"fs":              DitherFloydSteinberg,
	"threshold":       DitherThreshold,
	"none":            DitherNone,
	"atkinson":        DitherAtkinson,
	"bayer":           DitherBayer,
	"ordered":         DitherBayer,
}

// ParseDitherMode resolves a dither mode name, case-insensitively.
func ParseDitherMode(name string) (DitherMode, error) {
	mode, ok := ditherAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unknown dither mode '%s' (valid: floyd-steinberg, threshold, none, atkinson, bayer)", name)
	}
	return mode, nil
}

// Ditherer converts grayscale canvases to bitmaps. The zero value performs
// Floyd-Steinberg dithering at the default threshold.
type Ditherer struct {
	Mode DitherMode
	// Threshold applies to the floyd-steinberg and threshold modes. Zero
	// means DefaultThreshold.
	Threshold uint8
	// Color selects 1-bit or 4-level output for Frame. Empty means 1-bit.
	Color ColorMode
}

// Frame reduces a canvas to the ditherer's color mode and encodes it.
func (d Ditherer) Frame(src *image.Gray, format Format) (Encoded, error) {
	if d.Color == ColorGray4 {
		return EncodeLevels(d.Levels(src), format)
	}
	return Encode(d.Dither(src), format)
}

// Dither converts src to a bitmap of the same size. src is never modified.
func (d Ditherer) Dither(src *image.Gray) *Bitmap {
	threshold := d.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	switch d.Mode {
	case DitherThreshold:
		return thresholdBitmap(src, threshold)
	case DitherNone:
		return thresholdBitmap(src, DefaultThreshold)
	case DitherAtkinson:
		return BitmapFromPaletted(libraryDither(src, MonoPalette, func(dd *dither.Ditherer) { dd.Matrix = dither.Atkinson }))
	case DitherBayer:
		return BitmapFromPaletted(libraryDither(src, MonoPalette, func(dd *dither.Ditherer) { dd.Mapper = dither.Bayer(4, 4, 1.0) }))
	default:
		return floydSteinberg(src, threshold)
	}
}

// Dither applies Floyd-Steinberg error diffusion at DefaultThreshold.
func Dither(src *image.Gray) *Bitmap {
	return floydSteinberg(src, DefaultThreshold)
}

// floydSteinberg diffuses error to a black or white choice at threshold.
func floydSteinberg(src *image.Gray, threshold uint8) *Bitmap {
	w, h, pix := diffuse(src, func(v int) (uint8, int) {
		if v > int(threshold) {
			return White, 255
		}
		return Black, 0
	})
	return &Bitmap{Width: w, Height: h, Pix: pix}
}

// diffuse walks the canvas row-major, left to right. quantize picks the
// output value and its intensity for each pixel; the difference is pushed
// 7/16 right, 3/16 down-left, 5/16 down and 1/16 down-right. Neighbours
// outside the canvas are skipped and every neighbour is clamped to
// [0, 255] after receiving its share.
func diffuse(src *image.Gray, quantize func(v int) (uint8, int)) (int, int, []uint8) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	work := make([]int, w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		for x, v := range row {
			work[y*w+x] = int(v)
		}
	}

	out := make([]uint8, w*h)

	spread := func(x, y, amount int) {
		if x < 0 || x >= w || y >= h {
			return
		}
		i := y*w + x
		work[i] = clampInt(work[i]+amount, 0, 255)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			old := work[y*w+x]
			value, chosen := quantize(old)
			out[y*w+x] = value

			qerr := old - chosen
			if qerr == 0 {
				continue
			}
			spread(x+1, y, qerr*7/16)
			spread(x-1, y+1, qerr*3/16)
			spread(x, y+1, qerr*5/16)
			spread(x+1, y+1, qerr*1/16)
		}
	}

	return w, h, out
}

func thresholdBitmap(src *image.Gray, threshold uint8) *Bitmap {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	out := &Bitmap{Width: w, Height: h, Pix: make([]uint8, w*h)}
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		for x, v := range row {
			if v > threshold {
				out.Pix[y*w+x] = White
			}
		}
	}
	return out
}

// libraryDither runs one of the dither package's algorithms against palette.
func libraryDither(src *image.Gray, palette color.Palette, configure func(*dither.Ditherer)) *image.Paletted {
	d := dither.NewDitherer(palette)
	configure(d)

	clone := image.NewGray(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	for y := 0; y < clone.Rect.Dy(); y++ {
		copy(clone.Pix[y*clone.Stride:], src.Pix[y*src.Stride:y*src.Stride+clone.Rect.Dx()])
	}

	return d.DitherPaletted(clone)
}
