package raster

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/makeworld-the-better-one/dither/v2"
	"golang.org/x/image/bmp"
)

// ColorMode selects the depth of a frame.
type ColorMode string

const (
	// ColorMono is 1 bit per pixel, the default.
	ColorMono ColorMode = "1bit"
	// ColorGray4 is 2 bits per pixel: black, dark gray, light gray, white.
	ColorGray4 ColorMode = "4level"
)

// ParseColorMode resolves a color mode name. Empty means ColorMono.
func ParseColorMode(name string) (ColorMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "1bit", "1", "mono":
		return ColorMono, nil
	case "4level", "4", "gray4", "2bit":
		return ColorGray4, nil
	}
	return "", fmt.Errorf("unknown color mode '%s' (valid: 1bit, 4level)", name)
}

// BitsPerPixel returns the packed depth of the mode.
func (m ColorMode) BitsPerPixel() int {
	if m == ColorGray4 {
		return 2
	}
	return 1
}

// Gray levels stored in a LevelMap. Higher is lighter, so white is all ones
// when packed.
const (
	LevelBlack uint8 = 0
	LevelDark  uint8 = 1
	LevelLight uint8 = 2
	LevelWhite uint8 = 3
)

// Gray4Palette maps each level to its intensity. Index equals level.
var Gray4Palette = color.Palette{
	color.Gray{Y: 0},
	color.Gray{Y: 85},
	color.Gray{Y: 170},
	color.Gray{Y: 255},
}

// QuantizeLevel maps an intensity to the nearest-below level in steps of 64.
func QuantizeLevel(v uint8) uint8 {
	return v >> 6
}

// LevelMap is a 4-level grayscale canvas, one byte per pixel in row-major
// order, each between LevelBlack and LevelWhite.
type LevelMap struct {
	Width  int
	Height int
	Pix    []uint8
}

// At returns the level at (x, y). Out-of-range coordinates read as white.
func (l *LevelMap) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= l.Width || y >= l.Height {
		return LevelWhite
	}
	return l.Pix[y*l.Width+x]
}

// Paletted returns the map as a four-colour paletted image.
func (l *LevelMap) Paletted() *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, l.Width, l.Height), Gray4Palette)
	copy(img.Pix, l.Pix)
	return img
}

func levelsFromPaletted(img *image.Paletted) *LevelMap {
	bounds := img.Bounds()
	lm := &LevelMap{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pix:    make([]uint8, bounds.Dx()*bounds.Dy()),
	}

	lookup := make([]uint8, len(img.Palette))
	for i, c := range img.Palette {
		lookup[i] = QuantizeLevel(color.GrayModel.Convert(c).(color.Gray).Y)
	}

	for y := 0; y < lm.Height; y++ {
		for x := 0; x < lm.Width; x++ {
			idx := img.ColorIndexAt(bounds.Min.X+x, bounds.Min.Y+y)
			if int(idx) < len(lookup) {
				lm.Pix[y*lm.Width+x] = lookup[idx]
			}
		}
	}
	return lm
}

// Levels reduces a grayscale canvas to four levels. Floyd-Steinberg
// diffuses the quantization error like the 1-bit mode; threshold and none
// quantize each pixel on its own (the threshold value has no meaning with
// four fixed bands). src is never modified.
func (d Ditherer) Levels(src *image.Gray) *LevelMap {
	switch d.Mode {
	case DitherThreshold, DitherNone:
		return quantizeLevels(src)
	case DitherAtkinson:
		return levelsFromPaletted(libraryDither(src, Gray4Palette, func(dd *dither.Ditherer) { dd.Matrix = dither.Atkinson }))
	case DitherBayer:
		return levelsFromPaletted(libraryDither(src, Gray4Palette, func(dd *dither.Ditherer) { dd.Mapper = dither.Bayer(4, 4, 1.0) }))
	default:
		w, h, pix := diffuse(src, func(v int) (uint8, int) {
			level := QuantizeLevel(uint8(v))
			return level, int(level) * 85
		})
		return &LevelMap{Width: w, Height: h, Pix: pix}
	}
}

func quantizeLevels(src *image.Gray) *LevelMap {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	out := &LevelMap{Width: w, Height: h, Pix: make([]uint8, w*h)}
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		for x, v := range row {
			out.Pix[y*w+x] = QuantizeLevel(v)
		}
	}
	return out
}

// Stride2 returns the packed row length in bytes of a 2-bit frame.
func Stride2(width int) int {
	return (width + 3) / 4
}

// PackLevels serializes a level map two bits per pixel, four pixels per
// byte, most significant pair first. Rows start on a byte boundary and
// trailing pairs are white (0b11).
func PackLevels(l *LevelMap) []byte {
	stride := Stride2(l.Width)
	out := make([]byte, stride*l.Height)
	for i := range out {
		out[i] = 0xFF
	}

	for y := 0; y < l.Height; y++ {
		row := out[y*stride : (y+1)*stride]
		for x := 0; x < l.Width; x++ {
			shift := uint(3-x%4) * 2
			row[x/4] = row[x/4]&^(0b11<<shift) | (l.Pix[y*l.Width+x]&0b11)<<shift
		}
	}

	return out
}

// UnpackLevels decodes bytes produced by PackLevels.
func UnpackLevels(data []byte, width, height int) (*LevelMap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid level map size %dx%d", width, height)
	}
	stride := Stride2(width)
	if len(data) != stride*height {
		return nil, fmt.Errorf("packed data is %d bytes, expected %d for %dx%d", len(data), stride*height, width, height)
	}

	l := &LevelMap{Width: width, Height: height, Pix: make([]uint8, width*height)}
	for y := 0; y < height; y++ {
		row := data[y*stride : (y+1)*stride]
		for x := 0; x < width; x++ {
			l.Pix[y*width+x] = (row[x/4] >> (uint(3-x%4) * 2)) & 0b11
		}
	}
	return l, nil
}

// EncodeLevels serializes a level map in the requested format.
func EncodeLevels(l *LevelMap, format Format) (Encoded, error) {
	enc := Encoded{Format: format, Mode: ColorGray4, Width: l.Width, Height: l.Height}

	switch format {
	case FormatPNG:
		var buf bytes.Buffer
		encoder := &png.Encoder{CompressionLevel: png.BestCompression}
		if err := encoder.Encode(&buf, l.Paletted()); err != nil {
			return Encoded{}, fmt.Errorf("failed to encode PNG: %w", err)
		}
		enc.Data = buf.Bytes()

	case FormatBMP:
		var buf bytes.Buffer
		if err := bmp.Encode(&buf, l.Paletted()); err != nil {
			return Encoded{}, fmt.Errorf("failed to encode BMP: %w", err)
		}
		enc.Data = buf.Bytes()

	case FormatRaw:
		enc.Data = PackLevels(l)

	case FormatHex:
		enc.Data = PackLevels(l)
		enc.Hex = hex.EncodeToString(enc.Data)

	default:
		return Encoded{}, fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, format)
	}

	return enc, nil
}
