package raster

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image/png"
	"strings"

	"golang.org/x/image/bmp"
)

// Format is an output representation of a bitmap.
type Format string

const (
	FormatPNG Format = "png"
	FormatRaw Format = "raw"
	FormatHex Format = "hex"
	FormatBMP Format = "bmp"
)

// ContentType returns the MIME type used when serving the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatBMP:
		return "image/bmp"
	case FormatHex:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the file extension for the format, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatRaw:
		return ".bin"
	case FormatHex:
		return ".hex"
	default:
		return "." + string(f)
	}
}

// ParseFormat resolves a format name. Empty means PNG.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatPNG:
		return FormatPNG, nil
	case FormatRaw:
		return FormatRaw, nil
	case FormatHex:
		return FormatHex, nil
	case FormatBMP:
		return FormatBMP, nil
	}
	return "", fmt.Errorf("%w: '%s' (valid: png, raw, hex, bmp)", ErrUnsupportedFormat, name)
}

// Encoded is a bitmap serialized for transport. Data holds the encoded bytes
// for png, bmp and raw; Hex holds the hex text for hex. For hex, Data also
// carries the packed bytes the text was made from.
type Encoded struct {
	Format Format
	Mode   ColorMode
	Data   []byte
	Hex    string
	Width  int
	Height int
}

// FrameBytes returns the packed size of the frame, whatever its format.
func (e Encoded) FrameBytes() int {
	if e.Mode == ColorGray4 {
		return Stride2(e.Width) * e.Height
	}
	return Stride(e.Width) * e.Height
}

// Stride returns the packed row length in bytes for a bitmap width.
func Stride(width int) int {
	return (width + 7) / 8
}

// Pack serializes a bitmap to the display wire format: one bit per pixel,
// eight horizontal pixels per byte, most significant bit first, 1 for white
// and 0 for black. Each row starts on a byte boundary and unused trailing
// bits of a row are set to 1 (white).
func Pack(b *Bitmap) []byte {
	stride := Stride(b.Width)
	out := make([]byte, stride*b.Height)
	for i := range out {
		out[i] = 0xFF
	}

	for y := 0; y < b.Height; y++ {
		row := out[y*stride : (y+1)*stride]
		for x := 0; x < b.Width; x++ {
			if b.Pix[y*b.Width+x] == Black {
				row[x/8] &^= 0x80 >> (x % 8)
			}
		}
	}

	return out
}

// Unpack decodes bytes produced by Pack back into a bitmap.
func Unpack(data []byte, width, height int) (*Bitmap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid bitmap size %dx%d", width, height)
	}
	stride := Stride(width)
	if len(data) != stride*height {
		return nil, fmt.Errorf("packed data is %d bytes, expected %d for %dx%d", len(data), stride*height, width, height)
	}

	b := &Bitmap{Width: width, Height: height, Pix: make([]uint8, width*height)}
	for y := 0; y < height; y++ {
		row := data[y*stride : (y+1)*stride]
		for x := 0; x < width; x++ {
			b.Pix[y*width+x] = (row[x/8] >> (7 - x%8)) & 1
		}
	}

	return b, nil
}

// Encode serializes a bitmap in the requested format.
func Encode(b *Bitmap, format Format) (Encoded, error) {
	enc := Encoded{Format: format, Mode: ColorMono, Width: b.Width, Height: b.Height}

	switch format {
	case FormatPNG:
		var buf bytes.Buffer
		encoder := &png.Encoder{CompressionLevel: png.BestCompression}
		if err := encoder.Encode(&buf, b.Paletted()); err != nil {
			return Encoded{}, fmt.Errorf("failed to encode PNG: %w", err)
		}
		enc.Data = buf.Bytes()

	case FormatBMP:
		var buf bytes.Buffer
		if err := bmp.Encode(&buf, b.Paletted()); err != nil {
			return Encoded{}, fmt.Errorf("failed to encode BMP: %w", err)
		}
		enc.Data = buf.Bytes()

	case FormatRaw:
		enc.Data = Pack(b)

	case FormatHex:
		enc.Data = Pack(b)
		enc.Hex = hex.EncodeToString(enc.Data)

	default:
		return Encoded{}, fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, format)
	}

	return enc, nil
}
