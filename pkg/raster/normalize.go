package raster

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"

	_ "github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
)

// NormalizeOptions controls how a source image is fitted to the display.
type NormalizeOptions struct {
	// AutoRotate turns portrait sources a quarter turn counter-clockwise
	// when the target canvas is landscape.
	AutoRotate bool
	// Enhance boosts contrast, sharpness and brightness, which keeps scanned
	// pages from turning muddy after dithering (e-ink is unforgiving to grays).
	Enhance bool
}

// DecodeImage decodes a PNG, JPEG, GIF, BMP or WebP payload, honouring EXIF
// orientation.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	return img, nil
}

// NormalizeImage fits src into a width x height grayscale canvas. The source
// is scaled by the largest factor that keeps it inside the canvas, resampled
// with Lanczos and centered on white.
func NormalizeImage(src image.Image, width, height int, opts NormalizeOptions) (*image.Gray, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", width, height)
	}
	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: empty source image", ErrDecodeFailure)
	}

	if opts.AutoRotate && width > height && bounds.Dy() > bounds.Dx() {
		src = imaging.Rotate90(src)
		bounds = src.Bounds()
	}

	fitW, fitH := FitSize(bounds.Dx(), bounds.Dy(), width, height)

	fitted := imaging.Resize(src, fitW, fitH, imaging.Lanczos)

	if opts.Enhance {
		fitted = imaging.AdjustContrast(fitted, 50)
		fitted = imaging.Sharpen(fitted, 1.0)
		fitted = imaging.AdjustBrightness(fitted, 10)
	}

	background := imaging.New(width, height, color.White)
	composed := imaging.OverlayCenter(background, fitted, 1.0)

	return toGray(composed), nil
}

// FitSize returns the largest size with the source aspect ratio that fits
// inside the target box. Neither side drops below one pixel.
func FitSize(srcW, srcH, dstW, dstH int) (int, int) {
	scale := math.Min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))

	w := int(math.Round(float64(srcW) * scale))
	h := int(math.Round(float64(srcH) * scale))

	return clampInt(w, 1, dstW), clampInt(h, 1, dstH)
}

// toGray converts an opaque NRGBA image to 8-bit gray using Rec. 601 luma.
func toGray(src *image.NRGBA) *image.Gray {
	bounds := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := 0; y < bounds.Dy(); y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+bounds.Dx()*4]
		for x := 0; x < bounds.Dx(); x++ {
			r := int(row[x*4])
			g := int(row[x*4+1])
			b := int(row[x*4+2])
			dst.Pix[y*dst.Stride+x] = uint8((299*r + 587*g + 114*b + 500) / 1000)
		}
	}

	return dst
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
