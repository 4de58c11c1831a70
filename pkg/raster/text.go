package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var defaultFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(goregular.TTF)
})

// LoadFont parses a TrueType or OpenType font file. An empty path returns the
// embedded Go Regular font. The returned font is safe for concurrent use;
// faces created from it are not.
func LoadFont(path string) (*opentype.Font, error) {
	if path == "" {
		f, err := defaultFont()
		if err != nil {
			return nil, fmt.Errorf("failed to parse embedded font: %w", err)
		}
		return f, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %s: %w", path, err)
	}
	return f, nil
}

// NewFace creates a face at the given size in pixels (72 DPI, so points and
// pixels coincide).
func NewFace(f *opentype.Font, size float64) (font.Face, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid font size: %v", size)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}

// TextOptions controls text page layout.
type TextOptions struct {
	Margin          int // blank border on every side, in pixels
	LineSpacing     int // extra pixels between lines
	BreakLongWords  bool
	ParagraphBreaks bool // blank input lines become empty lines
}

// Typesetter lays out and rasterizes text pages for one canvas size and face.
// It is not safe for concurrent use because font faces keep internal buffers.
type Typesetter struct {
	width   int
	height  int
	face    font.Face
	metrics Metrics
	opts    TextOptions
}

// NewTypesetter creates a typesetter for a width x height canvas.
func NewTypesetter(width, height int, face font.Face, opts TextOptions) (*Typesetter, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", width, height)
	}
	if opts.Margin < 0 || 2*opts.Margin >= width || 2*opts.Margin >= height {
		return nil, fmt.Errorf("margin %d leaves no room on a %dx%d canvas", opts.Margin, width, height)
	}
	if face == nil {
		return nil, fmt.Errorf("typesetter needs a font face")
	}

	return &Typesetter{
		width:   width,
		height:  height,
		face:    face,
		metrics: FaceMetrics{Face: face, Spacing: opts.LineSpacing},
		opts:    opts,
	}, nil
}

// Metrics returns the metrics used for line breaking.
func (ts *Typesetter) Metrics() Metrics {
	return ts.metrics
}

// Paginate wraps text to the usable width and groups it into pages.
func (ts *Typesetter) Paginate(text string) Pagination {
	usableWidth := ts.width - 2*ts.opts.Margin
	usableHeight := ts.height - 2*ts.opts.Margin

	lines := Wrap(text, usableWidth, ts.metrics, WrapOptions{
		BreakLongWords: ts.opts.BreakLongWords,
		KeepBlankLines: ts.opts.ParagraphBreaks,
	})
	return Paginate(lines, LinesPerPage(usableHeight, ts.metrics.LineHeight()))
}

// RasterizePage renders the 0-based page of text onto a fresh white canvas
// and returns it with the total page count. The index is validated before
// anything is drawn.
func (ts *Typesetter) RasterizePage(text string, index int) (*image.Gray, int, error) {
	pages := ts.Paginate(text)
	total := pages.TotalPages()

	lines, err := pages.Page(index)
	if err != nil {
		return nil, total, err
	}

	return ts.Render(lines), total, nil
}

// Render draws lines top to bottom, left aligned, black on white.
func (ts *Typesetter) Render(lines []Line) *image.Gray {
	canvas := image.NewGray(image.Rect(0, 0, ts.width, ts.height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Gray{Y: 0xFF}), image.Point{}, draw.Src)

	lineHeight := ts.metrics.LineHeight()
	ascent := ts.face.Metrics().Ascent.Ceil()

	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Gray{Y: 0x00}),
		Face: ts.face,
	}

	for i, line := range lines {
		baseline := ts.opts.Margin + i*lineHeight + ascent
		for j, word := range line.Words {
			d.Dot = fixed.P(ts.opts.Margin+line.Offsets[j], baseline)
			d.DrawString(word)
		}
	}

	return canvas
}

// RasterizeTextPage renders one page of text with the embedded font at
// fontSize pixels, no margin and no extra line spacing.
func RasterizeTextPage(text string, index, width, height int, fontSize float64) (*image.Gray, int, error) {
	f, err := LoadFont("")
	if err != nil {
		return nil, 0, err
	}

	face, err := NewFace(f, fontSize)
	if err != nil {
		return nil, 0, err
	}
	defer face.Close()

	ts, err := NewTypesetter(width, height, face, TextOptions{})
	if err != nil {
		return nil, 0, err
	}

	return ts.RasterizePage(text, index)
}
