package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/image/font/opentype"

	"github.com/alde/epaper-relay/pkg/raster"
	"github.com/alde/epaper-relay/pkg/source"
)

// Options contains rendering settings shared by every request
type Options struct {
	Width           int
	Height          int
	FontSize        float64
	Font            *opentype.Font // nil uses the embedded Go Regular font
	Margin          int
	LineSpacing     int
	BreakLongWords  bool
	ParagraphBreaks bool // only useful with a cleaner that keeps blank lines
	Logger          *slog.Logger
}

// Pipeline turns chapters into encoded e-paper frames:
// fetch, then rasterize or normalize, then dither, then encode.
// It is safe for concurrent use; each call works on its own canvas and face.
type Pipeline struct {
	options Options
	fetcher source.Fetcher
	logger  *slog.Logger
}

// TextRequest selects one text page of a chapter.
type TextRequest struct {
	ChapterID int
	Page      int
	Format    raster.Format
	FontSize  float64 // zero uses the pipeline default
	Dither    raster.Ditherer
}

// ImageRequest selects one page image of a chapter.
type ImageRequest struct {
	ChapterID int
	Page      int
	Format    raster.Format
	Dither    raster.Ditherer
	Normalize raster.NormalizeOptions
}

// Result is one encoded page plus its position in the chapter.
type Result struct {
	raster.Encoded
	ChapterID  int
	Title      string
	Page       int
	TotalPages int
	Stats      Stats
}

// Stats tracks per-request metrics
type Stats struct {
	SourceBytes uint64 // text characters or downloaded image bytes
	OutputBytes uint64
	Duration    time.Duration
}

// New creates a pipeline reading chapters from fetcher.
func New(fetcher source.Fetcher, opts Options) (*Pipeline, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid display size %dx%d", opts.Width, opts.Height)
	}
	if opts.FontSize <= 0 {
		return nil, fmt.Errorf("invalid font size: %v", opts.FontSize)
	}
	if opts.Font == nil {
		f, err := raster.LoadFont("")
		if err != nil {
			return nil, err
		}
		opts.Font = f
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Pipeline{options: opts, fetcher: fetcher, logger: logger}, nil
}

// Options returns the pipeline settings.
func (p *Pipeline) Options() Options {
	return p.options
}

// Fetch resolves a chapter through the pipeline's source.
func (p *Pipeline) Fetch(ctx context.Context, chapterID int) (source.Payload, error) {
	return p.fetcher.Fetch(ctx, chapterID)
}

// RenderText fetches a text chapter and renders one page of it.
func (p *Pipeline) RenderText(ctx context.Context, req TextRequest) (*Result, error) {
	start := time.Now()

	payload, err := source.FetchText(ctx, p.fetcher, req.ChapterID)
	if err != nil {
		return nil, err
	}

	res, err := p.RenderTextPayload(payload, req)
	if err != nil {
		return nil, err
	}
	res.Stats.Duration = time.Since(start)

	p.logResult("rendered text page", res)
	return res, nil
}

// RenderTextPayload renders one page of an already fetched text chapter.
func (p *Pipeline) RenderTextPayload(payload *source.TextPayload, req TextRequest) (*Result, error) {
	canvas, total, err := p.TextPage(payload.Text, req.Page, req.FontSize)
	if err != nil {
		return nil, annotate(err, payload.ID)
	}

	enc, err := req.Dither.Frame(canvas, req.Format)
	if err != nil {
		return nil, err
	}

	return &Result{
		Encoded:    enc,
		ChapterID:  payload.ID,
		Title:      payload.Title(),
		Page:       req.Page,
		TotalPages: total,
		Stats: Stats{
			SourceBytes: uint64(len(payload.Text)),
			OutputBytes: outputSize(enc),
		},
	}, nil
}

// TextPage lays out text with the pipeline font and returns the grayscale
// canvas of one page together with the page count.
func (p *Pipeline) TextPage(text string, page int, fontSize float64) (*image.Gray, int, error) {
	ts, closeFace, err := p.typesetter(fontSize)
	if err != nil {
		return nil, 0, err
	}
	defer closeFace()

	return ts.RasterizePage(text, page)
}

// TextPageCount returns how many display pages a text chapter needs.
func (p *Pipeline) TextPageCount(text string, fontSize float64) (int, error) {
	ts, closeFace, err := p.typesetter(fontSize)
	if err != nil {
		return 0, err
	}
	defer closeFace()

	return ts.Paginate(text).TotalPages(), nil
}

func (p *Pipeline) typesetter(fontSize float64) (*raster.Typesetter, func(), error) {
	if fontSize <= 0 {
		fontSize = p.options.FontSize
	}

	face, err := raster.NewFace(p.options.Font, fontSize)
	if err != nil {
		return nil, nil, err
	}

	ts, err := raster.NewTypesetter(p.options.Width, p.options.Height, face, raster.TextOptions{
		Margin:          p.options.Margin,
		LineSpacing:     p.options.LineSpacing,
		BreakLongWords:  p.options.BreakLongWords,
		ParagraphBreaks: p.options.ParagraphBreaks,
	})
	if err != nil {
		face.Close()
		return nil, nil, err
	}

	return ts, func() { face.Close() }, nil
}

// RenderImage fetches one page image of a chapter and converts it.
func (p *Pipeline) RenderImage(ctx context.Context, req ImageRequest) (*Result, error) {
	start := time.Now()

	pages, err := source.FetchImages(ctx, p.fetcher, req.ChapterID)
	if err != nil {
		return nil, err
	}

	data, err := pages.Page(ctx, req.Page)
	if err != nil {
		return nil, annotate(err, pages.ID)
	}

	res, err := p.RenderImageBytes(data, req)
	if err != nil {
		return nil, err
	}
	res.ChapterID = pages.ID
	res.Title = pages.Title()
	res.TotalPages = pages.Pages
	res.Stats.Duration = time.Since(start)

	p.logResult("rendered image page", res)
	return res, nil
}

// RenderImageBytes converts an encoded image to a frame.
func (p *Pipeline) RenderImageBytes(data []byte, req ImageRequest) (*Result, error) {
	img, err := raster.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	canvas, err := raster.NormalizeImage(img, p.options.Width, p.options.Height, req.Normalize)
	if err != nil {
		return nil, err
	}

	enc, err := req.Dither.Frame(canvas, req.Format)
	if err != nil {
		return nil, err
	}

	return &Result{
		Encoded:    enc,
		ChapterID:  req.ChapterID,
		Page:       req.Page,
		TotalPages: 1,
		Stats: Stats{
			SourceBytes: uint64(len(data)),
			OutputBytes: outputSize(enc),
		},
	}, nil
}

func (p *Pipeline) logResult(msg string, res *Result) {
	p.logger.Debug(msg,
		"chapter", res.ChapterID,
		"page", res.Page,
		"total_pages", res.TotalPages,
		"format", res.Format,
		"color", res.Mode,
		"source", humanize.Bytes(res.Stats.SourceBytes),
		"output", humanize.Bytes(res.Stats.OutputBytes),
		"duration", res.Stats.Duration.Round(time.Millisecond))
}

// ChapterSummary describes a chapter as the display sees it.
type ChapterSummary struct {
	ChapterID int    `json:"chapter_id"`
	Title     string `json:"title"`
	Kind      string `json:"kind"`
	Pages     int    `json:"pages"`
}

// Describe fetches a chapter and counts its display pages. Text chapters are
// paginated with the requested font size; image chapters report their page
// images.
func (p *Pipeline) Describe(ctx context.Context, chapterID int, fontSize float64) (ChapterSummary, error) {
	payload, err := p.fetcher.Fetch(ctx, chapterID)
	if err != nil {
		return ChapterSummary{}, err
	}

	summary := ChapterSummary{ChapterID: payload.ChapterID(), Title: payload.Title()}
	switch pl := payload.(type) {
	case *source.TextPayload:
		pages, err := p.TextPageCount(pl.Text, fontSize)
		if err != nil {
			return ChapterSummary{}, err
		}
		summary.Kind = "text"
		summary.Pages = pages
	case *source.ImagePageList:
		summary.Kind = "image"
		summary.Pages = pl.Pages
	}
	return summary, nil
}

// PageError reports an out-of-range page together with its chapter.
type PageError struct {
	ChapterID int
	*raster.PageRangeError
}

func (e *PageError) Error() string {
	return fmt.Sprintf("chapter %d: %s", e.ChapterID, e.PageRangeError.Error())
}

func (e *PageError) Unwrap() error {
	return e.PageRangeError
}

func annotate(err error, chapterID int) error {
	var rangeErr *raster.PageRangeError
	if errors.As(err, &rangeErr) {
		return &PageError{ChapterID: chapterID, PageRangeError: rangeErr}
	}
	return err
}

func outputSize(enc raster.Encoded) uint64 {
	if enc.Format == raster.FormatHex {
		return uint64(len(enc.Hex))
	}
	return uint64(len(enc.Data))
}
