package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/alde/epaper-relay/pkg/raster"
	"github.com/alde/epaper-relay/pkg/source"
)

type fakeFetcher map[int]source.Payload

func (f fakeFetcher) Fetch(ctx context.Context, chapterID int) (source.Payload, error) {
	p, ok := f[chapterID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", source.ErrChapterNotFound, chapterID)
	}
	return p, nil
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()

	black := pngBytes(t, 50, 100, color.Black)
	fetcher := fakeFetcher{
		1: &source.TextPayload{ID: 1, Name: "Prologue", Text: strings.Repeat("The quick brown fox jumps over the lazy dog. ", 200)},
		2: source.NewImagePageList(2, "Volume 1", 2, func(ctx context.Context, page int) ([]byte, error) {
			if page == 1 {
				return []byte("not an image"), nil
			}
			return black, nil
		}),
	}

	p, err := New(fetcher, Options{Width: 400, Height: 300, FontSize: 16, Margin: 10, LineSpacing: 5})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return p
}

func TestNewValidatesOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"zero width", Options{Height: 300, FontSize: 16}},
		{"zero height", Options{Width: 400, FontSize: 16}},
		{"zero font size", Options{Width: 400, Height: 300}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(fakeFetcher{}, tt.opts); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestRenderTextRaw(t *testing.T) {
	p := newTestPipeline(t)

	res, err := p.RenderText(context.Background(), TextRequest{ChapterID: 1, Page: 0, Format: raster.FormatRaw})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(res.Data) != 50*300 {
		t.Errorf("Expected %d bytes, got %d", 50*300, len(res.Data))
	}
	if res.TotalPages < 2 {
		t.Errorf("Expected the long text to span several pages, got %d", res.TotalPages)
	}
	if res.Title != "Prologue" || res.ChapterID != 1 || res.Page != 0 {
		t.Errorf("Unexpected result metadata: %+v", res)
	}
	if res.Stats.OutputBytes != uint64(len(res.Data)) {
		t.Errorf("Expected output bytes %d, got %d", len(res.Data), res.Stats.OutputBytes)
	}

	black := 0
	for _, b := range res.Data {
		if b != 0xFF {
			black++
		}
	}
	if black == 0 {
		t.Error("Expected rendered text to contain black pixels")
	}
}

func TestRenderTextPagesMatchCount(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	summary, err := p.Describe(ctx, 1, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if summary.Kind != "text" {
		t.Errorf("Expected text chapter, got %s", summary.Kind)
	}

	last, err := p.RenderText(ctx, TextRequest{ChapterID: 1, Page: summary.Pages - 1, Format: raster.FormatPNG})
	if err != nil {
		t.Fatalf("Expected last page %d to render: %v", summary.Pages-1, err)
	}
	if last.TotalPages != summary.Pages {
		t.Errorf("Expected %d pages, got %d", summary.Pages, last.TotalPages)
	}

	_, err = p.RenderText(ctx, TextRequest{ChapterID: 1, Page: summary.Pages})
	var pageErr *PageError
	if !errors.As(err, &pageErr) {
		t.Fatalf("Expected PageError, got %v", err)
	}
	if pageErr.ChapterID != 1 || pageErr.Page != summary.Pages || pageErr.Total != summary.Pages {
		t.Errorf("Unexpected page error: %+v", pageErr)
	}
	if !errors.Is(err, raster.ErrPageOutOfRange) {
		t.Error("Expected PageError to match ErrPageOutOfRange")
	}
}

func TestRenderTextFontSize(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	small, err := p.Describe(ctx, 1, 12)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	large, err := p.Describe(ctx, 1, 24)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if large.Pages <= small.Pages {
		t.Errorf("Expected a larger font to need more pages, got %d at 24px and %d at 12px", large.Pages, small.Pages)
	}
}

func TestLayoutSwitches(t *testing.T) {
	long := strings.Repeat("x", 200)
	paragraphs := strings.Repeat("One short paragraph.\n\n", 40)
	fetcher := fakeFetcher{
		1: &source.TextPayload{ID: 1, Text: long},
		2: &source.TextPayload{ID: 2, Text: paragraphs},
	}

	describe := func(opts Options, id int) int {
		t.Helper()
		opts.Width, opts.Height, opts.FontSize, opts.Margin = 400, 300, 16, 10
		p, err := New(fetcher, opts)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		summary, err := p.Describe(context.Background(), id, 0)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		return summary.Pages
	}

	// Ink below the first line shows whether the long word was split.
	inkBelowFirstLine := func(breakWords bool) bool {
		t.Helper()
		p, err := New(fetcher, Options{Width: 400, Height: 300, FontSize: 16, Margin: 10, BreakLongWords: breakWords})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		canvas, _, err := p.TextPage(long, 0, 0)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		for y := 50; y < 300; y++ {
			for x := 0; x < 400; x++ {
				if canvas.GrayAt(x, y).Y < 128 {
					return true
				}
			}
		}
		return false
	}

	if inkBelowFirstLine(false) {
		t.Error("Expected an unbroken word to stay on the first line")
	}
	if !inkBelowFirstLine(true) {
		t.Error("Expected a broken word to continue on later lines")
	}
	if got := describe(Options{BreakLongWords: true}, 1); got != 1 {
		t.Errorf("Expected the split word to fit one page, got %d", got)
	}

	plain := describe(Options{}, 2)
	gapped := describe(Options{ParagraphBreaks: true}, 2)
	if gapped <= plain {
		t.Errorf("Expected paragraph gaps to add pages, got %d with and %d without", gapped, plain)
	}
}

func TestRenderTextOnImageChapter(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.RenderText(context.Background(), TextRequest{ChapterID: 2})
	if !errors.Is(err, source.ErrChapterNotFound) {
		t.Errorf("Expected ErrChapterNotFound, got %v", err)
	}
}

func TestRenderImage(t *testing.T) {
	p := newTestPipeline(t)

	res, err := p.RenderImage(context.Background(), ImageRequest{ChapterID: 2, Page: 0, Format: raster.FormatHex})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if res.TotalPages != 2 || res.Title != "Volume 1" {
		t.Errorf("Unexpected result metadata: %+v", res)
	}
	if len(res.Hex) != 2*50*300 {
		t.Errorf("Expected %d hex chars, got %d", 2*50*300, len(res.Hex))
	}

	bm, err := raster.Unpack(res.Data, 400, 300)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// A 50x100 source scales to 150x300 and is centered with white bars.
	if bm.At(200, 150) != raster.Black {
		t.Error("Expected the scaled page to be black in the center")
	}
	if bm.At(10, 150) != raster.White || bm.At(390, 150) != raster.White {
		t.Error("Expected white pillarbox bars")
	}
}

func TestRenderImageErrors(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.RenderImage(ctx, ImageRequest{ChapterID: 2, Page: 1})
	if !errors.Is(err, raster.ErrDecodeFailure) {
		t.Errorf("Expected ErrDecodeFailure, got %v", err)
	}

	_, err = p.RenderImage(ctx, ImageRequest{ChapterID: 2, Page: 5})
	var pageErr *PageError
	if !errors.As(err, &pageErr) || pageErr.Total != 2 {
		t.Errorf("Expected PageError with total 2, got %v", err)
	}

	_, err = p.RenderImage(ctx, ImageRequest{ChapterID: 1})
	if !errors.Is(err, source.ErrChapterNotFound) {
		t.Errorf("Expected ErrChapterNotFound, got %v", err)
	}

	_, err = p.RenderImage(ctx, ImageRequest{ChapterID: 99})
	if !errors.Is(err, source.ErrChapterNotFound) {
		t.Errorf("Expected ErrChapterNotFound, got %v", err)
	}
}

func TestRenderImageBytesDitherModes(t *testing.T) {
	p := newTestPipeline(t)
	gray := pngBytes(t, 400, 300, color.Gray{Y: 128})

	fs, err := p.RenderImageBytes(gray, ImageRequest{Format: raster.FormatRaw})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	th, err := p.RenderImageBytes(gray, ImageRequest{Format: raster.FormatRaw, Dither: raster.Ditherer{Mode: raster.DitherThreshold}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if bytes.Equal(fs.Data, th.Data) {
		t.Error("Expected dithering and thresholding to differ on mid gray")
	}
	for _, b := range th.Data {
		if b != 0xFF {
			t.Fatalf("Expected gray 128 to threshold to white, got byte %#x", b)
		}
	}
}

func TestDescribeImageChapter(t *testing.T) {
	p := newTestPipeline(t)

	summary, err := p.Describe(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := ChapterSummary{ChapterID: 2, Title: "Volume 1", Kind: "image", Pages: 2}
	if summary != want {
		t.Errorf("Expected %+v, got %+v", want, summary)
	}
}
