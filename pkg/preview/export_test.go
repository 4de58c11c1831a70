package preview

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alde/epaper-relay/pkg/relay"
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

func grayPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 30, 60))
	for i := range img.Pix {
		img.Pix[i] = 90
	}
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return buf.Bytes()
}

func newExportPipeline(t *testing.T) *relay.Pipeline {
	t.Helper()
	page := grayPNG(t)
	fetcher := fakeFetcher{
		1: &source.TextPayload{ID: 1, Name: "Chapter One", Text: strings.Repeat("A long walk through the wheat fields. ", 120)},
		2: source.NewImagePageList(2, "Volume 2", 3, func(ctx context.Context, i int) ([]byte, error) {
			return page, nil
		}),
	}
	p, err := relay.New(fetcher, relay.Options{Width: 200, Height: 150, FontSize: 14, Margin: 5})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return p
}

func countImages(t *testing.T, path string) int {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("Expected a zip archive: %v", err)
	}
	defer zr.Close()
	n := 0
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, ".png") {
			n++
		}
	}
	return n
}

func TestExportTextChapter(t *testing.T) {
	p := newExportPipeline(t)
	out := filepath.Join(t.TempDir(), "chapter.epub")

	var progressOut bytes.Buffer
	stats, err := Export(context.Background(), p, ExportOptions{
		ChapterID: 1,
		Workers:   3,
		Output:    out,
		Progress:  &progressOut,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if stats.Kind != "text" || stats.Title != "Chapter One" {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.TotalPages < 2 || stats.Rendered != stats.TotalPages {
		t.Errorf("Expected every page rendered, got %d of %d", stats.Rendered, stats.TotalPages)
	}
	if stats.FrameBytes != uint64(stats.Rendered*25*150) {
		t.Errorf("Expected %d frame bytes, got %d", stats.Rendered*25*150, stats.FrameBytes)
	}
	if stats.OutputBytes <= 0 {
		t.Error("Expected a non-empty output file")
	}
	if got := countImages(t, out); got != stats.Rendered {
		t.Errorf("Expected %d images in the book, got %d", stats.Rendered, got)
	}
	if !strings.Contains(progressOut.String(), "Rendered") {
		t.Errorf("Expected progress summary, got %q", progressOut.String())
	}
}

func TestExportImageRange(t *testing.T) {
	p := newExportPipeline(t)
	out := filepath.Join(t.TempDir(), "volume.epub")
	pages, _ := ParsePageRanges("0,2")

	stats, err := Export(context.Background(), p, ExportOptions{ChapterID: 2, Pages: pages, Output: out})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stats.Kind != "image" || stats.TotalPages != 3 || stats.Rendered != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if got := countImages(t, out); got != 2 {
		t.Errorf("Expected 2 images, got %d", got)
	}
}

func TestExportErrors(t *testing.T) {
	p := newExportPipeline(t)
	out := filepath.Join(t.TempDir(), "x.epub")

	pages, _ := ParsePageRanges("5")
	if _, err := Export(context.Background(), p, ExportOptions{ChapterID: 2, Pages: pages, Output: out}); err == nil {
		t.Error("Expected error for a range past the chapter")
	}

	if _, err := Export(context.Background(), p, ExportOptions{ChapterID: 9, Output: out}); err == nil {
		t.Error("Expected error for an unknown chapter")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Export(ctx, p, ExportOptions{ChapterID: 2, Output: out}); err == nil {
		t.Error("Expected error for a cancelled export")
	}
}
