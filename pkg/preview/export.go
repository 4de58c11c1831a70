package preview

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/alde/epaper-relay/internal/worker"
	"github.com/alde/epaper-relay/pkg/progress"
	"github.com/alde/epaper-relay/pkg/raster"
	"github.com/alde/epaper-relay/pkg/relay"
	"github.com/alde/epaper-relay/pkg/source"
)

// ExportOptions selects what to render into a preview book.
type ExportOptions struct {
	ChapterID int
	Pages     *PageRangeSet // nil selects every page
	FontSize  float64
	Dither    raster.Ditherer
	Normalize raster.NormalizeOptions
	Workers   int
	Book      BookOptions // an empty title uses the chapter title
	Output    string
	Progress  io.Writer // nil disables progress output
	Verbose   bool
}

// ExportStats summarizes an export.
type ExportStats struct {
	Title       string
	Kind        string
	TotalPages  int
	Rendered    int
	FrameBytes  uint64
	OutputBytes int64
	Duration    time.Duration
}

type renderFunc func(ctx context.Context) (*relay.Result, error)

// pageJob renders one display page into its own slot.
type pageJob struct {
	index  int
	render renderFunc
	slot   **relay.Result
}

func (j pageJob) ID() string {
	return fmt.Sprintf("page %d", j.index)
}

func (j pageJob) Process(ctx context.Context) error {
	res, err := j.render(ctx)
	if err != nil {
		return err
	}
	*j.slot = res
	return nil
}

// Export renders the selected pages of a chapter on a worker pool and writes
// them, in page order, to a preview EPUB.
func Export(ctx context.Context, p *relay.Pipeline, opts ExportOptions) (ExportStats, error) {
	start := time.Now()
	stats := ExportStats{}

	payload, err := p.Fetch(ctx, opts.ChapterID)
	if err != nil {
		return stats, err
	}
	stats.Title = payload.Title()

	var render func(page int) renderFunc
	switch pl := payload.(type) {
	case *source.TextPayload:
		stats.Kind = "text"
		stats.TotalPages, err = p.TextPageCount(pl.Text, opts.FontSize)
		if err != nil {
			return stats, err
		}
		render = func(page int) renderFunc {
			return func(ctx context.Context) (*relay.Result, error) {
				return p.RenderTextPayload(pl, relay.TextRequest{
					ChapterID: pl.ID,
					Page:      page,
					Format:    raster.FormatPNG,
					FontSize:  opts.FontSize,
					Dither:    opts.Dither,
				})
			}
		}
	case *source.ImagePageList:
		stats.Kind = "image"
		stats.TotalPages = pl.Pages
		render = func(page int) renderFunc {
			return func(ctx context.Context) (*relay.Result, error) {
				data, err := pl.Page(ctx, page)
				if err != nil {
					return nil, err
				}
				return p.RenderImageBytes(data, relay.ImageRequest{
					ChapterID: pl.ID,
					Page:      page,
					Format:    raster.FormatPNG,
					Dither:    opts.Dither,
					Normalize: opts.Normalize,
				})
			}
		}
	default:
		return stats, fmt.Errorf("unsupported payload %T", payload)
	}

	selection := opts.Pages
	if selection == nil {
		selection = &PageRangeSet{}
	}
	if err := selection.Validate(stats.TotalPages); err != nil {
		return stats, fmt.Errorf("invalid page range: %w", err)
	}

	pages := selection.Pages(stats.TotalPages)
	if len(pages) == 0 {
		return stats, fmt.Errorf("chapter %d has no pages to export", opts.ChapterID)
	}

	slots := make([]*relay.Result, len(pages))
	jobs := make([]worker.Job, len(pages))
	for i, page := range pages {
		jobs[i] = pageJob{index: page, render: render(page), slot: &slots[i]}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var tracker *progress.Tracker
	if opts.Progress != nil {
		tracker = progress.NewTracker(opts.Progress, "Rendering", workers, len(jobs), opts.Verbose)
	}

	for _, res := range worker.Run(ctx, workers, jobs, tracker) {
		if res.Error != nil {
			return stats, fmt.Errorf("failed to render %s: %w", res.JobID, res.Error)
		}
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	bookOpts := opts.Book
	if bookOpts.Title == "" {
		bookOpts.Title = stats.Title
	}
	book, err := NewBook(bookOpts)
	if err != nil {
		return stats, err
	}
	defer book.Close()

	for i, res := range slots {
		if res == nil {
			return stats, fmt.Errorf("page %d was not rendered", pages[i])
		}
		if err := book.AddPage(fmt.Sprintf("Page %d of %d", pages[i]+1, stats.TotalPages), res.Data); err != nil {
			return stats, err
		}
		stats.Rendered++
		stats.FrameBytes += uint64(res.FrameBytes())
	}

	if err := book.Write(opts.Output); err != nil {
		return stats, err
	}

	if info, err := os.Stat(opts.Output); err == nil {
		stats.OutputBytes = info.Size()
	}
	stats.Duration = time.Since(start)

	return stats, nil
}
