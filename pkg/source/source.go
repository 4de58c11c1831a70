package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/alde/epaper-relay/pkg/raster"
)

// ErrChapterNotFound is returned when a chapter does not exist or has no
// content of the requested kind.
var ErrChapterNotFound = errors.New("chapter not found")

// Payload is the content of one chapter: either *TextPayload or
// *ImagePageList.
type Payload interface {
	ChapterID() int
	Title() string
	isPayload()
}

// TextPayload is a chapter delivered as plain text.
type TextPayload struct {
	ID      int
	Name    string
	Text    string
	Sources int // number of upstream pages the text was assembled from
}

func (p *TextPayload) ChapterID() int { return p.ID }
func (p *TextPayload) Title() string  { return p.Name }
func (*TextPayload) isPayload()       {}

// PageFunc downloads one encoded page image.
type PageFunc func(ctx context.Context, page int) ([]byte, error)

// ImagePageList is a chapter delivered as a sequence of page images.
// Pages are fetched on demand.
type ImagePageList struct {
	ID    int
	Name  string
	Pages int
	fetch PageFunc
}

// NewImagePageList creates a page list backed by fetch.
func NewImagePageList(id int, name string, pages int, fetch PageFunc) *ImagePageList {
	return &ImagePageList{ID: id, Name: name, Pages: pages, fetch: fetch}
}

func (p *ImagePageList) ChapterID() int { return p.ID }
func (p *ImagePageList) Title() string  { return p.Name }
func (*ImagePageList) isPayload()       {}

// Page returns the encoded bytes of the 0-based page. The index is checked
// against the page count before anything is downloaded.
func (p *ImagePageList) Page(ctx context.Context, index int) ([]byte, error) {
	if index < 0 || index >= p.Pages {
		return nil, &raster.PageRangeError{Page: index, Total: p.Pages}
	}
	data, err := p.fetch(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %d of chapter %d: %w", index, p.ID, err)
	}
	return data, nil
}

// Fetcher resolves chapter ids to payloads.
type Fetcher interface {
	Fetch(ctx context.Context, chapterID int) (Payload, error)
}

// FetchText fetches a chapter and requires it to be text.
func FetchText(ctx context.Context, f Fetcher, chapterID int) (*TextPayload, error) {
	payload, err := f.Fetch(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	text, ok := payload.(*TextPayload)
	if !ok {
		return nil, fmt.Errorf("%w: chapter %d has no text content, it might be image based (try /chapter/image)", ErrChapterNotFound, chapterID)
	}
	return text, nil
}

// FetchImages fetches a chapter and requires it to be image based.
func FetchImages(ctx context.Context, f Fetcher, chapterID int) (*ImagePageList, error) {
	payload, err := f.Fetch(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	pages, ok := payload.(*ImagePageList)
	if !ok {
		return nil, fmt.Errorf("%w: chapter %d is a text chapter (try /chapter/text)", ErrChapterNotFound, chapterID)
	}
	return pages, nil
}
