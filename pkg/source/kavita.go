package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alde/epaper-relay/pkg/kavita"
)

// KavitaAPI is the subset of the Kavita client used to fetch chapters.
type KavitaAPI interface {
	ChapterInfo(ctx context.Context, chapterID int) (kavita.ChapterInfo, error)
	BookPage(ctx context.Context, chapterID, page int) (string, error)
	PageImage(ctx context.Context, chapterID, page int) ([]byte, error)
}

// KavitaSource fetches chapters from a Kavita server. EPUB chapters are
// assembled into one text from their HTML book pages; every other format is
// exposed as a list of page images.
type KavitaSource struct {
	api     KavitaAPI
	cleaner *TextCleaner
	logger  *slog.Logger
}

func NewKavitaSource(api KavitaAPI, cleaner *TextCleaner, logger *slog.Logger) *KavitaSource {
	if cleaner == nil {
		cleaner = NewTextCleaner(CleanOptions{})
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &KavitaSource{api: api, cleaner: cleaner, logger: logger}
}

// Fetch implements Fetcher.
func (s *KavitaSource) Fetch(ctx context.Context, chapterID int) (Payload, error) {
	info, err := s.api.ChapterInfo(ctx, chapterID)
	if err != nil {
		return nil, notFound(chapterID, err)
	}

	title := chapterTitle(info)

	if !info.SeriesFormat.IsText() {
		fetch := func(ctx context.Context, page int) ([]byte, error) {
			data, err := s.api.PageImage(ctx, chapterID, page)
			if err != nil {
				return nil, notFound(chapterID, err)
			}
			return data, nil
		}
		return NewImagePageList(chapterID, title, info.Pages, fetch), nil
	}

	parts := make([]string, 0, info.Pages)
	for page := 0; page < info.Pages; page++ {
		doc, err := s.api.BookPage(ctx, chapterID, page)
		if err != nil {
			return nil, notFound(chapterID, err)
		}
		text, err := ExtractTextString(doc)
		if err != nil {
			return nil, fmt.Errorf("chapter %d page %d: %w", chapterID, page, err)
		}
		parts = append(parts, text)
	}

	text := s.cleaner.Clean(strings.Join(parts, "\n\n"))
	s.logger.Debug("assembled chapter text",
		"chapter", chapterID,
		"book_pages", info.Pages,
		"chars", len(text))

	return &TextPayload{ID: chapterID, Name: title, Text: text, Sources: info.Pages}, nil
}

func notFound(chapterID int, err error) error {
	if errors.Is(err, kavita.ErrNotFound) {
		return fmt.Errorf("%w: %d: %w", ErrChapterNotFound, chapterID, err)
	}
	return err
}

func chapterTitle(info kavita.ChapterInfo) string {
	switch {
	case info.ChapterTitle != "":
		return info.ChapterTitle
	case info.Title != "":
		return info.Title
	case info.SeriesName != "" && info.ChapterNumber != "":
		return fmt.Sprintf("%s - %s", info.SeriesName, info.ChapterNumber)
	default:
		return info.SeriesName
	}
}
