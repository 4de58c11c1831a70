package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// FileKind is the kind of content a local file holds.
type FileKind int

const (
	FileText FileKind = iota
	FileEPUB
	FileImage
)

func (k FileKind) String() string {
	switch k {
	case FileText:
		return "text"
	case FileEPUB:
		return "epub"
	case FileImage:
		return "image"
	}
	return "unknown"
}

// FileSource serves a local file as chapters. A text file is one text
// chapter and an image is one chapter of one page; an EPUB has one chapter
// per spine document.
type FileSource struct {
	path    string
	kind    FileKind
	mime    string
	epub    *EPUBSource
	cleaner *TextCleaner
}

// OpenFile sniffs the file content to pick a kind, falling back to the
// extension when the content is ambiguous.
func OpenFile(path string, cleaner *TextCleaner) (*FileSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("input file not found: %s", path)
	}

	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}

	if cleaner == nil {
		cleaner = NewTextCleaner(CleanOptions{})
	}
	fs := &FileSource{path: path, mime: mime.String(), cleaner: cleaner}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case mime.Is("application/epub+zip") || ext == ".epub":
		fs.kind = FileEPUB
		fs.epub, err = OpenEPUB(path, cleaner)
		if err != nil {
			return nil, err
		}
	case strings.HasPrefix(fs.mime, "image/"):
		fs.kind = FileImage
	case strings.HasPrefix(fs.mime, "text/") || ext == ".txt" || ext == ".md":
		fs.kind = FileText
	default:
		return nil, fmt.Errorf("unsupported input type %s for %s (supported: text, epub, images)", fs.mime, filepath.Base(path))
	}

	return fs, nil
}

func (fs *FileSource) Kind() FileKind { return fs.kind }

// MIME returns the detected content type.
func (fs *FileSource) MIME() string { return fs.mime }

// ChapterCount returns how many chapter ids Fetch accepts.
func (fs *FileSource) ChapterCount() int {
	if fs.kind == FileEPUB {
		return len(fs.epub.Chapters())
	}
	return 1
}

// Fetch implements Fetcher.
func (fs *FileSource) Fetch(ctx context.Context, chapterID int) (Payload, error) {
	if fs.kind == FileEPUB {
		return fs.epub.Fetch(ctx, chapterID)
	}
	if chapterID != 0 {
		return nil, fmt.Errorf("%w: %d (%s files have a single chapter)", ErrChapterNotFound, chapterID, fs.kind)
	}

	name := strings.TrimSuffix(filepath.Base(fs.path), filepath.Ext(fs.path))

	if fs.kind == FileImage {
		fetch := func(ctx context.Context, page int) ([]byte, error) {
			return os.ReadFile(fs.path)
		}
		return NewImagePageList(0, name, 1, fetch), nil
	}

	data, err := os.ReadFile(fs.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	text := fs.cleaner.Clean(string(data))
	return &TextPayload{ID: 0, Name: name, Text: text, Sources: 1}, nil
}

func (fs *FileSource) Close() error {
	if fs.epub != nil {
		return fs.epub.Close()
	}
	return nil
}
