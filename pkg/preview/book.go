package preview

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"

	"github.com/bmaupin/go-epub"
	"github.com/disintegration/imaging"
)

// BookOptions defines preview EPUB settings
type BookOptions struct {
	Title       string
	Author      string
	Description string
	// Scale enlarges every page by an integer factor so that small panels
	// stay legible on a desktop reader. Values below 2 keep the panel size.
	Scale int
}

// Book collects rendered display pages into an EPUB, one page per section,
// so a chapter can be proofread without the hardware.
type Book struct {
	epub    *epub.Epub
	options BookOptions
	tempDir string
	pages   int
}

// NewBook creates an empty preview book. Close removes its scratch files.
func NewBook(opts BookOptions) (*Book, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("EPUB title is required")
	}

	tempDir, err := os.MkdirTemp("", "epaper-preview-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	e := epub.NewEpub(opts.Title)
	e.SetLang("en")
	if opts.Author != "" {
		e.SetAuthor(opts.Author)
	}
	if opts.Description != "" {
		e.SetDescription(opts.Description)
	}
	e.SetPpd("ltr")

	return &Book{epub: e, options: opts, tempDir: tempDir}, nil
}

// AddPage appends one PNG encoded display page.
func (b *Book) AddPage(title string, png []byte) error {
	img, err := imaging.Decode(bytes.NewReader(png))
	if err != nil {
		return fmt.Errorf("failed to decode page '%s': %w", title, err)
	}

	if b.options.Scale > 1 {
		bounds := img.Bounds()
		img = imaging.Resize(img, bounds.Dx()*b.options.Scale, bounds.Dy()*b.options.Scale, imaging.NearestNeighbor)
	}

	name := fmt.Sprintf("page-%04d.png", b.pages)
	path := filepath.Join(b.tempDir, name)
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save page '%s': %w", title, err)
	}

	internal, err := b.epub.AddImage(path, name)
	if err != nil {
		return fmt.Errorf("failed to add image for page '%s': %w", title, err)
	}

	body := fmt.Sprintf(`<div style="text-align:center"><img src="%s" alt="%s"/></div>`, internal, html.EscapeString(title))
	if _, err := b.epub.AddSection(body, title, "", ""); err != nil {
		return fmt.Errorf("failed to add page '%s': %w", title, err)
	}

	b.pages++
	return nil
}

// PageCount returns how many pages have been added.
func (b *Book) PageCount() int {
	return b.pages
}

// Write saves the EPUB to the specified path
func (b *Book) Write(outputPath string) error {
	if b.pages == 0 {
		return fmt.Errorf("preview has no pages")
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if err := b.epub.Write(outputPath); err != nil {
		return fmt.Errorf("failed to write EPUB file: %w", err)
	}

	return nil
}

// Close removes the scratch directory holding page images.
func (b *Book) Close() error {
	return os.RemoveAll(b.tempDir)
}
