package source

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// EPUBMetadata holds the Dublin Core fields the relay shows for a book.
type EPUBMetadata struct {
	Title    string
	Author   string
	Language string
}

// EPUBChapter is one readable item of the spine.
type EPUBChapter struct {
	Index int
	ID    string
	Title string
	Path  string // zip path of the XHTML document
}

// EPUBSource serves chapters of a local EPUB file. Chapter ids are 0-based
// spine positions (cover and nav pages included, since that is what the
// spine says).
type EPUBSource struct {
	filePath  string
	zipReader *zip.ReadCloser
	metadata  EPUBMetadata
	chapters  []EPUBChapter
	cleaner   *TextCleaner
}

// OpenEPUB opens an EPUB and reads its package document.
func OpenEPUB(filePath string, cleaner *TextCleaner) (*EPUBSource, error) {
	zipReader, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB file: %w", err)
	}

	if cleaner == nil {
		cleaner = NewTextCleaner(CleanOptions{})
	}
	s := &EPUBSource{filePath: filePath, zipReader: zipReader, cleaner: cleaner}

	opfPath, err := s.findOPFFile()
	if err != nil {
		zipReader.Close()
		return nil, fmt.Errorf("failed to find OPF file: %w", err)
	}

	opfContent, err := s.readFileFromZip(opfPath)
	if err != nil {
		zipReader.Close()
		return nil, fmt.Errorf("failed to read OPF file: %w", err)
	}

	if err := s.parsePackage(opfContent, path.Dir(opfPath)); err != nil {
		zipReader.Close()
		return nil, fmt.Errorf("failed to parse OPF file: %w", err)
	}

	return s, nil
}

// Close closes the underlying archive.
func (s *EPUBSource) Close() error {
	if s.zipReader != nil {
		return s.zipReader.Close()
	}
	return nil
}

func (s *EPUBSource) Metadata() EPUBMetadata {
	return s.metadata
}

func (s *EPUBSource) Chapters() []EPUBChapter {
	return s.chapters
}

// Fetch implements Fetcher. EPUB chapters are always text.
func (s *EPUBSource) Fetch(ctx context.Context, chapterID int) (Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if chapterID < 0 || chapterID >= len(s.chapters) {
		return nil, fmt.Errorf("%w: %d (book has %d chapters)", ErrChapterNotFound, chapterID, len(s.chapters))
	}

	ch := s.chapters[chapterID]
	content, err := s.readFileFromZip(ch.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chapter %d: %w", chapterID, err)
	}

	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse chapter %d: %w", chapterID, err)
	}

	title := ch.Title
	if found := documentTitle(doc); found != "" {
		title = found
	}

	var b strings.Builder
	walkText(doc, &b)

	return &TextPayload{
		ID:      chapterID,
		Name:    title,
		Text:    s.cleaner.Clean(b.String()),
		Sources: 1,
	}, nil
}

// findOPFFile locates the package document through META-INF/container.xml.
func (s *EPUBSource) findOPFFile() (string, error) {
	containerContent, err := s.readFileFromZip("META-INF/container.xml")
	if err != nil {
		return "", fmt.Errorf("failed to read container.xml: %w", err)
	}

	type Container struct {
		Rootfiles struct {
			Rootfile []struct {
				FullPath string `xml:"full-path,attr"`
			} `xml:"rootfile"`
		} `xml:"rootfiles"`
	}

	var container Container
	if err := xml.Unmarshal(containerContent, &container); err != nil {
		return "", fmt.Errorf("failed to parse container.xml: %w", err)
	}

	if len(container.Rootfiles.Rootfile) == 0 {
		return "", fmt.Errorf("no rootfile found in container.xml")
	}

	return container.Rootfiles.Rootfile[0].FullPath, nil
}

func (s *EPUBSource) readFileFromZip(name string) ([]byte, error) {
	for _, file := range s.zipReader.File {
		if file.Name == name {
			rc, err := file.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()

			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("file not found: %s", name)
}

// parsePackage reads metadata and the reading order. Spine items that are
// not (X)HTML documents are skipped.
func (s *EPUBSource) parsePackage(opfContent []byte, baseDir string) error {
	type OPF struct {
		Metadata struct {
			Title    []string `xml:"title"`
			Creator  []string `xml:"creator"`
			Language []string `xml:"language"`
		} `xml:"metadata"`
		Manifest struct {
			Item []struct {
				ID        string `xml:"id,attr"`
				Href      string `xml:"href,attr"`
				MediaType string `xml:"media-type,attr"`
			} `xml:"item"`
		} `xml:"manifest"`
		Spine struct {
			ItemRef []struct {
				IDRef string `xml:"idref,attr"`
			} `xml:"itemref"`
		} `xml:"spine"`
	}

	var opf OPF
	if err := xml.Unmarshal(opfContent, &opf); err != nil {
		return fmt.Errorf("failed to parse OPF XML: %w", err)
	}

	if len(opf.Metadata.Title) > 0 {
		s.metadata.Title = strings.TrimSpace(opf.Metadata.Title[0])
	}
	if len(opf.Metadata.Creator) > 0 {
		s.metadata.Author = strings.TrimSpace(opf.Metadata.Creator[0])
	}
	if len(opf.Metadata.Language) > 0 {
		s.metadata.Language = strings.TrimSpace(opf.Metadata.Language[0])
	}

	type item struct{ href, mediaType string }
	items := make(map[string]item)
	for _, it := range opf.Manifest.Item {
		items[it.ID] = item{href: it.Href, mediaType: it.MediaType}
	}

	for _, ref := range opf.Spine.ItemRef {
		it, ok := items[ref.IDRef]
		if !ok || !isDocument(it.mediaType) {
			continue
		}
		href, err := url.PathUnescape(it.href)
		if err != nil {
			href = it.href
		}
		if i := strings.IndexByte(href, '#'); i >= 0 {
			href = href[:i]
		}
		s.chapters = append(s.chapters, EPUBChapter{
			Index: len(s.chapters),
			ID:    ref.IDRef,
			Title: fmt.Sprintf("Chapter %d", len(s.chapters)+1),
			Path:  path.Join(baseDir, href),
		})
	}

	if len(s.chapters) == 0 {
		return fmt.Errorf("spine has no readable documents")
	}
	return nil
}

func isDocument(mediaType string) bool {
	switch mediaType {
	case "application/xhtml+xml", "text/html", "":
		return true
	}
	return false
}

// documentTitle returns the first heading of the body, falling back to the
// <title> element.
func documentTitle(doc *html.Node) string {
	var heading, title string

	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if heading != "" {
			return
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if title == "" {
					title = strings.TrimSpace(nodeText(n))
				}
				return
			case atom.H1, atom.H2, atom.H3:
				heading = strings.Join(strings.Fields(nodeText(n)), " ")
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)

	if heading != "" {
		return heading
	}
	return title
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}
