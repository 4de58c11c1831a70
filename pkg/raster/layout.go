package raster

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
)

// Metrics measures text for line breaking.
type Metrics interface {
	// Advance returns the horizontal extent of s in pixels.
	Advance(s string) int
	// LineHeight returns the vertical distance between baselines in pixels.
	LineHeight() int
}

// FixedMetrics gives every rune the same width.
type FixedMetrics struct {
	CharWidth int
	Height    int
}

func (m FixedMetrics) Advance(s string) int {
	return utf8.RuneCountInString(s) * m.CharWidth
}

func (m FixedMetrics) LineHeight() int {
	return m.Height
}

// FaceMetrics adapts a font face. Spacing is added below each line.
type FaceMetrics struct {
	Face    font.Face
	Spacing int
}

func (m FaceMetrics) Advance(s string) int {
	return font.MeasureString(m.Face, s).Ceil()
}

func (m FaceMetrics) LineHeight() int {
	return m.Face.Metrics().Height.Ceil() + m.Spacing
}

// Line is one wrapped line. Offsets holds the x position of each word
// relative to the start of the line.
type Line struct {
	Words   []string
	Offsets []int
	Width   int
}

// Text joins the words of the line with single spaces.
func (l Line) Text() string {
	return strings.Join(l.Words, " ")
}

// WrapOptions controls line breaking.
type WrapOptions struct {
	// BreakLongWords splits a word wider than the line across several lines.
	// When false such a word is placed alone on its own line and may overflow.
	BreakLongWords bool
	// KeepBlankLines turns a run of blank input lines into one empty Line
	// (a paragraph gap). Gaps never lead or trail the result.
	KeepBlankLines bool
}

// Wrap greedily breaks text into lines no wider than maxWidth. Newlines in
// the input always end the current line; blank input lines are dropped
// unless opts.KeepBlankLines is set.
func Wrap(text string, maxWidth int, m Metrics, opts WrapOptions) []Line {
	space := m.Advance(" ")

	var lines []Line
	var cur Line

	flush := func() {
		if len(cur.Words) > 0 {
			lines = append(lines, cur)
		}
		cur = Line{}
	}

	place := func(word string, width int) {
		if len(cur.Words) == 0 {
			cur.Words = append(cur.Words, word)
			cur.Offsets = append(cur.Offsets, 0)
			cur.Width = width
			return
		}
		if cur.Width+space+width <= maxWidth {
			cur.Words = append(cur.Words, word)
			cur.Offsets = append(cur.Offsets, cur.Width+space)
			cur.Width += space + width
			return
		}
		flush()
		cur.Words = []string{word}
		cur.Offsets = []int{0}
		cur.Width = width
	}

	for _, paragraph := range strings.Split(text, "\n") {
		if opts.KeepBlankLines && strings.TrimSpace(paragraph) == "" {
			if n := len(lines); n > 0 && len(lines[n-1].Words) > 0 {
				lines = append(lines, Line{})
			}
			continue
		}
		for _, word := range strings.Fields(paragraph) {
			width := m.Advance(word)
			if width > maxWidth && opts.BreakLongWords {
				pieces := splitWord(word, maxWidth, m)
				for i, piece := range pieces {
					if i < len(pieces)-1 {
						flush()
						place(piece, m.Advance(piece))
						flush()
						continue
					}
					place(piece, m.Advance(piece))
				}
				continue
			}
			place(word, width)
		}
		flush()
	}

	for len(lines) > 0 && len(lines[len(lines)-1].Words) == 0 {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// splitWord cuts a word into rune runs that each fit maxWidth. A run always
// holds at least one rune so a single glyph wider than the line still
// makes progress.
func splitWord(word string, maxWidth int, m Metrics) []string {
	var pieces []string
	runes := []rune(word)
	start := 0
	for start < len(runes) {
		end := start + 1
		for end < len(runes) && m.Advance(string(runes[start:end+1])) <= maxWidth {
			end++
		}
		pieces = append(pieces, string(runes[start:end]))
		start = end
	}
	return pieces
}

// LinesPerPage returns how many lines of the given height fit a page.
// A page always holds at least one line.
func LinesPerPage(pageHeight, lineHeight int) int {
	if lineHeight <= 0 {
		return 1
	}
	n := pageHeight / lineHeight
	if n < 1 {
		return 1
	}
	return n
}

// Pagination groups wrapped lines into fixed-size pages.
type Pagination struct {
	Lines        []Line
	LinesPerPage int
}

// Paginate groups lines into pages of linesPerPage lines.
func Paginate(lines []Line, linesPerPage int) Pagination {
	if linesPerPage < 1 {
		linesPerPage = 1
	}
	return Pagination{Lines: lines, LinesPerPage: linesPerPage}
}

// TotalPages returns the number of pages; text with no words has none.
func (p Pagination) TotalPages() int {
	return (len(p.Lines) + p.LinesPerPage - 1) / p.LinesPerPage
}

// Page returns the lines of the 0-based page index.
func (p Pagination) Page(index int) ([]Line, error) {
	total := p.TotalPages()
	if index < 0 || index >= total {
		return nil, &PageRangeError{Page: index, Total: total}
	}

	start := index * p.LinesPerPage
	end := min(start+p.LinesPerPage, len(p.Lines))
	return p.Lines[start:end], nil
}
