package source

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	spaceRun      = regexp.MustCompile(`[ \t\p{Zs}]+`)
	blankLineRun  = regexp.MustCompile(`\n[ \t]*\n[ \t\n]*`)
	headingLine   = regexp.MustCompile(`^(Chapter|CHAPTER|Ch\.|CH\.|Prologue|Epilogue|Interlude)\b`)
	allCapsHeader = regexp.MustCompile(`^[A-Z][A-Z\s]{10,}$`)
)

var asciiPunctuation = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'", "\u201a", "'",
	"\u201c", `"`, "\u201d", `"`, "\u201e", `"`,
	"\u2013", "-", "\u2014", "-", "\u2015", "-",
	"\u2026", "...",
)

// CleanOptions tunes TextCleaner.
type CleanOptions struct {
	// ASCIIPunctuation folds curly quotes, dashes and ellipses to ASCII for
	// fonts that lack those glyphs.
	ASCIIPunctuation bool
	// KeepParagraphBreaks keeps a single blank line between paragraphs.
	KeepParagraphBreaks bool
}

// TextCleaner prepares extracted chapter text for layout.
type TextCleaner struct {
	options CleanOptions
}

func NewTextCleaner(opts CleanOptions) *TextCleaner {
	return &TextCleaner{options: opts}
}

// Clean normalizes text to NFC, strips control characters, collapses
// whitespace and puts chapter headings on lines of their own.
func (tc *TextCleaner) Clean(text string) string {
	if text == "" {
		return text
	}

	text = norm.NFC.String(text)
	if tc.options.ASCIIPunctuation {
		text = asciiPunctuation.Replace(text)
	}
	text = tc.basicCleanup(text)
	text = tc.normalizeWhitespace(text)
	text = tc.isolateHeadings(text)

	return text
}

func (tc *TextCleaner) basicCleanup(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\t':
			return ' '
		case r == 0 || unicode.IsControl(r):
			return -1
		case r == '\u200b' || r == '\ufeff' || r == '\u00ad':
			return -1
		}
		return r
	}, text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}

	return strings.Join(lines, "\n")
}

func (tc *TextCleaner) normalizeWhitespace(text string) string {
	text = spaceRun.ReplaceAllString(text, " ")
	if tc.options.KeepParagraphBreaks {
		text = blankLineRun.ReplaceAllString(text, "\n\n")
	} else {
		text = blankLineRun.ReplaceAllString(text, "\n")
	}
	return strings.TrimSpace(text)
}

func (tc *TextCleaner) isolateHeadings(text string) string {
	if !tc.options.KeepParagraphBreaks {
		return text
	}

	lines := strings.Split(text, "\n")
	processed := make([]string, 0, len(lines))

	for _, line := range lines {
		if isHeading(line) {
			if len(processed) > 0 && processed[len(processed)-1] != "" {
				processed = append(processed, "")
			}
			processed = append(processed, line, "")
			continue
		}
		if line == "" && len(processed) > 0 && processed[len(processed)-1] == "" {
			continue
		}
		processed = append(processed, line)
	}

	return strings.TrimSpace(strings.Join(processed, "\n"))
}

func isHeading(line string) bool {
	if line == "" || len(line) >= 100 {
		return false
	}
	return headingLine.MatchString(line) || allCapsHeader.MatchString(line)
}
