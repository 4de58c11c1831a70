package source

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var skippedElements = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Blockquote: true, atom.Tr: true, atom.Pre: true,
	atom.Hr: true, atom.Header: true, atom.Footer: true, atom.Figcaption: true,
	atom.Dt: true, atom.Dd: true, atom.Aside: true, atom.Table: true,
}

// ExtractText returns the readable text of an HTML document or fragment.
// Block elements and <br> become line breaks; runs of whitespace inside a
// block collapse to single spaces.
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var b strings.Builder
	walkText(doc, &b)
	return b.String(), nil
}

// ExtractTextString is ExtractText for an in-memory document.
func ExtractTextString(doc string) (string, error) {
	return ExtractText(strings.NewReader(doc))
}

func walkText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		writeCollapsed(b, n.Data)
		return
	case html.ElementNode:
		if skippedElements[n.DataAtom] {
			return
		}
		if n.DataAtom == atom.Br {
			b.WriteByte('\n')
			return
		}
		if n.DataAtom == atom.Img {
			if alt := attr(n, "alt"); alt != "" {
				writeCollapsed(b, "["+alt+"]")
			}
			return
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.DataAtom]
	if block {
		breakLine(b)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, b)
	}
	if block {
		breakLine(b)
	}
}

func writeCollapsed(b *strings.Builder, s string) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s != "" && b.Len() > 0 && !endsWithSpace(b) {
			b.WriteByte(' ')
		}
		return
	}
	if startsWithSpace(s) && b.Len() > 0 && !endsWithSpace(b) {
		b.WriteByte(' ')
	}
	b.WriteString(strings.Join(fields, " "))
	if endsWithSpaceString(s) {
		b.WriteByte(' ')
	}
}

func breakLine(b *strings.Builder) {
	if b.Len() == 0 {
		return
	}
	s := b.String()
	if strings.HasSuffix(s, "\n") {
		return
	}
	b.WriteByte('\n')
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func startsWithSpace(s string) bool {
	return s != "" && strings.ContainsRune(" \t\n\r\f", rune(s[0]))
}

func endsWithSpaceString(s string) bool {
	return s != "" && strings.ContainsRune(" \t\n\r\f", rune(s[len(s)-1]))
}

func endsWithSpace(b *strings.Builder) bool {
	return endsWithSpaceString(b.String())
}
