package source

import (
	"testing"
)

func TestTextCleanerClean(t *testing.T) {
	tests := []struct {
		name string
		opts CleanOptions
		in   string
		want string
	}{
		{
			name: "empty",
			in:   "",
			want: "",
		},
		{
			name: "line endings and trailing space",
			in:   "one  \r\ntwo\t\rthree",
			want: "one\ntwo\nthree",
		},
		{
			name: "control characters removed",
			in:   "a\x00b\x07c\u200bd",
			want: "abcd",
		},
		{
			name: "space runs collapse",
			in:   "wide \t  gap here",
			want: "wide gap here",
		},
		{
			name: "blank lines dropped by default",
			in:   "para one\n\n\n\npara two\n",
			want: "para one\npara two",
		},
		{
			name: "paragraph breaks kept",
			opts: CleanOptions{KeepParagraphBreaks: true},
			in:   "para one\n\n\n\npara two",
			want: "para one\n\npara two",
		},
		{
			name: "headings isolated",
			opts: CleanOptions{KeepParagraphBreaks: true},
			in:   "end of prologue\nChapter 1\nIt began.",
			want: "end of prologue\n\nChapter 1\n\nIt began.",
		},
		{
			name: "ascii punctuation",
			opts: CleanOptions{ASCIIPunctuation: true},
			in:   "“Wait…” — she said, ‘no’",
			want: "\"Wait...\" - she said, 'no'",
		},
		{
			name: "nfc composition",
			in:   "cafe\u0301",
			want: "caf\u00e9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewTextCleaner(tt.opts).Clean(tt.in)
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
