package raster

import (
	"errors"
	"fmt"
)

var (
	// ErrPageOutOfRange is returned when a page index is at or beyond the
	// number of pages the text paginates into.
	ErrPageOutOfRange = errors.New("page out of range")

	// ErrUnsupportedFormat is returned for an unknown output format name.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrDecodeFailure is returned when a source payload is not a decodable image.
	ErrDecodeFailure = errors.New("image decode failed")
)

// PageRangeError carries the requested page and the computed page total.
type PageRangeError struct {
	Page  int
	Total int
}

func (e *PageRangeError) Error() string {
	return fmt.Sprintf("page %d out of range (total pages: %d)", e.Page, e.Total)
}

func (e *PageRangeError) Unwrap() error {
	return ErrPageOutOfRange
}
