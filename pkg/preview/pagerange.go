package preview

import (
	"fmt"
	"strconv"
	"strings"
)

// PageRange is an inclusive range of 0-based display pages.
type PageRange struct {
	Start int
	End   int
}

// PageRangeSet holds multiple page ranges. An empty set selects every page.
type PageRangeSet struct {
	ranges []PageRange
}

// ParsePageRanges parses a page range string like "0-2,5,10-15".
func ParsePageRanges(rangeStr string) (*PageRangeSet, error) {
	if strings.TrimSpace(rangeStr) == "" {
		return &PageRangeSet{}, nil
	}

	var ranges []PageRange
	for _, part := range strings.Split(rangeStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "-") {
			rangeParts := strings.Split(part, "-")
			if len(rangeParts) != 2 {
				return nil, fmt.Errorf("invalid range format: %s", part)
			}

			start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
			if err != nil {
				return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
			}

			end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
			}

			if start > end {
				return nil, fmt.Errorf("start page (%d) cannot be greater than end page (%d)", start, end)
			}

			ranges = append(ranges, PageRange{Start: start, End: end})
		} else {
			page, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid page number: %s", part)
			}

			ranges = append(ranges, PageRange{Start: page, End: page})
		}
	}

	return &PageRangeSet{ranges: ranges}, nil
}

// Contains checks if a page is within any of the ranges
func (prs *PageRangeSet) Contains(page int) bool {
	if len(prs.ranges) == 0 {
		return true
	}
	for _, r := range prs.ranges {
		if page >= r.Start && page <= r.End {
			return true
		}
	}
	return false
}

// Ranges returns all the ranges
func (prs *PageRangeSet) Ranges() []PageRange {
	return prs.ranges
}

func (prs *PageRangeSet) String() string {
	if len(prs.ranges) == 0 {
		return "all"
	}

	var parts []string
	for _, r := range prs.ranges {
		if r.Start == r.End {
			parts = append(parts, strconv.Itoa(r.Start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", r.Start, r.End))
		}
	}

	return strings.Join(parts, ",")
}

// Validate checks that every page exists in a chapter of totalPages pages.
func (prs *PageRangeSet) Validate(totalPages int) error {
	for _, r := range prs.ranges {
		if r.Start < 0 {
			return fmt.Errorf("page numbers must be 0 or greater, got: %d", r.Start)
		}
		if r.End >= totalPages {
			return fmt.Errorf("page %d exceeds total pages (%d)", r.End, totalPages)
		}
	}
	return nil
}

// Pages expands the set to sorted, de-duplicated page indexes for a chapter
// of totalPages pages.
func (prs *PageRangeSet) Pages(totalPages int) []int {
	var pages []int
	for i := 0; i < totalPages; i++ {
		if prs.Contains(i) {
			pages = append(pages, i)
		}
	}
	return pages
}
