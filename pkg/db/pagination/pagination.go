package pagination

import "strconv"

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page describes a bounded window over a result set.
type Page struct {
	Number int
	Size   int
}

// Parse builds a Page from raw query values, clamping out-of-range input.
func Parse(rawPage, rawSize string) Page {
	page := defaultPage
	if parsed, err := strconv.Atoi(rawPage); err == nil && parsed > 0 {
		page = parsed
	}
	size := defaultPageSize
	if parsed, err := strconv.Atoi(rawSize); err == nil && parsed > 0 {
		size = parsed
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return Page{Number: page, Size: size}
}

// Offset returns the SQL offset for the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Limit returns the SQL limit for the page.
func (p Page) Limit() int {
	return p.Size
}

// Result wraps a page of rows with the total row count.
type Result[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// NewResult assembles a Result envelope.
func NewResult[T any](items []T, page Page, total int64) Result[T] {
	if items == nil {
		items = []T{}
	}
	return Result[T]{
		Items:    items,
		Page:     page.Number,
		PageSize: page.Size,
		Total:    total,
	}
}
