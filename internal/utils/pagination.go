package utils

import "net/http"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page describes one slice of a paginated listing.
type Page struct {
	Number int64 // 1-based
	Size   int64
}

// ParsePage reads "page" and "pageSize" query parameters with clamping.
func ParsePage(r *http.Request) Page {
	number := QueryInt64(r, "page", 1)
	if number < 1 {
		number = 1
	}

	size := QueryInt64(r, "pageSize", defaultPageSize)
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	return Page{Number: number, Size: size}
}

func (p Page) Offset() int64 {
	return (p.Number - 1) * p.Size
}

func (p Page) Limit() int64 {
	return p.Size
}

// HasNext reports whether more rows exist beyond this page.
func (p Page) HasNext(total int64) bool {
	return p.Offset()+p.Size < total
}
