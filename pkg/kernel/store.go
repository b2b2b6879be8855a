package kernel

// Page carries pagination metadata alongside a result set.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"page_size"`
	Total  int `json:"total"`
	Pages  int `json:"pages"`
}

// Paginated wraps a page of items with its metadata.
type Paginated[T any] struct {
	Items []T  `json:"items"`
	Page  Page `json:"pagination"`
	Empty bool `json:"empty"`
}

// NewPaginated builds a Paginated result, deriving the page count from total and size.
func NewPaginated[T any](items []T, page, size, total int) Paginated[T] {
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return Paginated[T]{
		Items: items,
		Page:  Page{Number: page, Size: size, Total: total, Pages: pages},
		Empty: len(items) == 0,
	}
}

// HasNext reports whether pages remain after the current one.
func (p Paginated[T]) HasNext() bool { return p.Page.Number < p.Page.Pages }

// PaginationOptions holds the page selection for list queries.
type PaginationOptions struct {
	Page     int
	PageSize int
}

// Normalize clamps the options to sane values. Page numbers are 1-based.
func (o PaginationOptions) Normalize() PaginationOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = 25
	}
	if o.PageSize > 200 {
		o.PageSize = 200
	}
	return o
}

// Offset returns the row offset for the normalized options.
func (o PaginationOptions) Offset() int {
	n := o.Normalize()
	return (n.Page - 1) * n.PageSize
}
