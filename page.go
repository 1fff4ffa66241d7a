package gdr

// =====================================
// Pagination
// =====================================

// PageRequest describes the page window of an invocation. It is
// recognized as the trailing call argument and excluded from
// placeholder binding; its sort keys, when present, replace the
// plan's own ordering.
type PageRequest struct {
	Offset int
	Limit  int
	Sort   []Order
}

// PageOf builds a PageRequest from a 0-based page number and size.
func PageOf(page, size int) PageRequest {
	if page < 0 {
		page = 0
	}
	return PageRequest{Offset: page * size, Limit: size}
}

// OffsetLimit builds a PageRequest from an explicit offset and limit.
func OffsetLimit(offset, limit int) PageRequest {
	return PageRequest{Offset: offset, Limit: limit}
}

// WithSort returns a copy of the request with sort keys appended.
func (p PageRequest) WithSort(orders ...Order) PageRequest {
	p.Sort = append(append([]Order{}, p.Sort...), orders...)
	return p
}

// Page is one page of results plus the total number of matching
// records across all pages.
type Page[T any] struct {
	Items  []*T
	Total  int64
	Offset int
	Limit  int
}

// HasNext reports whether records exist beyond this page.
func (p Page[T]) HasNext() bool {
	return int64(p.Offset+len(p.Items)) < p.Total
}
