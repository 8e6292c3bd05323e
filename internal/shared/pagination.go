package shared

import (
	"net/url"
	"strconv"
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
	// Query holds the listing filters carried across page links.
	Query url.Values
}

// NewPagination computes pagination metadata. A zero totalPages is derived
// from total and perPage.
func NewPagination(page, perPage, total, totalPages int, query url.Values) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	if totalPages <= 0 {
		totalPages = (total + perPage - 1) / perPage
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages, Query: query}
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a following page exists.
func (p Pagination) HasNext() bool { return p.Page < p.TotalPages }

// PrevURL is the query string of the previous page.
func (p Pagination) PrevURL() string { return p.pageQuery(p.Page - 1) }

// NextURL is the query string of the following page.
func (p Pagination) NextURL() string { return p.pageQuery(p.Page + 1) }

func (p Pagination) pageQuery(page int) string {
	values := url.Values{}
	for key, vals := range p.Query {
		if key == "page" {
			continue
		}
		values[key] = vals
	}
	values.Set("page", strconv.Itoa(page))
	values.Set("limit", strconv.Itoa(p.PerPage))
	return "?" + values.Encode()
}
