package backend

import (
	"net/url"
	"strconv"
	"strings"
)

// Pagination bounds accepted by the backend.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ListParams describes a paged listing query.
type ListParams struct {
	Page    int
	Limit   int
	Search  string
	Filters map[string]string
}

// Normalize clamps the page to at least 1 and the limit to 1..MaxLimit.
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultLimit
	case p.Limit > MaxLimit:
		p.Limit = MaxLimit
	}
	p.Search = strings.TrimSpace(p.Search)
	return p
}

// Values encodes the query string. Blank search and filter values are dropped.
func (p ListParams) Values() url.Values {
	p = p.Normalize()
	values := url.Values{}
	values.Set("page", strconv.Itoa(p.Page))
	values.Set("limit", strconv.Itoa(p.Limit))
	if p.Search != "" {
		values.Set("search", p.Search)
	}
	for key, value := range p.Filters {
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		values.Set(key, value)
	}
	return values
}

// ParseListParams reads page, limit, search and the named filters from a
// query string.
func ParseListParams(query url.Values, filters ...string) ListParams {
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))
	params := ListParams{Page: page, Limit: limit, Search: query.Get("search")}
	for _, name := range filters {
		if value := strings.TrimSpace(query.Get(name)); value != "" {
			if params.Filters == nil {
				params.Filters = make(map[string]string, len(filters))
			}
			params.Filters[name] = value
		}
	}
	return params.Normalize()
}

// Meta is the pagination envelope of paged responses.
type Meta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	Limit    int `json:"limit"`
	LastPage int `json:"last_page"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Data []T `json:"data"`
	Meta Meta `json:"meta"`
}

// HasPrev reports whether a previous page exists.
func (m Meta) HasPrev() bool { return m.Page > 1 }

// HasNext reports whether a following page exists.
func (m Meta) HasNext() bool { return m.Page < m.LastPage }
