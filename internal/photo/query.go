package photo

import (
	"strconv"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListOptions are the caller-facing listing parameters.
type ListOptions struct {
	Order SortOrder
	Limit int
	Page  int // 1-based
}

// ParseListOptions maps raw query values onto ListOptions. sortBy "oldest"
// selects ascending order, anything else descending. Missing or invalid limit
// and page values fall back to defaultLimit and 1.
func ParseListOptions(sortBy, limit, page string, defaultLimit int) ListOptions {
	if defaultLimit <= 0 {
		defaultLimit = DefaultPageSize
	}

	opts := ListOptions{Order: SortDesc, Limit: defaultLimit, Page: 1}
	if sortBy == "oldest" {
		opts.Order = SortAsc
	}
	if n, err := strconv.Atoi(limit); err == nil && n > 0 {
		opts.Limit = n
	}
	if opts.Limit > MaxPageSize {
		opts.Limit = MaxPageSize
	}
	if n, err := strconv.Atoi(page); err == nil && n > 0 {
		opts.Page = n
	}
	return opts
}

// normalized replaces out-of-range values with their defaults.
func (o ListOptions) normalized() ListOptions {
	if o.Order != SortAsc {
		o.Order = SortDesc
	}
	if o.Limit <= 0 {
		o.Limit = DefaultPageSize
	}
	if o.Limit > MaxPageSize {
		o.Limit = MaxPageSize
	}
	if o.Page <= 0 {
		o.Page = 1
	}
	return o
}

func (o ListOptions) query() ListQuery {
	return ListQuery{
		Order:  o.Order,
		Limit:  o.Limit,
		Offset: (o.Page - 1) * o.Limit,
	}
}

// Page is one page of a listing.
type Page struct {
	Results      []Photo `json:"results"`
	Page         int     `json:"page"`
	Limit        int     `json:"limit"`
	TotalPages   int     `json:"totalPages"`
	TotalResults int64   `json:"totalResults"`
}

func newPage(photos []Photo, total int64, opts ListOptions) *Page {
	if photos == nil {
		photos = []Photo{}
	}
	limit := int64(opts.Limit)
	return &Page{
		Results:      photos,
		Page:         opts.Page,
		Limit:        opts.Limit,
		TotalPages:   int((total + limit - 1) / limit),
		TotalResults: total,
	}
}
