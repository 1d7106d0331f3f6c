package ranking

import (
	"strconv"
	"strings"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

type PageRequest struct {
	Page     int
	PageSize int
}

// ParsePageRequest reads raw query values. Missing or non-numeric values fall
// back to page 1 and DefaultPageSize; page_size is clamped to [1, MaxPageSize].
func ParsePageRequest(pageRaw, pageSizeRaw string) PageRequest {
	req := PageRequest{Page: 1, PageSize: DefaultPageSize}
	if n, err := strconv.Atoi(strings.TrimSpace(pageRaw)); err == nil {
		req.Page = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(pageSizeRaw)); err == nil {
		req.PageSize = n
	}
	return req.normalize()
}

func (r PageRequest) normalize() PageRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = 1
	}
	if r.PageSize > MaxPageSize {
		r.PageSize = MaxPageSize
	}
	return r
}

type Page[T any] struct {
	Results     []T  `json:"results"`
	Page        int  `json:"page"`
	PageSize    int  `json:"page_size"`
	TotalPages  int  `json:"total_pages"`
	Count       int  `json:"count"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// Paginate slices items. A page past the end yields the last page; an empty
// list yields one empty page.
func Paginate[T any](items []T, req PageRequest) Page[T] {
	req = req.normalize()
	count := len(items)
	totalPages := (count + req.PageSize - 1) / req.PageSize
	if totalPages < 1 {
		totalPages = 1
	}
	page := req.Page
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * req.PageSize
	end := start + req.PageSize
	if end > count {
		end = count
	}
	results := make([]T, 0, end-start)
	results = append(results, items[start:end]...)
	return Page[T]{
		Results:     results,
		Page:        page,
		PageSize:    req.PageSize,
		TotalPages:  totalPages,
		Count:       count,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

// MapPage converts page results while keeping the envelope.
func MapPage[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := Page[U]{
		Results:     make([]U, 0, len(p.Results)),
		Page:        p.Page,
		PageSize:    p.PageSize,
		TotalPages:  p.TotalPages,
		Count:       p.Count,
		HasNext:     p.HasNext,
		HasPrevious: p.HasPrevious,
	}
	for _, v := range p.Results {
		out.Results = append(out.Results, fn(v))
	}
	return out
}
