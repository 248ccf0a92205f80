package shared

import (
	"math"
	"net/http"
	"strconv"
)

const (
	maxPerPage = 100
	// MaxPage bounds page numbers so (page-1)*per_page stays a valid OFFSET.
	MaxPage = 1_000_000
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// PageRequest is a normalised page/per_page pair.
type PageRequest struct {
	Page    int
	PerPage int
}

// Limit returns the SQL LIMIT for the page.
func (p PageRequest) Limit() int { return p.PerPage }

// Offset returns the SQL OFFSET for the page.
func (p PageRequest) Offset() int {
	if p.Page <= 1 || p.PerPage <= 0 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// ParsePageRequest reads page and per_page query parameters.
func ParsePageRequest(r *http.Request) PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return NormalisePage(page, perPage)
}

// NormalisePage clamps page values to sane bounds.
func NormalisePage(page, perPage int) PageRequest {
	if page <= 0 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return PageRequest{Page: page, PerPage: perPage}
}
