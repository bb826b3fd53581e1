package handler

import (
	"math"
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

type pagination struct {
	page    int
	perPage int
}

// pageMeta is embedded in list responses.
type pageMeta struct {
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Pages   int64 `json:"pages"`
}

// parsePagination reads page (1-based) and per_page.
func parsePagination(r *http.Request) (pagination, error) {
	p := pagination{page: 1, perPage: defaultPerPage}
	q := r.URL.Query()
	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPerPage {
			return pagination{}, badRequest("per_page must be between 1 and %d", maxPerPage)
		}
		p.perPage = n
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > math.MaxInt32/p.perPage {
			return pagination{}, badRequest("page must be a positive integer")
		}
		p.page = n
	}
	return p, nil
}

func (p pagination) limit() int  { return p.perPage }
func (p pagination) offset() int { return (p.page - 1) * p.perPage }

func (p pagination) meta(total int64) pageMeta {
	per := int64(p.perPage)
	return pageMeta{Total: total, Page: p.page, PerPage: p.perPage, Pages: (total + per - 1) / per}
}
