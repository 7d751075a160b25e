// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Pagination holds pagination data for admin templates.
type Pagination struct {
	CurrentPage int
	TotalPages  int
	TotalItems  int64
	PerPage     int
	HasPrev     bool
	HasNext     bool
	Pages       []PaginationPage
	BaseURL     string
	QueryString string
}

// PaginationPage represents a single page link.
type PaginationPage struct {
	Number     int
	URL        string
	IsCurrent  bool
	IsEllipsis bool
}

// BuildPagination creates pagination data. baseURL is the path without a
// query string; queryParams other than "page" are kept on every link.
func BuildPagination(currentPage int, totalItems int64, perPage int, baseURL string, queryParams url.Values) Pagination {
	totalPages := TotalPages(totalItems, perPage)
	currentPage = ClampPage(currentPage, totalPages)

	p := Pagination{
		CurrentPage: currentPage,
		TotalPages:  totalPages,
		TotalItems:  totalItems,
		PerPage:     perPage,
		HasPrev:     currentPage > 1,
		HasNext:     currentPage < totalPages,
		BaseURL:     baseURL,
	}

	params := make(url.Values)
	for k, v := range queryParams {
		if k != "page" && len(v) > 0 && v[0] != "" {
			params[k] = v
		}
	}
	if len(params) > 0 {
		p.QueryString = params.Encode()
	}

	p.Pages = buildPages(currentPage, totalPages, p.PageURL)
	return p
}

// PageURL returns the URL for a specific page number.
func (p Pagination) PageURL(page int) string {
	if p.QueryString != "" {
		return fmt.Sprintf("%s?%s&page=%d", p.BaseURL, p.QueryString, page)
	}
	return fmt.Sprintf("%s?page=%d", p.BaseURL, page)
}

// PrevURL returns the URL for the previous page.
func (p Pagination) PrevURL() string {
	return p.PageURL(p.CurrentPage - 1)
}

// NextURL returns the URL for the next page.
func (p Pagination) NextURL() string {
	return p.PageURL(p.CurrentPage + 1)
}

// ShouldShow returns true if there is more than one page.
func (p Pagination) ShouldShow() bool {
	return p.TotalPages > 1
}

// Offset returns the row offset of the current page.
func (p Pagination) Offset() int64 {
	return int64((p.CurrentPage - 1) * p.PerPage)
}

// buildPages shows 5 page numbers centered on the current page, with
// ellipses for gaps, and always includes the first and last pages.
func buildPages(currentPage, totalPages int, buildURL func(int) string) []PaginationPage {
	var pages []PaginationPage

	start := currentPage - 2
	end := currentPage + 2
	if start < 1 {
		start = 1
		end = 5
	}
	if end > totalPages {
		end = totalPages
		start = max(end-4, 1)
	}

	if start > 1 {
		pages = append(pages, PaginationPage{Number: 1, URL: buildURL(1)})
		if start > 2 {
			pages = append(pages, PaginationPage{IsEllipsis: true})
		}
	}

	for i := start; i <= end; i++ {
		pages = append(pages, PaginationPage{Number: i, URL: buildURL(i), IsCurrent: i == currentPage})
	}

	if end < totalPages {
		if end < totalPages-1 {
			pages = append(pages, PaginationPage{IsEllipsis: true})
		}
		pages = append(pages, PaginationPage{Number: totalPages, URL: buildURL(totalPages)})
	}

	return pages
}

// TotalPages calculates the number of pages, never less than 1.
func TotalPages(totalItems int64, perPage int) int {
	if perPage <= 0 {
		return 1
	}
	n := int((totalItems + int64(perPage) - 1) / int64(perPage))
	if n < 1 {
		n = 1
	}
	return n
}

// ClampPage keeps page within [1, totalPages].
func ClampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// ParsePageParam parses the "page" query parameter. Returns 1 if it is
// missing or invalid.
func ParsePageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// ParseQueryInt64 parses a named query parameter as a positive int64.
// Returns 0 if it is missing, invalid, or not positive.
func ParseQueryInt64(r *http.Request, name string) int64 {
	val, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || val <= 0 {
		return 0
	}
	return val
}
