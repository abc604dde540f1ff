// Package utils holds the query-parameter parsing shared by the HTTP
// handlers. Nothing here knows about gin or the domain.
package utils

import "strconv"

// Page size bounds of paginated listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageParams parses raw page and page_size values. Missing or malformed
// values fall back to page 1 and DefaultPageSize; out-of-range values are
// clamped to [1, MaxPageSize].
func PageParams(rawPage, rawSize string) (page, pageSize int) {
	page = atoiDefault(rawPage, 1)
	if page < 1 {
		page = 1
	}
	pageSize = atoiDefault(rawSize, DefaultPageSize)
	switch {
	case pageSize < 1:
		pageSize = 1
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// TotalPages is the number of pages of pageSize needed for total items.
func TotalPages(total int64, pageSize int) int {
	if pageSize < 1 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
