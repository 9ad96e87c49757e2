// Package utils holds small helpers shared by the HTTP and service layers.
package utils

import "strconv"

// Page-size bounds for every paginated listing.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPage normalizes a (page, pageSize) pair: page is at least 1, a
// non-positive size becomes DefaultPageSize and sizes above MaxPageSize
// are capped.
func ClampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// ParsePage reads raw query values and clamps them.
func ParsePage(rawPage, rawSize string) (int, int) {
	return ClampPage(AtoiDefault(rawPage, 1), AtoiDefault(rawSize, DefaultPageSize))
}

// Offset returns the row offset of a clamped page.
func Offset(page, pageSize int) int {
	return (page - 1) * pageSize
}
