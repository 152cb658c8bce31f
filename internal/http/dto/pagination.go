package dto

import "strconv"

// Pagination describes a capped list response.
type Pagination struct {
	Limit     int  `json:"limit"`
	Count     int  `json:"count"`
	Truncated bool `json:"truncated"`
}

func NewPagination(limit, count int) Pagination {
	return Pagination{
		Limit:     limit,
		Count:     count,
		Truncated: count >= limit,
	}
}

// ParseLimit reads a limit query parameter. Empty means def and values above
// max are capped.
func ParseLimit(raw string, def, max int) (int, *ValidationError) {
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, &ValidationError{Field: "limit", Message: "must be a positive integer"}
	}
	if limit > max {
		limit = max
	}
	return limit, nil
}
