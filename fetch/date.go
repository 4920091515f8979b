package fetch

import (
	"fmt"
	"time"
)

// DateLayout is how dates are written into imagery requests
const DateLayout = "2006-01-02T15:04:05Z"

var dateLayouts = []string{DateLayout, "2006-01-02T15:04:05", "20060102"}

var (
	DefaultFrom = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	DefaultTo   = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
)

// ParseDate accepts ISO 8601 (2023-01-01T00:00:00Z, with or without the Z) or YYYYMMDD.
// Dates without a zone are UTC.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format: %s. Use ISO8601 (e.g. 2023-01-01T00:00:00Z) or YYYYMMDD (e.g. 20230101)", s)
}
