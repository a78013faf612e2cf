package fncall

import (
	"fmt"
	"strconv"
	"strings"
)

// SortOrder orders a model report by size.
type SortOrder string

// Sort orders accepted by ToolModelReport.
const (
	SortNone SortOrder = "none"
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortOrder parses asc, desc or none (case-insensitive). Empty is none.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortNone:
		return SortNone, nil
	case SortAsc:
		return SortAsc, nil
	case SortDesc:
		return SortDesc, nil
	default:
		return "", fmt.Errorf("invalid sort order %q (want asc, desc or none)", s)
	}
}

var sizeUnits = []string{"KB", "MB", "GB", "TB"}

// FormatSize renders bytes with binary-prefix units at 1024 thresholds:
// under 1024 as "<n> B", otherwise one decimal place with trailing zeros
// and a trailing dot stripped ("1.5 KB", "1 MB").
func FormatSize(bytes int64) string {
	if bytes < 1024 {
		return strconv.FormatInt(bytes, 10) + " B"
	}
	size := float64(bytes)
	unit := -1
	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}
	s := strconv.FormatFloat(size, 'f', 1, 64)
	s = strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
	return s + " " + sizeUnits[unit]
}
