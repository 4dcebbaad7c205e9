package records

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02 15:04:05",
	"2006/01/02", "2006/1/2",
	// Slash dates are read month-first, then day-first for values like 25/09/2025.
	"01/02/2006", "1/2/2006", "1/2/2006 15:04", "1/2/2006 15:04:05",
	"02/01/2006", "2/1/2006", "2/1/2006 15:04", "2/1/2006 15:04:05",
	"02-Jan-2006", "2 Jan 2006", "Jan 2, 2006", "January 2, 2006", "2 January 2006",
}

// Spreadsheet serial day numbers count from 1899-12-30. Only values mapping to
// 1954..2119 are accepted so small integers are never mistaken for dates.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

const (
	minSerialDay = 20000
	maxSerialDay = 80000
)

// ParseDate parses s leniently. Blank, placeholder ("0000-00-00") and
// unparseable values report ok == false.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "0000") {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= minSerialDay && f < maxSerialDay {
		days := math.Floor(f)
		return serialEpoch.AddDate(0, 0, int(days)), true
	}
	return time.Time{}, false
}

// ParseNumber parses a numeric cell, accepting a decimal comma when no dot is present.
func ParseNumber(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	if strings.Contains(raw, ",") && !strings.Contains(raw, ".") {
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// median of vals; vals is not modified.
func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	return quantile(cp, 0.5)
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
