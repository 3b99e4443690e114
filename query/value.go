package query

import (
	"strconv"
	"strings"
	"time"
)

// sizeUnits maps the literal suffixes allowed on a size: value to their
// byte multiplier.
var sizeUnits = map[string]int64{
	"b": 1,
	"kb": 1024, "k": 1024,
	"mb": 1024 * 1024, "m": 1024 * 1024,
	"gb": 1024 * 1024 * 1024, "g": 1024 * 1024 * 1024,
}

// parseSizeLiteral parses a size: value like "10kb" or a bare byte count.
func parseSizeLiteral(s string) (int64, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, false
	}
	i := len(s)
	for i > 0 && (s[i-1] < '0' || s[i-1] > '9') {
		i--
	}
	numPart, unitPart := s[:i], s[i:]
	n, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, false
	}
	mult := int64(1)
	if unitPart != "" {
		m, ok := sizeUnits[unitPart]
		if !ok {
			return 0, false
		}
		mult = m
	}
	return int64(n * float64(mult)), true
}

// dateRange parses a date: value, either a single literal at one of three
// granularities (YYYY, YYYY-MM, YYYY-MM-DD) or a full RFC3339 instant, or
// a "start..end" range of two such literals, returning the half-open
// [start, end) interval it denotes. A range's bounds come from the start
// literal's own start and the end literal's own end, so "2020..2021"
// covers all of both years.
func dateRange(s string) (start, end time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, ".."); idx >= 0 {
		startLit, endLit := strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+2:])
		start, _, startOK := dateLiteral(startLit)
		_, end, endOK := dateLiteral(endLit)
		if !startOK || !endOK {
			return time.Time{}, time.Time{}, false
		}
		return start, end, true
	}
	return dateLiteral(s)
}

// dateLiteral parses a single date literal (not a range) at one of three
// granularities (YYYY, YYYY-MM, YYYY-MM-DD) or a full RFC3339 instant,
// returning the half-open [start, end) interval it denotes.
func dateLiteral(s string) (start, end time.Time, ok bool) {
	switch {
	case len(s) == 4:
		if t, err := time.Parse("2006", s); err == nil {
			return t, t.AddDate(1, 0, 0), true
		}
	case len(s) == 7:
		if t, err := time.Parse("2006-01", s); err == nil {
			return t, t.AddDate(0, 1, 0), true
		}
	case len(s) == 10:
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t, t.AddDate(0, 0, 1), true
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, t.Add(time.Second), true
	}
	return time.Time{}, time.Time{}, false
}
