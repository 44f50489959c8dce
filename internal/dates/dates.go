// Package dates parses human-readable date-range expressions for the
// date() and committerdate() revset filters. Supported forms:
//
//	2024-01-15                 that day
//	"since 100 days ago"       open-ended lower bound
//	"before 2024-01-15"        open-ended upper bound
//	"2024-01-01 to 2024-02-01" closed range
//	"3 days ago", "yesterday"  relative points
//
// Absolute dates are handled by the dateparse library and accept most
// common layouts.
package dates

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ErrBadRange reports an unparsable range expression.
var ErrBadRange = errors.New("unparsable date range")

// Range is a half-open interval [Start, End) of unix seconds. Open ends
// are represented by the extreme int64 values.
type Range struct {
	Start int64
	End   int64
}

// ContainsUnix reports whether the unix timestamp t falls inside the
// range.
func (r Range) ContainsUnix(t int64) bool {
	return t >= r.Start && t < r.End
}

// ParseRange parses expr relative to the current time.
func ParseRange(expr string) (Range, error) {
	return ParseRangeAt(expr, time.Now())
}

// ParseRangeAt parses expr relative to the given reference time.
func ParseRangeAt(expr string, now time.Time) (Range, error) {
	s := strings.TrimSpace(expr)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "since "), strings.HasPrefix(lower, "after "):
		p, err := parsePoint(s[6:], now)
		if err != nil {
			return Range{}, err
		}
		return Range{Start: p.start, End: math.MaxInt64}, nil
	case strings.HasPrefix(lower, "before "):
		// Exclusive: "before 2024-01-15" ends where that day begins.
		p, err := parsePoint(s[7:], now)
		if err != nil {
			return Range{}, err
		}
		return Range{Start: math.MinInt64, End: p.start}, nil
	case strings.HasPrefix(lower, "until "):
		p, err := parsePoint(s[6:], now)
		if err != nil {
			return Range{}, err
		}
		return Range{Start: math.MinInt64, End: p.end}, nil
	}
	if i := strings.Index(lower, " to "); i >= 0 {
		from, err := parsePoint(s[:i], now)
		if err != nil {
			return Range{}, err
		}
		to, err := parsePoint(s[i+4:], now)
		if err != nil {
			return Range{}, err
		}
		if to.end < from.start {
			return Range{}, fmt.Errorf("%w: %q ends before it starts", ErrBadRange, expr)
		}
		return Range{Start: from.start, End: to.end}, nil
	}
	p, err := parsePoint(s, now)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: p.start, End: p.end}, nil
}

// point is a moment widened to its stated granularity: a bare date spans
// the whole day, a timestamp with a clock spans one second.
type point struct {
	start int64
	end   int64
}

func parsePoint(s string, now time.Time) (point, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return point{}, fmt.Errorf("%w: empty date", ErrBadRange)
	}
	lower := strings.ToLower(s)

	switch lower {
	case "now":
		t := now.Unix()
		return point{start: t, end: t + 1}, nil
	case "today":
		d := startOfDay(now)
		return point{start: d.Unix(), end: d.AddDate(0, 0, 1).Unix()}, nil
	case "yesterday":
		d := startOfDay(now).AddDate(0, 0, -1)
		return point{start: d.Unix(), end: d.AddDate(0, 0, 1).Unix()}, nil
	}

	if t, granularity, ok := parseAgo(lower, now); ok {
		if granularity >= 24*time.Hour {
			d := startOfDay(t)
			return point{start: d.Unix(), end: d.AddDate(0, 0, 1).Unix()}, nil
		}
		return point{start: t.Unix(), end: t.Unix() + 1}, nil
	}

	t, err := dateparse.ParseAny(s)
	if err != nil {
		return point{}, fmt.Errorf("%w: %q", ErrBadRange, s)
	}
	if strings.Contains(s, ":") {
		return point{start: t.Unix(), end: t.Unix() + 1}, nil
	}
	d := startOfDay(t)
	return point{start: d.Unix(), end: d.AddDate(0, 0, 1).Unix()}, nil
}

// parseAgo handles "N <unit>[s] ago" phrases.
func parseAgo(s string, now time.Time) (time.Time, time.Duration, bool) {
	fields := strings.Fields(s)
	if len(fields) != 3 || fields[2] != "ago" {
		return time.Time{}, 0, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return time.Time{}, 0, false
	}
	unit := strings.TrimSuffix(fields[1], "s")
	switch unit {
	case "second":
		return now.Add(-time.Duration(n) * time.Second), time.Second, true
	case "minute":
		return now.Add(-time.Duration(n) * time.Minute), time.Minute, true
	case "hour":
		return now.Add(-time.Duration(n) * time.Hour), time.Hour, true
	case "day":
		return now.AddDate(0, 0, -n), 24 * time.Hour, true
	case "week":
		return now.AddDate(0, 0, -7*n), 24 * time.Hour, true
	case "month":
		return now.AddDate(0, -n, 0), 24 * time.Hour, true
	case "year":
		return now.AddDate(-n, 0, 0), 24 * time.Hour, true
	}
	return time.Time{}, 0, false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
