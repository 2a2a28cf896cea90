package filter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// numRange is a set of amounts. Unset ends are unbounded.
type numRange struct {
	min, max         float64
	hasMin, hasMax   bool
	minExcl, maxExcl bool
}

func (r numRange) contains(v float64) bool {
	if r.hasMin && (v < r.min || (r.minExcl && v == r.min)) {
		return false
	}
	if r.hasMax && (v > r.max || (r.maxExcl && v == r.max)) {
		return false
	}
	return true
}

// timeRange is the half-open interval [from, to). Zero ends are unbounded.
type timeRange struct {
	from, to time.Time
}

func (r timeRange) contains(t time.Time) bool {
	if !r.from.IsZero() && t.Before(r.from) {
		return false
	}
	if !r.to.IsZero() && !t.Before(r.to) {
		return false
	}
	return true
}

// splitOp separates a leading comparison operator from the operand.
func splitOp(v string) (op, operand string) {
	for _, candidate := range []string{">=", "<=", ">", "<", "="} {
		if strings.HasPrefix(v, candidate) {
			return candidate, strings.TrimSpace(v[len(candidate):])
		}
	}
	return "", v
}

// parseAmount reads "10", ">10", ">=10", "<10", "<=10", "=10", "10..20",
// "10.." and "..20". Commas are ignored.
func parseAmount(v string) (numRange, error) {
	op, operand := splitOp(v)
	if op == "" {
		if lo, hi, ok := strings.Cut(v, ".."); ok {
			return parseAmountRange(v, lo, hi)
		}
	}

	n, err := parseNumber(operand)
	if err != nil {
		return numRange{}, fmt.Errorf("%w: amount %q", ErrInvalidValue, v)
	}

	switch op {
	case ">":
		return numRange{min: n, hasMin: true, minExcl: true}, nil
	case ">=":
		return numRange{min: n, hasMin: true}, nil
	case "<":
		return numRange{max: n, hasMax: true, maxExcl: true}, nil
	case "<=":
		return numRange{max: n, hasMax: true}, nil
	default:
		return numRange{min: n, max: n, hasMin: true, hasMax: true}, nil
	}
}

func parseAmountRange(v, lo, hi string) (numRange, error) {
	var r numRange
	if lo == "" && hi == "" {
		return r, fmt.Errorf("%w: amount %q", ErrInvalidValue, v)
	}
	if lo != "" {
		n, err := parseNumber(lo)
		if err != nil {
			return r, fmt.Errorf("%w: amount %q", ErrInvalidValue, v)
		}
		r.min, r.hasMin = n, true
	}
	if hi != "" {
		n, err := parseNumber(hi)
		if err != nil {
			return r, fmt.Errorf("%w: amount %q", ErrInvalidValue, v)
		}
		r.max, r.hasMax = n, true
	}
	return r, nil
}

// parseNumber reads a finite amount. NaN and infinities are rejected since
// SQL and in-memory comparisons would disagree on them.
func parseNumber(s string) (float64, error) {
	n, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, errors.New("amount must be finite")
	}
	return n, nil
}

// dateLayouts are tried in order; each denotes an interval of one unit.
var dateLayouts = []struct {
	layout string
	next   func(time.Time) time.Time
}{
	{time.DateOnly, func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }},
	{"2006-01", func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }},
	{"2006", func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }},
}

// parsePeriod reads a year, month or day as a half-open interval.
func parsePeriod(s string, loc *time.Location) (start, end time.Time, err error) {
	for _, l := range dateLayouts {
		if t, err := time.ParseInLocation(l.layout, s, loc); err == nil {
			return t, l.next(t), nil
		}
	}
	return time.Time{}, time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// parseDate reads a date condition: a period ("2024", "2024-03",
// "2024-03-15"), a period with a comparison operator, or a range of periods
// "a..b" with either end optional.
func parseDate(v string, loc *time.Location) (timeRange, error) {
	op, operand := splitOp(v)
	if op == "" {
		if lo, hi, ok := strings.Cut(v, ".."); ok {
			return parseDateRange(v, lo, hi, loc)
		}
	}

	start, end, err := parsePeriod(operand, loc)
	if err != nil {
		return timeRange{}, fmt.Errorf("%w: date %q", ErrInvalidValue, v)
	}

	switch op {
	case ">":
		return timeRange{from: end}, nil
	case ">=":
		return timeRange{from: start}, nil
	case "<":
		return timeRange{to: start}, nil
	case "<=":
		return timeRange{to: end}, nil
	default:
		return timeRange{from: start, to: end}, nil
	}
}

func parseDateRange(v, lo, hi string, loc *time.Location) (timeRange, error) {
	var r timeRange
	if lo == "" && hi == "" {
		return r, fmt.Errorf("%w: date %q", ErrInvalidValue, v)
	}
	if lo != "" {
		start, _, err := parsePeriod(strings.TrimSpace(lo), loc)
		if err != nil {
			return r, fmt.Errorf("%w: date %q", ErrInvalidValue, v)
		}
		r.from = start
	}
	if hi != "" {
		_, end, err := parsePeriod(strings.TrimSpace(hi), loc)
		if err != nil {
			return r, fmt.Errorf("%w: date %q", ErrInvalidValue, v)
		}
		r.to = end
	}
	return r, nil
}

// timestampLayouts are the formats transactions are recorded with.
var timestampLayouts = []string{time.RFC3339Nano, time.DateTime, time.DateOnly}

// ParseTimestamp reads a stored transaction timestamp. Layouts without a zone
// are read in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDateRange reads a date value the way date fields do and returns the
// half-open interval [from, to). A zero bound is open.
func ParseDateRange(v string, loc *time.Location) (from, to time.Time, err error) {
	if loc == nil {
		loc = time.UTC
	}
	r, err := parseDate(v, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return r.from, r.to, nil
}
