package domain

import (
	"fmt"
	"time"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

const day = 24 * time.Hour

// DateOf returns the calendar date of t as observed in loc, stored as midnight UTC.
// All plan, session and invoice dates are kept in this form so they compare
// without any timezone arithmetic.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today is DateOf(now, loc).
func Today(now time.Time, loc *time.Location) time.Time {
	return DateOf(now, loc)
}

// NormalizeDate truncates a date that may carry a time component.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a calendar date by n days.
func AddDays(date time.Time, n int) time.Time {
	return NormalizeDate(date).AddDate(0, 0, n)
}

// DaysBetween is the whole number of calendar days from a to b (negative when b is before a).
func DaysBetween(a, b time.Time) int {
	return int(NormalizeDate(b).Sub(NormalizeDate(a)) / day)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// LoadLocation loads an IANA timezone, returning fallback for an empty name.
func LoadLocation(name string, fallback *time.Location) (*time.Location, error) {
	if name == "" {
		if fallback == nil {
			return time.UTC, nil
		}
		return fallback, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// DatePtr is a convenience for optional date fields.
func DatePtr(t time.Time) *time.Time {
	d := NormalizeDate(t)
	return &d
}
