package model

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date layout used everywhere in the league.
const DateLayout = "2006-01-02"

// Date is a calendar date without time or zone, formatted YYYY-MM-DD.
// Lexicographic order equals chronological order.
type Date string

// DateOf returns the wall-clock calendar date of t in t's own location.
// It never converts through UTC, so an event recorded late in the evening
// stays on the local day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date(fmt.Sprintf("%04d-%02d-%02d", y, int(m), d))
}

// ParseDate validates a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil || t.Format(DateLayout) != s {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date(s), nil
}

// In returns local midnight of the date in loc.
func (d Date) In(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, string(d), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, string(d))
	}
	return t, nil
}

func (d Date) String() string { return string(d) }
