package models

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates
const DateLayout = "2006-01-02"

// DateOf returns the calendar date of t in loc as midnight UTC. Streak
// comparisons work on these values only.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a calendar date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// DaysBetween returns the number of calendar days from a to b
func DaysBetween(a, b time.Time) int {
	a = DateOf(a, time.UTC)
	b = DateOf(b, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
