// Package dates holds calendar-date helpers. Expiry logic compares whole days
// only, so every date in the engine is normalised to midnight UTC of its
// calendar day before any arithmetic.
package dates

import "time"

const day = 24 * time.Hour

// Day returns midnight UTC of t's calendar day, read in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the calendar day of now as seen in loc (UTC when loc is nil).
func Today(now time.Time, loc *time.Location) time.Time {
	if loc != nil {
		now = now.In(loc)
	}
	return Day(now)
}

// AddDays shifts a calendar date by n days.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// DaysBetween returns the whole number of days from `from` to `to`; negative
// when `to` is earlier.
func DaysBetween(from, to time.Time) int {
	return int(Day(to).Sub(Day(from)) / day)
}

// Before reports whether a's calendar day precedes b's.
func Before(a, b time.Time) bool {
	return Day(a).Before(Day(b))
}

// After reports whether a's calendar day follows b's.
func After(a, b time.Time) bool {
	return Day(a).After(Day(b))
}

// Equal reports whether a and b fall on the same calendar day.
func Equal(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// Parse reads an ISO-8601 calendar date (2006-01-02).
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}
