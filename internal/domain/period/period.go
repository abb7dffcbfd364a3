// Package period implements the billing calendar: ten-day cycles starting on
// the 1st, 11th and 21st of every month. The last cycle of a month runs to the
// month's final day, so it spans 8 to 11 days.
//
// All functions work on wall-clock dates in the location of their argument;
// no timezone conversion happens.
package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage and URL representation of calendar dates.
const DateLayout = "2006-01-02"

// ErrInvalidStart is returned when a date is not a billing period boundary.
var ErrInvalidStart = errors.New("period start must be the 1st, 11th or 21st of a month")

const endOfDay = 23*time.Hour + 59*time.Minute + 59*time.Second + 999*time.Millisecond

// IsStart reports whether t falls on a period boundary day.
func IsStart(t time.Time) bool {
	switch t.Day() {
	case 1, 11, 21:
		return true
	}
	return false
}

// Validate returns ErrInvalidStart unless t is a period boundary day.
func Validate(t time.Time) error {
	if t.IsZero() || !IsStart(t) {
		return fmt.Errorf("%s: %w", Format(t), ErrInvalidStart)
	}
	return nil
}

// CurrentStart returns midnight of the latest period boundary on or before today.
func CurrentStart(today time.Time) time.Time {
	day := 1
	switch d := today.Day(); {
	case d >= 21:
		day = 21
	case d >= 11:
		day = 11
	}
	return time.Date(today.Year(), today.Month(), day, 0, 0, 0, 0, today.Location())
}

// End returns the last instant (23:59:59.999) of the period starting at start.
// It returns the zero Time when start is not a boundary.
func End(start time.Time) time.Time {
	var last time.Time
	switch start.Day() {
	case 1:
		last = time.Date(start.Year(), start.Month(), 10, 0, 0, 0, 0, start.Location())
	case 11:
		last = time.Date(start.Year(), start.Month(), 20, 0, 0, 0, 0, start.Location())
	case 21:
		// Day 0 of the next month normalizes to the last day of this one.
		last = time.Date(start.Year(), start.Month()+1, 0, 0, 0, 0, 0, start.Location())
	default:
		return time.Time{}
	}
	return last.Add(endOfDay)
}

// PreviousStart returns the start of the period before the one starting at start.
func PreviousStart(start time.Time) time.Time {
	y, m, loc := start.Year(), start.Month(), start.Location()
	switch start.Day() {
	case 1:
		return time.Date(y, m-1, 21, 0, 0, 0, 0, loc)
	case 11:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case 21:
		return time.Date(y, m, 11, 0, 0, 0, 0, loc)
	}
	return time.Time{}
}

// NextStart returns the start of the period after the one starting at start.
func NextStart(start time.Time) time.Time {
	y, m, loc := start.Year(), start.Month(), start.Location()
	switch start.Day() {
	case 1:
		return time.Date(y, m, 11, 0, 0, 0, 0, loc)
	case 11:
		return time.Date(y, m, 21, 0, 0, 0, 0, loc)
	case 21:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	}
	return time.Time{}
}

// Midnight truncates t to the start of its calendar day.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Days lists every calendar day from start through until, both inclusive,
// at midnight. It returns nil when until precedes start.
func Days(start, until time.Time) []time.Time {
	first, last := Midnight(start), Midnight(until)
	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Format renders t as YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(DateLayout)
}

// Parse reads a YYYY-MM-DD date, or the date part of an ISO-8601 timestamp,
// as midnight in loc.
func Parse(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	datePart, _, _ := strings.Cut(strings.TrimSpace(value), "T")
	t, err := time.ParseInLocation(DateLayout, datePart, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t, nil
}

// ParseStart parses value and checks it is a period boundary.
func ParseStart(value string, loc *time.Location) (time.Time, error) {
	t, err := Parse(value, loc)
	if err != nil {
		return time.Time{}, err
	}
	if err := Validate(t); err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// Window is a period's boundaries and its neighbours, as served to clients.
type Window struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Previous string `json:"previous"`
	Next     string `json:"next"`
}

// WindowFor describes the period starting at start.
func WindowFor(start time.Time) Window {
	return Window{
		Start:    Format(start),
		End:      Format(End(start)),
		Previous: Format(PreviousStart(start)),
		Next:     Format(NextStart(start)),
	}
}
