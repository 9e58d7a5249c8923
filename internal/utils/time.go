package utils

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used in requests, keys and file names
const DateLayout = "2006-01-02"

// FormatDate formats a time.Time as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a date string in YYYY-MM-DD format
func ParseDate(dateStr string) (time.Time, error) {
	return time.Parse(DateLayout, dateStr)
}

// NormalizeDate parses and re-formats a date so "2024-1-5" style inputs are
// rejected and every key in the system has the same canonical form
func NormalizeDate(dateStr string) (string, error) {
	t, err := ParseDate(dateStr)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", dateStr)
	}
	return FormatDate(t), nil
}

// DayRange returns the [start, end) bounds of the given day in UTC
func DayRange(date time.Time) (start time.Time, end time.Time) {
	start = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
