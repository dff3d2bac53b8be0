package validator

import (
	"errors"
	"strings"
	"time"
)

const (
	// DateLayout is the wire format of calendar dates
	DateLayout = "2006-01-02"
	// TimeLayout is the wire format of wall-clock times
	TimeLayout = "15:04"
)

var (
	ErrInvalidDate = errors.New("date must be in YYYY-MM-DD format")
	ErrInvalidTime = errors.New("time must be in HH:MM 24-hour format")
	ErrPastDate    = errors.New("date cannot be in the past")
	ErrDateTooFar  = errors.New("date is too far in the future")
)

// ParseDate parses a YYYY-MM-DD date. The result is midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// ParseClock parses an HH:MM time of day and returns it normalized
func ParseClock(s string) (string, error) {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(s))
	if err != nil {
		return "", ErrInvalidTime
	}
	return t.Format(TimeLayout), nil
}

// ValidateBookingDate checks that date is today or later relative to now and at
// most maxDaysAhead days away. maxDaysAhead <= 0 disables the upper bound.
// Returns the normalized date string.
func ValidateBookingDate(date string, now time.Time, maxDaysAhead int) (string, error) {
	d, err := ParseDate(date)
	if err != nil {
		return "", err
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if d.Before(today) {
		return "", ErrPastDate
	}
	if maxDaysAhead > 0 && d.After(today.AddDate(0, 0, maxDaysAhead)) {
		return "", ErrDateTooFar
	}
	return d.Format(DateLayout), nil
}
