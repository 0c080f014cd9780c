// Package domain holds the core data types and input validators of the bot.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidDate indicates a birth date that is not a real DD.MM.YYYY calendar date.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidClock indicates a time of day that is not a valid 24-hour HH:MM value.
	ErrInvalidClock = errors.New("invalid time")
	// ErrEmptyText indicates a required free-text field that is empty after trimming.
	ErrEmptyText = errors.New("empty text")
)

const (
	inputDateLayout = "02.01.2006"
	isoDateLayout   = "2006-01-02"
	clockLayout     = "15:04"
)

// ParseBirthDate parses a DD.MM.YYYY user input and returns the ISO form.
func ParseBirthDate(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	// time.Parse rejects impossible dates such as 31.02.2020 or month 13,
	// which is exactly the calendar validation the dialogue needs.
	t, err := time.Parse(inputDateLayout, trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, trimmed)
	}
	return t.Format(isoDateLayout), nil
}

// FormatBirthDate renders a stored ISO date back in the DD.MM.YYYY form
// shown to users. Invalid stored values are returned unchanged.
func FormatBirthDate(iso string) string {
	t, err := time.Parse(isoDateLayout, iso)
	if err != nil {
		return iso
	}
	return t.Format(inputDateLayout)
}

// ParseClock parses an HH:MM 24-hour time of day and returns it normalized
// to zero-padded HH:MM. Used for both birth time and daily message time.
func ParseClock(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	t, err := time.Parse(clockLayout, trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidClock, trimmed)
	}
	return t.Format(clockLayout), nil
}

// ClockParts splits a normalized HH:MM value into hour and minute.
func ClockParts(clock string) (hour, minute int, err error) {
	t, err := time.Parse(clockLayout, clock)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
	}
	return t.Hour(), t.Minute(), nil
}

// ParseText validates a free-text field (name, birth place) and returns the
// trimmed value.
func ParseText(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", ErrEmptyText
	}
	return trimmed, nil
}
