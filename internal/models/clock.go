package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay bounds every valid minutes-since-midnight value
const MinutesPerDay = 24 * 60

// Variant selects the weekday or weekend/holiday timetable
type Variant string

const (
	Weekday Variant = "weekday"
	Weekend Variant = "weekend"
)

// Classify maps a calendar date to its timetable variant. Public holidays are
// not known here, so a holiday on a weekday still gets the weekday timetable.
func Classify(date time.Time) Variant {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return Weekend
	default:
		return Weekday
	}
}

// FormatError reports a time-of-day string that is not HH:MM
type FormatError struct {
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid time %q: %s", e.Value, e.Reason)
}

// TimeToMinutes converts "HH:MM" into minutes since midnight
func TimeToMinutes(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, &FormatError{Value: s, Reason: "expected HH:MM"}
	}

	h, err := clockField(hh)
	if err != nil {
		return 0, &FormatError{Value: s, Reason: "hour " + err.Error()}
	}
	m, err := clockField(mm)
	if err != nil {
		return 0, &FormatError{Value: s, Reason: "minute " + err.Error()}
	}

	if h > 23 {
		return 0, &FormatError{Value: s, Reason: "hour out of range"}
	}
	if m > 59 {
		return 0, &FormatError{Value: s, Reason: "minute out of range"}
	}

	return h*60 + m, nil
}

func clockField(s string) (int, error) {
	if len(s) == 0 || len(s) > 2 {
		return 0, fmt.Errorf("must have one or two digits")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("must be numeric")
		}
	}
	return strconv.Atoi(s)
}

// MinutesToTime formats minutes since midnight as zero-padded "HH:MM"
func MinutesToTime(minutes int) string {
	minutes = ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ClockMinutes returns the wall-clock minutes since midnight of t in its own zone
func ClockMinutes(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
