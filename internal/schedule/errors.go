package schedule

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when an occurrence, series, or attendance row
	// does not exist.
	ErrNotFound = errors.New("schedule: not found")
	// ErrForbidden is returned when the principal lacks the required
	// permission or group membership.
	ErrForbidden = errors.New("schedule: forbidden")
	// ErrTerminal is returned when a structural mutation targets a completed
	// or cancelled occurrence.
	ErrTerminal = errors.New("schedule: occurrence is completed or cancelled")
	// ErrConflict is returned when a series-wide rewrite loses the race
	// against a concurrent rewrite of the same series.
	ErrConflict = errors.New("schedule: series changed concurrently")
)

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

func validateOccurrenceCore(input OccurrenceInput, vErr *ValidationError) {
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if input.Date.IsZero() {
		vErr.add("date", "date is required")
	}
	if !validClockTime(input.StartTime) {
		vErr.add("start_time", "start time must be HH:MM")
	}
	if input.EndTime != nil {
		switch {
		case !validClockTime(*input.EndTime):
			vErr.add("end_time", "end time must be HH:MM")
		case validClockTime(input.StartTime) && *input.EndTime <= input.StartTime:
			vErr.add("end_time", "end time must be after start time")
		}
	}
	if input.MinimumMembers < 1 {
		vErr.add("minimum_members", "minimum members must be at least 1")
	}
}

// validClockTime accepts zero-padded 24h "HH:MM" strings, so that lexical
// comparison of two valid values matches temporal order.
func validClockTime(value string) bool {
	if len(value) != 5 {
		return false
	}
	_, err := time.Parse("15:04", value)
	return err == nil
}
