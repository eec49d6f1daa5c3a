package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// Type identifies the cadence of a recurrence rule.
type Type string

const (
	// TypeNone produces exactly one occurrence on the anchor date.
	TypeNone Type = "none"
	// TypeDaily produces consecutive calendar days.
	TypeDaily Type = "daily"
	// TypeWeekly produces dates whose weekday is in the rule's weekday set.
	TypeWeekly Type = "weekly"
	// TypeBiweekly produces the anchor weekday every fourteen days.
	TypeBiweekly Type = "biweekly"
	// TypeMonthly produces the anchor day-of-month, clamped to short months.
	TypeMonthly Type = "monthly"
)

// ParseType converts a wire value into a recurrence Type.
func ParseType(value string) (Type, error) {
	switch Type(value) {
	case TypeNone, TypeDaily, TypeWeekly, TypeBiweekly, TypeMonthly:
		return Type(value), nil
	case "":
		return TypeNone, nil
	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidRule, value)
	}
}

// Rule describes how a series of occurrences repeats from an anchor date.
// The end condition is exactly one of EndDate or Count when Type is not
// TypeNone.
type Rule struct {
	Type     Type
	Weekdays []time.Weekday
	EndDate  *time.Time
	Count    int
}

// ErrInvalidRule indicates a malformed recurrence configuration.
var ErrInvalidRule = errors.New("recurrence: invalid rule")

// maxOccurrences bounds a single expansion regardless of the end condition.
const maxOccurrences = 100

// Validate checks the rule's structural invariants without expanding it.
func (r Rule) Validate() error {
	switch r.Type {
	case TypeNone:
		return nil
	case TypeDaily, TypeWeekly, TypeBiweekly, TypeMonthly:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRule, r.Type)
	}

	hasEndDate := r.EndDate != nil
	hasCount := r.Count != 0
	if hasEndDate == hasCount {
		return fmt.Errorf("%w: exactly one of end date or count is required", ErrInvalidRule)
	}
	if hasCount && r.Count < 0 {
		return fmt.Errorf("%w: count must be positive", ErrInvalidRule)
	}
	if r.Type == TypeWeekly && len(r.Weekdays) == 0 {
		return fmt.Errorf("%w: weekly rules require at least one weekday", ErrInvalidRule)
	}
	for _, day := range r.Weekdays {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidRule, day)
		}
	}
	return nil
}

// Expand materializes the rule into an ordered list of civil dates starting
// at the anchor. Dates are normalized to midnight UTC. The anchor itself is
// included except for weekly rules whose weekday set excludes it.
func Expand(anchor time.Time, rule Rule) ([]time.Time, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	anchor = DateOf(anchor)
	if rule.Type == TypeNone {
		return []time.Time{anchor}, nil
	}

	limit := rule.Count
	if limit <= 0 || limit > maxOccurrences {
		limit = maxOccurrences
	}

	var dates []time.Time
	switch rule.Type {
	case TypeDaily:
		for d := anchor; len(dates) < limit && withinEnd(d, rule.EndDate); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d)
		}
	case TypeWeekly:
		set := weekdaySet(rule.Weekdays)
		for d := anchor; len(dates) < limit && withinEnd(d, rule.EndDate); d = d.AddDate(0, 0, 1) {
			if _, ok := set[d.Weekday()]; ok {
				dates = append(dates, d)
			}
		}
	case TypeBiweekly:
		for d := anchor; len(dates) < limit && withinEnd(d, rule.EndDate); d = d.AddDate(0, 0, 14) {
			dates = append(dates, d)
		}
	case TypeMonthly:
		for i := 0; len(dates) < limit; i++ {
			d := addMonthsClamped(anchor, i)
			if !withinEnd(d, rule.EndDate) {
				break
			}
			dates = append(dates, d)
		}
	}

	return dates, nil
}

// DateOf truncates a timestamp to its civil date at midnight UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func withinEnd(d time.Time, end *time.Time) bool {
	if end == nil {
		return true
	}
	return !d.After(DateOf(*end))
}

func weekdaySet(days []time.Weekday) map[time.Weekday]struct{} {
	set := make(map[time.Weekday]struct{}, len(days))
	for _, day := range days {
		set[day] = struct{}{}
	}
	return set
}

// addMonthsClamped advances the anchor by the given number of calendar
// months, clamping the day-of-month to the target month's last day. Plain
// AddDate would roll an out-of-range day into the following month.
func addMonthsClamped(anchor time.Time, months int) time.Time {
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	day := anchor.Day()
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
}
