package recurrence

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpand_None(t *testing.T) {
	t.Parallel()

	anchor := date(2024, time.January, 1)
	dates, err := Expand(anchor, Rule{Type: TypeNone})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dates) != 1 || !dates[0].Equal(anchor) {
		t.Fatalf("expected a single anchor date, got %v", dates)
	}
}

func TestExpand_DailyWithCount(t *testing.T) {
	t.Parallel()

	anchor := date(2024, time.January, 1)
	dates, err := Expand(anchor, Rule{Type: TypeDaily, Count: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dates) != 5 {
		t.Fatalf("expected 5 dates, got %d", len(dates))
	}
	for i, d := range dates {
		if want := anchor.AddDate(0, 0, i); !d.Equal(want) {
			t.Fatalf("date %d: expected %v, got %v", i, want, d)
		}
	}
}

func TestExpand_DailyWithEndDate(t *testing.T) {
	t.Parallel()

	anchor := date(2024, time.January, 1)
	end := date(2024, time.January, 4)
	dates, err := Expand(anchor, Rule{Type: TypeDaily, EndDate: &end})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dates) != 4 {
		t.Fatalf("expected 4 dates inclusive of end date, got %d", len(dates))
	}
	last := dates[len(dates)-1]
	if !last.Equal(end) {
		t.Fatalf("expected last date %v, got %v", end, last)
	}
	if next := last.AddDate(0, 0, 1); !next.After(end) {
		t.Fatalf("cadence successor %v should exceed end date %v", next, end)
	}
}

func TestExpand_WeeklySelectsConfiguredWeekdays(t *testing.T) {
	t.Parallel()

	// Monday 2024-01-01, Monday+Wednesday, four occurrences.
	anchor := date(2024, time.January, 1)
	dates, err := Expand(anchor, Rule{
		Type:     TypeWeekly,
		Weekdays: []time.Weekday{time.Monday, time.Wednesday},
		Count:    4,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []time.Time{
		date(2024, time.January, 1),
		date(2024, time.January, 3),
		date(2024, time.January, 8),
		date(2024, time.January, 10),
	}
	if len(dates) != len(want) {
		t.Fatalf("expected %d dates, got %v", len(want), dates)
	}
	for i := range want {
		if !dates[i].Equal(want[i]) {
			t.Fatalf("date %d: expected %v, got %v", i, want[i], dates[i])
		}
		if day := dates[i].Weekday(); day != time.Monday && day != time.Wednesday {
			t.Fatalf("date %v has weekday %v outside the configured set", dates[i], day)
		}
	}
}

func TestExpand_WeeklySkipsAnchorOutsideSet(t *testing.T) {
	t.Parallel()

	// Monday anchor with a Friday-only rule starts on the following Friday.
	anchor := date(2024, time.January, 1)
	dates, err := Expand(anchor, Rule{
		Type:     TypeWeekly,
		Weekdays: []time.Weekday{time.Friday},
		Count:    2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Time{date(2024, time.January, 5), date(2024, time.January, 12)}
	if len(dates) != 2 || !dates[0].Equal(want[0]) || !dates[1].Equal(want[1]) {
		t.Fatalf("expected %v, got %v", want, dates)
	}
}

func TestExpand_BiweeklyKeepsAnchorWeekday(t *testing.T) {
	t.Parallel()

	anchor := date(2024, time.January, 2) // Tuesday
	dates, err := Expand(anchor, Rule{Type: TypeBiweekly, Count: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Time{
		date(2024, time.January, 2),
		date(2024, time.January, 16),
		date(2024, time.January, 30),
	}
	for i := range want {
		if !dates[i].Equal(want[i]) {
			t.Fatalf("date %d: expected %v, got %v", i, want[i], dates[i])
		}
		if dates[i].Weekday() != time.Tuesday {
			t.Fatalf("date %v lost the anchor weekday", dates[i])
		}
	}
}

func TestExpand_MonthlyClampsShortMonths(t *testing.T) {
	t.Parallel()

	anchor := date(2024, time.January, 31)
	dates, err := Expand(anchor, Rule{Type: TypeMonthly, Count: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Time{
		date(2024, time.January, 31),
		date(2024, time.February, 29), // leap year clamp
		date(2024, time.March, 31),
		date(2024, time.April, 30),
	}
	if len(dates) != len(want) {
		t.Fatalf("expected %d dates, got %v", len(want), dates)
	}
	for i := range want {
		if !dates[i].Equal(want[i]) {
			t.Fatalf("date %d: expected %v, got %v", i, want[i], dates[i])
		}
	}
}

func TestExpand_CountProducesExactCardinality(t *testing.T) {
	t.Parallel()

	anchor := date(2024, time.March, 4)
	rules := []Rule{
		{Type: TypeDaily, Count: 7},
		{Type: TypeWeekly, Weekdays: []time.Weekday{time.Monday}, Count: 6},
		{Type: TypeBiweekly, Count: 5},
		{Type: TypeMonthly, Count: 3},
	}
	for _, rule := range rules {
		dates, err := Expand(anchor, rule)
		if err != nil {
			t.Fatalf("rule %v: unexpected error: %v", rule.Type, err)
		}
		if len(dates) != rule.Count {
			t.Fatalf("rule %v: expected %d dates, got %d", rule.Type, rule.Count, len(dates))
		}
		for i := 1; i < len(dates); i++ {
			if !dates[i].After(dates[i-1]) {
				t.Fatalf("rule %v: dates not strictly ascending: %v", rule.Type, dates)
			}
		}
	}
}

func TestExpand_CapsRunawayRules(t *testing.T) {
	t.Parallel()

	end := date(2034, time.January, 1)
	dates, err := Expand(date(2024, time.January, 1), Rule{Type: TypeDaily, EndDate: &end})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dates) != maxOccurrences {
		t.Fatalf("expected cap at %d occurrences, got %d", maxOccurrences, len(dates))
	}
}

func TestExpand_InvalidRules(t *testing.T) {
	t.Parallel()

	end := date(2024, time.June, 1)
	cases := map[string]Rule{
		"no end condition":       {Type: TypeDaily},
		"both end conditions":    {Type: TypeDaily, EndDate: &end, Count: 3},
		"negative count":         {Type: TypeMonthly, Count: -1},
		"weekly without days":    {Type: TypeWeekly, Count: 4},
		"weekday out of range":   {Type: TypeWeekly, Weekdays: []time.Weekday{8}, Count: 4},
		"unknown frequency type": {Type: Type("hourly"), Count: 4},
	}

	for name, rule := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Expand(date(2024, time.January, 1), rule)
			if !errors.Is(err, ErrInvalidRule) {
				t.Fatalf("expected ErrInvalidRule, got %v", err)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	t.Parallel()

	for _, value := range []string{"none", "daily", "weekly", "biweekly", "monthly"} {
		parsed, err := ParseType(value)
		if err != nil {
			t.Fatalf("ParseType(%q): unexpected error: %v", value, err)
		}
		if string(parsed) != value {
			t.Fatalf("ParseType(%q) = %q", value, parsed)
		}
	}

	if parsed, err := ParseType(""); err != nil || parsed != TypeNone {
		t.Fatalf("empty value should parse as none, got %q, %v", parsed, err)
	}

	if _, err := ParseType("hourly"); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule for unknown type, got %v", err)
	}
}
