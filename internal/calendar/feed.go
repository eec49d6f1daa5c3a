// Package calendar renders schedule occurrences as an iCalendar feed so
// members can subscribe from their own calendar clients.
package calendar

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/example/raid-scheduler/internal/schedule"
)

const prodID = "-//raid-scheduler//schedule feed//EN"

// Feed serializes the given occurrences into a VCALENDAR document. Times
// are emitted in UTC from the occurrence's civil date and clock times.
func Feed(occurrences []schedule.Occurrence) (string, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(prodID)

	for _, occ := range occurrences {
		start, err := eventTime(occ.Date, occ.StartTime)
		if err != nil {
			return "", fmt.Errorf("occurrence %s: %w", occ.ID, err)
		}

		event := cal.AddEvent(occ.ID)
		event.SetSummary(summary(occ))
		event.SetStartAt(start)
		if occ.EndTime != nil {
			end, err := eventTime(occ.Date, *occ.EndTime)
			if err != nil {
				return "", fmt.Errorf("occurrence %s: %w", occ.ID, err)
			}
			event.SetEndAt(end)
		}
		if occ.Description != "" {
			event.SetDescription(occ.Description)
		}
		event.SetDtStampTime(occ.UpdatedAt.UTC())
		event.SetStatus(eventStatus(occ))
	}

	return cal.Serialize(), nil
}

func summary(occ schedule.Occurrence) string {
	if occ.Target == "" {
		return occ.Title
	}
	return fmt.Sprintf("%s (%s)", occ.Title, occ.Target)
}

func eventStatus(occ schedule.Occurrence) ics.ObjectStatus {
	switch {
	case occ.Cancelled:
		return ics.ObjectStatusCancelled
	case occ.Confirmed:
		return ics.ObjectStatusConfirmed
	default:
		return ics.ObjectStatusTentative
	}
}

func eventTime(date time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock time %q: %w", clock, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, time.UTC), nil
}
