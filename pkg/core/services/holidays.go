package services

import (
	"time"

	"github.com/rickar/cal"
)

var holidays = newHolidayCalendar()

func newHolidayCalendar() *cal.Calendar {
	c := &cal.Calendar{Observed: cal.ObservedExact}
	cal.AddUsHolidays(c)
	return c
}

// withoutHolidays drops occurrences whose local date is a US federal holiday
func withoutHolidays(occurrences []time.Time, loc *time.Location) []time.Time {
	kept := make([]time.Time, 0, len(occurrences))
	for _, t := range occurrences {
		if holidays.IsHoliday(t.In(loc)) {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}
