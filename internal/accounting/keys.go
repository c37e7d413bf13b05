package accounting

import (
	"fmt"
	"time"
)

// DateKeyFormat is the layout of a date key.
const DateKeyFormat = "2006-01-02"

// DateKeyOf returns the calendar date of t in zone as YYYY-MM-DD.
// A nil zone means UTC.
func DateKeyOf(t time.Time, zone *time.Location) string {
	return inZone(t, zone).Format(DateKeyFormat)
}

// ISOWeekKeyOf returns the ISO-8601 week of t in zone as YYYY-Www.
// Week 1 is the week containing January 4th; the year is the ISO year,
// which differs from the calendar year around the new year.
func ISOWeekKeyOf(t time.Time, zone *time.Location) string {
	year, week := inZone(t, zone).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// ParseDateKey validates a YYYY-MM-DD date key and returns it normalized.
func ParseDateKey(s string) (string, error) {
	d, err := time.Parse(DateKeyFormat, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q want format %q: %w", s, DateKeyFormat, err)
	}
	return d.Format(DateKeyFormat), nil
}

func inZone(t time.Time, zone *time.Location) time.Time {
	if zone == nil {
		return t.UTC()
	}
	return t.In(zone)
}
