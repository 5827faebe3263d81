// Package kst computes Korea Standard Time (UTC+9) day and week boundaries.
//
// KST has no daylight-saving transitions, so every conversion is fixed
// offset arithmetic in time.UTC. Results never depend on time.Local or on
// the host's tzdata.
package kst

import (
	"errors"
	"strings"
	"time"
)

// Offset is the fixed KST offset from UTC.
const Offset = 9 * time.Hour

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05"
	offsetSuffix    = "+09:00"

	day  = 24 * time.Hour
	week = 7 * day
)

// ErrInvalidDate is returned by ParseDate for unparseable input.
var ErrInvalidDate = errors.New("invalid date")

// Day is the half-open UTC interval [StartUTC, EndUTC) covering one KST
// calendar day.
type Day struct {
	StartUTC time.Time
	EndUTC   time.Time
	// LocalTimestamp is the input instant rendered with a +09:00 suffix.
	LocalTimestamp string
	// LocalDate is the KST calendar date, YYYY-MM-DD.
	LocalDate string
}

// Contains reports whether t falls inside the day.
func (d Day) Contains(t time.Time) bool {
	return !t.Before(d.StartUTC) && t.Before(d.EndUTC)
}

// Week is the half-open UTC interval [StartUTC, EndUTC) covering one
// Monday-started KST week.
type Week struct {
	StartUTC time.Time
	EndUTC   time.Time
	// WeekDate is the Monday's KST calendar date at UTC midnight. It carries
	// no meaningful time of day and is used as a date-only key.
	WeekDate time.Time
}

// Days returns the seven KST days of the week in order, Monday first.
func (w Week) Days() []Day {
	out := make([]Day, 0, 7)
	for i := 0; i < 7; i++ {
		out = append(out, DayRange(w.StartUTC.Add(time.Duration(i)*day)))
	}
	return out
}

// DayRange returns the KST day containing t.
func DayRange(t time.Time) Day {
	local := toLocalClock(t)
	midnight := localMidnight(local)
	start := midnight.Add(-Offset)
	return Day{
		StartUTC:       start,
		EndUTC:         start.Add(day),
		LocalTimestamp: local.Format(timestampLayout) + offsetSuffix,
		LocalDate:      local.Format(dateLayout),
	}
}

// WeekRange returns the Monday-started KST week containing t.
func WeekRange(t time.Time) Week {
	local := toLocalClock(t)
	sinceMonday := (int(local.Weekday()) + 6) % 7
	y, m, d := local.Date()
	monday := time.Date(y, m, d-sinceMonday, 0, 0, 0, 0, time.UTC)
	start := monday.Add(-Offset)
	return Week{
		StartUTC: start,
		EndUTC:   start.Add(week),
		WeekDate: monday,
	}
}

// Weekday returns the KST day of week of t (Sunday = 0).
func Weekday(t time.Time) time.Weekday {
	return toLocalClock(t).Weekday()
}

// LocalDate formats t as its KST calendar date.
func LocalDate(t time.Time) string {
	return toLocalClock(t).Format(dateLayout)
}

// ParseDate parses either a bare YYYY-MM-DD (taken as that KST calendar day,
// returned as its KST midnight instant) or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	if t, err := time.ParseInLocation(dateLayout, s, time.UTC); err == nil {
		return t.Add(-Offset), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, ErrInvalidDate
}

// toLocalClock shifts t so that its UTC clock fields read as KST wall time.
func toLocalClock(t time.Time) time.Time {
	return t.UTC().Add(Offset)
}

func localMidnight(local time.Time) time.Time {
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
