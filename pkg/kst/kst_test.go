package kst

import (
	"testing"
	"time"
)

func TestDayRange(t *testing.T) {
	tests := []struct {
		name      string
		instant   time.Time
		wantStart time.Time
		wantDate  string
		wantStamp string
	}{
		{
			name:      "late evening kst stays on same day",
			instant:   time.Date(2025, 9, 1, 14, 59, 59, 0, time.UTC),
			wantStart: time.Date(2025, 8, 31, 15, 0, 0, 0, time.UTC),
			wantDate:  "2025-09-01",
			wantStamp: "2025-09-01T23:59:59+09:00",
		},
		{
			name:      "utc 15:00 is kst midnight of next day",
			instant:   time.Date(2025, 9, 1, 15, 0, 0, 0, time.UTC),
			wantStart: time.Date(2025, 9, 1, 15, 0, 0, 0, time.UTC),
			wantDate:  "2025-09-02",
			wantStamp: "2025-09-02T00:00:00+09:00",
		},
		{
			name:      "year boundary",
			instant:   time.Date(2025, 12, 31, 16, 0, 0, 0, time.UTC),
			wantStart: time.Date(2025, 12, 31, 15, 0, 0, 0, time.UTC),
			wantDate:  "2026-01-01",
			wantStamp: "2026-01-01T01:00:00+09:00",
		},
		{
			name:      "leap day",
			instant:   time.Date(2024, 2, 28, 20, 0, 0, 0, time.UTC),
			wantStart: time.Date(2024, 2, 28, 15, 0, 0, 0, time.UTC),
			wantDate:  "2024-02-29",
			wantStamp: "2024-02-29T05:00:00+09:00",
		},
		{
			name:      "non-utc input location is normalized",
			instant:   time.Date(2025, 9, 1, 10, 0, 0, 0, time.FixedZone("PDT", -7*3600)),
			wantStart: time.Date(2025, 9, 1, 15, 0, 0, 0, time.UTC),
			wantDate:  "2025-09-02",
			wantStamp: "2025-09-02T02:00:00+09:00",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DayRange(tc.instant)
			if !got.StartUTC.Equal(tc.wantStart) {
				t.Fatalf("start = %s, want %s", got.StartUTC, tc.wantStart)
			}
			if got.EndUTC.Sub(got.StartUTC) != 24*time.Hour {
				t.Fatalf("day length = %s, want 24h", got.EndUTC.Sub(got.StartUTC))
			}
			if got.LocalDate != tc.wantDate {
				t.Fatalf("local date = %q, want %q", got.LocalDate, tc.wantDate)
			}
			if got.LocalTimestamp != tc.wantStamp {
				t.Fatalf("local timestamp = %q, want %q", got.LocalTimestamp, tc.wantStamp)
			}
			if !got.Contains(tc.instant) {
				t.Fatalf("day %s..%s does not contain %s", got.StartUTC, got.EndUTC, tc.instant)
			}
		})
	}
}

func TestDayRangeEveryHourOfYear(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	start := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for ts := start; ts.Before(end); ts = ts.Add(time.Hour + 7*time.Minute) {
		got := DayRange(ts)
		if want := ts.In(seoul).Format("2006-01-02"); got.LocalDate != want {
			t.Fatalf("%s: local date = %q, want %q", ts, got.LocalDate, want)
		}
		if got.EndUTC.Sub(got.StartUTC) != 24*time.Hour {
			t.Fatalf("%s: day length %s", ts, got.EndUTC.Sub(got.StartUTC))
		}
		if !got.Contains(ts) {
			t.Fatalf("%s not inside its own day", ts)
		}
		if clock := got.StartUTC.In(seoul); clock.Hour() != 0 || clock.Minute() != 0 {
			t.Fatalf("%s: start is not kst midnight: %s", ts, clock)
		}
	}
}

func TestWeekRange(t *testing.T) {
	tests := []struct {
		name     string
		instant  time.Time
		wantDate time.Time
	}{
		{
			name:     "monday itself",
			instant:  time.Date(2025, 9, 1, 3, 0, 0, 0, time.UTC),
			wantDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "sunday belongs to preceding monday",
			instant:  time.Date(2025, 9, 7, 10, 0, 0, 0, time.UTC),
			wantDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "sunday utc afternoon is already next kst monday",
			instant:  time.Date(2025, 9, 7, 15, 30, 0, 0, time.UTC),
			wantDate: time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "week spanning year boundary",
			instant:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			wantDate: time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "week spanning month boundary",
			instant:  time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC),
			wantDate: time.Date(2025, 9, 29, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := WeekRange(tc.instant)
			if !got.WeekDate.Equal(tc.wantDate) {
				t.Fatalf("week date = %s, want %s", got.WeekDate, tc.wantDate)
			}
			wantStart := tc.wantDate.Add(-9 * time.Hour)
			if !got.StartUTC.Equal(wantStart) {
				t.Fatalf("start = %s, want %s", got.StartUTC, wantStart)
			}
			if got.EndUTC.Sub(got.StartUTC) != 7*24*time.Hour {
				t.Fatalf("week length = %s", got.EndUTC.Sub(got.StartUTC))
			}
			if tc.instant.Before(got.StartUTC) || !tc.instant.Before(got.EndUTC) {
				t.Fatalf("week does not contain %s", tc.instant)
			}
		})
	}
}

func TestWeekRangeEveryDayAcrossYears(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	months := map[time.Month]bool{}
	for ts := start; ts.Before(end); ts = ts.Add(5*time.Hour + 13*time.Minute) {
		got := WeekRange(ts)
		local := got.StartUTC.In(seoul)
		if local.Weekday() != time.Monday {
			t.Fatalf("%s: week starts on %s", ts, local.Weekday())
		}
		if local.Hour() != 0 || local.Minute() != 0 || local.Second() != 0 {
			t.Fatalf("%s: week start not at kst midnight: %s", ts, local)
		}
		if got.EndUTC.Sub(got.StartUTC) != 7*24*time.Hour {
			t.Fatalf("%s: week length %s", ts, got.EndUTC.Sub(got.StartUTC))
		}
		if ts.Before(got.StartUTC) || !ts.Before(got.EndUTC) {
			t.Fatalf("%s not inside its own week", ts)
		}
		if got.WeekDate.Format("2006-01-02") != local.Format("2006-01-02") {
			t.Fatalf("%s: week date %s does not match monday %s", ts, got.WeekDate, local)
		}
		months[ts.In(seoul).Month()] = true
	}
	if len(months) != 12 {
		t.Fatalf("expected all twelve months covered, got %d", len(months))
	}
}

func TestWeekDays(t *testing.T) {
	w := WeekRange(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
	days := w.Days()
	want := []string{"2025-12-29", "2025-12-30", "2025-12-31", "2026-01-01", "2026-01-02", "2026-01-03", "2026-01-04"}
	if len(days) != len(want) {
		t.Fatalf("days = %d, want %d", len(days), len(want))
	}
	for i, d := range days {
		if d.LocalDate != want[i] {
			t.Fatalf("day %d = %q, want %q", i, d.LocalDate, want[i])
		}
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2025-09-03")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	if want := time.Date(2025, 9, 2, 15, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("parsed = %s, want %s", got, want)
	}
	if LocalDate(got) != "2025-09-03" {
		t.Fatalf("local date of parsed = %q", LocalDate(got))
	}

	got, err = ParseDate("2025-09-03T01:00:00+09:00")
	if err != nil {
		t.Fatalf("parse rfc3339: %v", err)
	}
	if want := time.Date(2025, 9, 2, 16, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("parsed = %s, want %s", got, want)
	}

	for _, bad := range []string{"", "2025-13-01", "yesterday", "2025/09/03"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestWeekRangeSameForAnyDateInWeek(t *testing.T) {
	base := WeekRange(time.Date(2025, 9, 3, 2, 0, 0, 0, time.UTC))
	for _, s := range []string{"2025-09-01", "2025-09-04", "2025-09-07"} {
		d, err := ParseDate(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		got := WeekRange(d)
		if !got.StartUTC.Equal(base.StartUTC) || !got.EndUTC.Equal(base.EndUTC) {
			t.Fatalf("%s: week %s..%s, want %s..%s", s, got.StartUTC, got.EndUTC, base.StartUTC, base.EndUTC)
		}
	}
}

func TestWeekday(t *testing.T) {
	if got := Weekday(time.Date(2025, 9, 7, 14, 0, 0, 0, time.UTC)); got != time.Sunday {
		t.Fatalf("weekday = %s, want Sunday", got)
	}
	if got := Weekday(time.Date(2025, 9, 7, 15, 0, 0, 0, time.UTC)); got != time.Monday {
		t.Fatalf("weekday = %s, want Monday", got)
	}
}
