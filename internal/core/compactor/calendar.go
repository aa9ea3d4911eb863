package compactor

import (
	"fmt"
	"time"
)

// dayKey is the local calendar day of t, e.g. "2024-03-15".
func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// dayBounds returns [start, end) for the local day named by key.
func dayBounds(key string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02", key, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("compactor: bad day key %q: %w", key, err)
	}
	return start, start.AddDate(0, 0, 1), nil
}

// weekKey is the ISO-8601 year-week of t, e.g. "2024-W11".
func weekKey(t time.Time, loc *time.Location) string {
	year, week := t.In(loc).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// weekBounds returns [start, end) for the ISO week named by key: the Monday
// of that week through the following Monday.
func weekBounds(key string, loc *time.Location) (time.Time, time.Time, error) {
	var year, week int
	if _, err := fmt.Sscanf(key, "%04d-W%02d", &year, &week); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("compactor: bad week key %q: %w", key, err)
	}
	start := isoWeekStart(year, week, loc)
	return start, start.AddDate(0, 0, 7), nil
}

// isoWeekStart finds the Monday 00:00 of ISO year/week.
func isoWeekStart(year, week int, loc *time.Location) time.Time {
	// Jan 4 is always in week 1 of the ISO calendar.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	offsetWeekday := int(jan4.Weekday())
	if offsetWeekday == 0 {
		offsetWeekday = 7
	}
	week1Monday := jan4.AddDate(0, 0, -(offsetWeekday - 1))
	return week1Monday.AddDate(0, 0, (week-1)*7)
}

// monthKey is the local calendar month of t, e.g. "2024-03".
func monthKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01")
}

// monthBounds returns [start, end) for the calendar month named by key.
func monthBounds(key string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01", key, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("compactor: bad month key %q: %w", key, err)
	}
	return start, start.AddDate(0, 1, 0), nil
}
