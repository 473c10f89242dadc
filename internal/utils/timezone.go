package utils

import (
	"fmt"
	"time"
	_ "time/tzdata" // zone database for hosts without /usr/share/zoneinfo
)

// DayLayout is the calendar-date format used by query parameters.
const DayLayout = "2006-01-02"

// DayBounds returns the UTC instants [start, end) covering the calendar day
// in loc. Days that cross a DST change are 23 or 25 hours long.
func DayBounds(day string, loc *time.Location) (time.Time, time.Time, error) {
	d, err := time.ParseInLocation(DayLayout, day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid day %q: %w", day, err)
	}
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	end := time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc)
	return start.UTC(), end.UTC(), nil
}

// RangeBounds returns the UTC instants covering every day from first through
// last inclusive.
func RangeBounds(first, last string, loc *time.Location) (time.Time, time.Time, error) {
	start, _, err := DayBounds(first, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	_, end, err := DayBounds(last, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("range end %s before start %s", last, first)
	}
	return start, end, nil
}

// LocalDay formats t as the calendar date it falls on in loc.
func LocalDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

// LocalHour is the wall-clock hour of t in loc. During the repeated hour of
// a DST fall-back both instants map to the same hour.
func LocalHour(t time.Time, loc *time.Location) int {
	return t.In(loc).Hour()
}

// Today returns the current calendar date in loc.
func Today(now time.Time, loc *time.Location) string {
	return LocalDay(now, loc)
}

// DayCount returns how many calendar dates lie from first through last
// inclusive without enumerating them. It is zero or negative when last is
// before first.
func DayCount(first, last string) (int, error) {
	a, err := time.Parse(DayLayout, first)
	if err != nil {
		return 0, fmt.Errorf("invalid day %q: %w", first, err)
	}
	b, err := time.Parse(DayLayout, last)
	if err != nil {
		return 0, fmt.Errorf("invalid day %q: %w", last, err)
	}
	// UTC dates are all 86400s long; Unix seconds do not saturate like Sub
	return int((b.Unix()-a.Unix())/86400) + 1, nil
}

// DaysBetween lists the calendar dates from first through last inclusive.
func DaysBetween(first, last string, loc *time.Location) ([]string, error) {
	a, err := time.ParseInLocation(DayLayout, first, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid day %q: %w", first, err)
	}
	b, err := time.ParseInLocation(DayLayout, last, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid day %q: %w", last, err)
	}
	var out []string
	for d := a; !d.After(b); d = time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc) {
		out = append(out, d.Format(DayLayout))
	}
	return out, nil
}
