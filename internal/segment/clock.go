package segment

import (
	"fmt"
	"time"
)

// Clock is a time of day with second precision, independent of any date.
type Clock struct {
	hour, minute, second int
}

// Minutes returns the clock position as minutes since midnight.
func (c Clock) Minutes() int {
	return c.hour*60 + c.minute
}

// String renders the clock as HH:MM:SS.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.hour, c.minute, c.second)
}

// clockLayouts are accepted time-of-day formats, tried in order. Exports
// occasionally carry a full timestamp in the time column; the date part is
// ignored in that case.
var clockLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04:05 PM",
	"2006-01-02 15:04:05",
}

// ParseClock parses a time-of-day value. Whole-row exclusion on failure is
// the caller's decision; ParseClock only reports whether the value is usable.
func ParseClock(s string) (Clock, error) {
	if s == "" {
		return Clock{}, fmt.Errorf("empty time value")
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Clock{hour: t.Hour(), minute: t.Minute(), second: t.Second()}, nil
		}
	}
	return Clock{}, fmt.Errorf("unparsable time %q", s)
}

// dateLayouts are accepted calendar date formats, tried in order. The first
// entries match the canonical export format; the rest cover spreadsheet
// display formats seen in the field.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"01-02-06",
	"2/1/06",
}

// ParseDate parses a calendar date value, discarding any time component.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date value")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", s)
}
