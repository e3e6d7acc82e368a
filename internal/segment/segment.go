// Package segment partitions irregular sensor readings into fixed 12-hour
// cultivation shift windows: a day shift from 08:00 to 20:00 and a night
// shift from 20:00 to 08:00. Window membership drives how readings are
// grouped into retrievable documents.
package segment

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Column names the segmenter requires, after lowercase normalization.
// These follow the source spreadsheets, which use Portuguese headers.
const (
	DateColumn = "data"
	TimeColumn = "hora"
)

// ErrMissingColumns is returned when a sheet lacks the date or time column.
// Callers skip the sheet and continue with the rest of the workbook.
var ErrMissingColumns = errors.New("sheet is missing required date/time columns")

// Row is a single sensor reading. Field order follows the source sheet's
// column order and survives JSON serialization.
type Row struct {
	fields *orderedmap.OrderedMap[string, string]
}

// NewRow creates an empty Row.
func NewRow() *Row {
	return &Row{fields: orderedmap.New[string, string]()}
}

// Set stores a field value. Field names are normalized to lowercase.
func (r *Row) Set(name, value string) {
	r.fields.Set(strings.ToLower(strings.TrimSpace(name)), value)
}

// Get returns the value of the named field.
func (r *Row) Get(name string) (string, bool) {
	return r.fields.Get(strings.ToLower(name))
}

// Fields returns the field names in insertion order.
func (r *Row) Fields() []string {
	names := make([]string, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Empty reports whether every field value is blank.
func (r *Row) Empty() bool {
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value != "" {
			return false
		}
	}
	return true
}

// MarshalJSON renders the row as a JSON object preserving field order.
func (r *Row) MarshalJSON() ([]byte, error) {
	return r.fields.MarshalJSON()
}

// Sheet is a named collection of raw rows sharing a column set.
type Sheet struct {
	Name    string
	Columns []string
	Rows    []*Row
}

// HasRequiredColumns reports whether the sheet carries both the date and
// time columns needed for windowing.
func (s Sheet) HasRequiredColumns() bool {
	var date, clock bool
	for _, c := range s.Columns {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case DateColumn:
			date = true
		case TimeColumn:
			clock = true
		}
	}
	return date && clock
}

// Windows maps a shift window key ("YYYY-MM-DD HH:MM-HH:MM") to the rows
// that fall inside it, in original sheet order.
type Windows map[string][]*Row

// Keys returns the window keys in ascending lexical order, which for the
// fixed key format is also chronological order.
func (w Windows) Keys() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	// Keys embed an ISO date prefix, so plain string sort is chronological.
	sort.Strings(keys)
	return keys
}

// Segment classifies each of the sheet's rows into its shift window and
// groups them by window key, preserving row order within each window.
//
// Rows whose time cannot be parsed are excluded from every window but stay
// untouched in the sheet's raw row set. Rows whose date cannot be parsed are
// likewise excluded. A sheet without the required columns yields
// ErrMissingColumns so the caller can skip it without failing the batch.
//
// Date and time fields of classified rows are rewritten to the canonical
// YYYY-MM-DD and HH:MM:SS forms; blank-like values normalize to "".
func Segment(sheet Sheet) (Windows, error) {
	if !sheet.HasRequiredColumns() {
		return nil, fmt.Errorf("sheet %q: %w", sheet.Name, ErrMissingColumns)
	}

	windows := make(Windows)
	for _, row := range sheet.Rows {
		normalize(row)

		rawDate, _ := row.Get(DateColumn)
		date, err := ParseDate(rawDate)
		if err != nil {
			continue
		}
		row.Set(DateColumn, date.Format("2006-01-02"))

		rawTime, _ := row.Get(TimeColumn)
		clock, err := ParseClock(rawTime)
		if err != nil {
			continue
		}
		row.Set(TimeColumn, clock.String())

		key := windowKey(date, clock)
		windows[key] = append(windows[key], row)
	}
	return windows, nil
}

// windowKey assigns a reading to its shift window.
//
// Readings from 08:00 (inclusive) to 20:00 (exclusive) belong to the day
// shift of their own date. Everything else belongs to the night shift
// labeled with the reading's own date, whether the reading was taken before
// 08:00 (the tail of the shift ending that morning) or at/after 20:00 (the
// head of the shift starting that evening).
func windowKey(date time.Time, clock Clock) string {
	day := date.Format("2006-01-02")
	if clock.Minutes() >= 8*60 && clock.Minutes() < 20*60 {
		return day + " 08:00-20:00"
	}
	return day + " 20:00-08:00"
}

// SanitizeKey rewrites a window key into a filesystem-safe artifact suffix:
// colons become dashes and spaces become underscores.
func SanitizeKey(key string) string {
	key = strings.ReplaceAll(key, ":", "-")
	return strings.ReplaceAll(key, " ", "_")
}

// normalize clears blank-like scalar values so serialized records carry ""
// instead of NaN markers left over from the export.
func normalize(row *Row) {
	for _, name := range row.Fields() {
		v, _ := row.Get(name)
		trimmed := strings.TrimSpace(v)
		switch strings.ToLower(trimmed) {
		case "", "nan", "none", "null", "#n/a":
			row.Set(name, "")
		default:
			row.Set(name, trimmed)
		}
	}
}
