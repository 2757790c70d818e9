package textutil

import (
	"strings"
	"time"
)

// localLayouts are date-time forms without a UTC offset. They are read in
// the caller's location.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

const dateOnlyLayout = "2006-01-02"

// ParseDate parses date-like text leniently. It returns nil for empty or
// unparseable input and never a partially parsed value.
//
// Accepted forms:
//   - RFC 3339 with offset or Z, e.g. 2025-04-01T09:00:00-04:00
//   - date-time without offset, read in loc (nil means UTC)
//   - date only, e.g. 2025-04-01, read as UTC midnight
func ParseDate(value string, loc *time.Location) *time.Time {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return &t
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return &t
		}
	}
	if t, err := time.ParseInLocation(dateOnlyLayout, v, time.UTC); err == nil {
		return &t
	}
	return nil
}

// FormatDate renders t as "Apr 1, 2025" in loc. nil renders as "".
func FormatDate(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return in(*t, loc).Format("Jan 2, 2006")
}

// FormatTime renders t as "9:00 AM" in loc. nil renders as "".
func FormatTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return in(*t, loc).Format("3:04 PM")
}

// FormatUTCBasic renders t as the calendar UTC basic form 20250401T090000Z.
func FormatUTCBasic(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func in(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t
	}
	return t.In(loc)
}
