// Package tz converts between a user's wall-clock time and the canonical
// UTC instants stored by the backend.
//
// Users configure a whole-hour offset rather than an IANA zone, so there
// is no timezone database involved. A wall-clock value is represented as a
// UTC-located time.Time whose fields are the user's local reading.
package tz

import (
	"fmt"
	"strings"
	"time"
)

const (
	MinOffsetHours = -12
	MaxOffsetHours = 14
)

// OffsetMinutes converts a profile offset in hours to minutes. A missing
// offset means the user is treated as UTC-local.
func OffsetMinutes(hours *int) int {
	if hours == nil {
		return 0
	}
	return *hours * 60
}

// ToCanonicalUTC interprets the wall fields of local as a reading in the
// user's offset and returns the corresponding UTC instant. The location
// local carries is ignored.
func ToCanonicalUTC(local time.Time, offsetMinutes int) time.Time {
	wall := time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), time.UTC)
	return wall.Add(-time.Duration(offsetMinutes) * time.Minute)
}

// FromCanonicalUTC returns the user's wall-clock reading of utc as a
// UTC-located value. ToCanonicalUTC(FromCanonicalUTC(t, o), o) equals t for
// any instant t. FromCanonicalUTC(ToCanonicalUTC(w, o), o) equals w only for
// UTC-located w, since a wall value is read by its fields alone.
func FromCanonicalUTC(utc time.Time, offsetMinutes int) time.Time {
	return utc.UTC().Add(time.Duration(offsetMinutes) * time.Minute)
}

// Zone returns a fixed zone for formatting canonical instants for display.
func Zone(offsetMinutes int) *time.Location {
	sign := "+"
	m := offsetMinutes
	if m < 0 {
		sign = "-"
		m = -m
	}
	return time.FixedZone(fmt.Sprintf("UTC%s%02d:%02d", sign, m/60, m%60), offsetMinutes*60)
}

// ValidOffsetHours reports whether h is a real-world UTC offset.
func ValidOffsetHours(h int) bool {
	return h >= MinOffsetHours && h <= MaxOffsetHours
}

var localLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ParseLocal parses form input such as "2024-01-01T08:00" into a
// wall-clock value. Zone designators are rejected: the offset comes from
// the user profile, never from the input.
func ParseLocal(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("tz: %q is not a local date-time (want YYYY-MM-DDTHH:MM)", s)
}
