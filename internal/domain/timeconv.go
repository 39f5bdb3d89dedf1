package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTime is returned when a wire timestamp cannot be parsed.
var ErrInvalidTime = errors.New("invalid spot time")

// isoLocalLayout is the zone-less ISO-8601 layout used by POTA and SOTAwatch.
// Fractional seconds are accepted by time.Parse even though the layout omits them.
const isoLocalLayout = "2006-01-02T15:04:05"

// LocalToUTC interprets the given wall-clock fields in loc and returns the
// corresponding UTC instant. A nil loc means time.Local.
func LocalToUTC(year int, month time.Month, day, hour, minute, sec int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(year, month, day, hour, minute, sec, 0, loc).UTC()
}

// ParseHHMMDate parses "HHMM YYYY-MM-DD" (e.g. "1230 2024-01-15") as wall time
// in loc and returns UTC. HHMM may omit leading zeros ("930" is 09:30).
func ParseHHMMDate(s string, loc *time.Location) (time.Time, error) {
	hhmm, date, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q: missing date", ErrInvalidTime, s)
	}
	hour, minute, err := parseHHMM(hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidTime, s, err)
	}
	// "2006-1-2" accepts both zero-padded and bare month/day and rejects
	// out-of-range days for the month.
	d, err := time.Parse("2006-1-2", strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidTime, s, err)
	}
	return LocalToUTC(d.Year(), d.Month(), d.Day(), hour, minute, 0, loc), nil
}

// ParseISOTime parses an ISO-8601 timestamp. Timestamps with an explicit
// offset or "Z" are honored as given; zone-less timestamps are wall time in loc.
func ParseISOTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(isoLocalLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidTime, s, err)
	}
	return LocalToUTC(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), loc), nil
}

// ParsePackedDateTime combines a packed YYYYMMDD date and an HHMM time, both
// as decimal strings, into a UTC instant from wall time in loc.
func ParsePackedDateTime(date, hhmm string, loc *time.Location) (time.Time, error) {
	dv, err := strconv.Atoi(strings.TrimSpace(date))
	if err != nil || dv <= 0 {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidTime, date)
	}
	year, month, day := dv/10000, dv/100%100, dv%100
	if month < 1 || month > 12 || day < 1 || day > daysIn(time.Month(month), year) {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidTime, date)
	}
	hour, minute, err := parseHHMM(hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time %q: %v", ErrInvalidTime, hhmm, err)
	}
	return LocalToUTC(year, time.Month(month), day, hour, minute, 0, loc), nil
}

// parseHHMM splits a packed 24-hour HHMM value into hour and minute.
func parseHHMM(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 4 {
		return 0, 0, fmt.Errorf("hhmm %q: want 1-4 digits", s)
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, 0, fmt.Errorf("hhmm %q: not a number", s)
	}
	hour, minute = v/100, v%100
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("hhmm %q: out of range", s)
	}
	return hour, minute, nil
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
