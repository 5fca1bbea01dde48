package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	// Station zones must resolve on hosts without a system zoneinfo database.
	_ "time/tzdata"
)

const (
	// LogLayout is the bare station wall-clock form used by playlist feeds.
	LogLayout = "2006/01/02 15:04:05"
	// DateLayout is the query/display form of a broadcast date.
	DateLayout = "2006-01-02"

	MinutesPerDay = 24 * 60
)

var (
	// Fixed offsets for zone-tagged play-log timestamps. The station only
	// ever reports EDT or EST.
	edtZone = time.FixedZone("EDT", -4*60*60)
	estZone = time.FixedZone("EST", -5*60*60)

	zonedLogRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[ T](\d{2}:\d{2}:\d{2})(?:\s*([A-Za-z]{3}))?$`)
)

// ParseLogTimestamp parses a "YYYY/MM/DD HH:MM:SS" station wall-clock time in loc.
func ParseLogTimestamp(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.ParseInLocation(LogLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp: %q", raw)
	}
	return t, nil
}

// ParsePlayedAt accepts both play-log timestamp forms.
//
// "YYYY/MM/DD HH:MM:SS" is read as station wall-clock time in loc.
// "YYYY-MM-DD HH:MM:SS EDT|EST" is read with a fixed -4h/-5h offset; a missing
// zone marker defaults to -4h. The result is always returned in UTC.
func ParsePlayedAt(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/") {
		t, err := ParseLogTimestamp(raw, loc)
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}
	m := zonedLogRe.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, fmt.Errorf("invalid timestamp: %q", raw)
	}
	zone := edtZone
	switch strings.ToUpper(m[3]) {
	case "", "EDT":
	case "EST":
		zone = estZone
	default:
		return time.Time{}, fmt.Errorf("invalid timestamp zone: %q", raw)
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", m[1]+" "+m[2], zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp: %q", raw)
	}
	return t.UTC(), nil
}

var feedLayouts = []string{
	"2006-01-02 15:04:05",
	LogLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	DateLayout,
}

// ParseFeedTime parses the loosely formatted dates found in archive feeds.
// Bare unix seconds are accepted as well.
func ParseFeedTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty feed time")
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil && len(raw) >= 9 {
		return time.Unix(n, 0).In(loc), nil
	}
	for _, layout := range feedLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid feed time: %q", raw)
}

// FormatDate formats t as "YYYY-MM-DD" in its own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses "YYYY-MM-DD" as local midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date: %q", s)
	}
	return t, nil
}

// MinutesFromMidnight returns the wall-clock minute of day of t.
func MinutesFromMidnight(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Midnight returns the start of t's calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AtMinute returns the instant minute minutes after the midnight of day.
// Wall-clock arithmetic keeps the result stable across DST transitions.
func AtMinute(day time.Time, minute int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, minute/60, minute%60, 0, 0, day.Location())
}

// DaysBetween counts calendar days from a to b, ignoring time of day.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// FloorDiv divides rounding toward negative infinity.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Mod returns a non-negative remainder.
func Mod(a, b int) int {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}
