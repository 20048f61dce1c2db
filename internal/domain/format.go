package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Placeholder is shown in place of a time that cannot be derived yet.
const Placeholder = "--:--"

// OffsetPresets are the offsets offered when picking a reminder time.
var OffsetPresets = []int{15, 30, 45, 60, 90, 120, 150, 180, 240}

// FormatClock renders t in loc as "h:mm AM", truncated to the minute, or
// Placeholder when t is nil.
func FormatClock(t *time.Time, loc *time.Location) string {
	if t == nil {
		return Placeholder
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("3:04 PM")
}

// FormatDate renders an event date as "Mon, Jan 2, 2006".
func FormatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("Mon, Jan 2, 2006")
}

// FormatOffset renders minutes as "15 min", "1 hr", "1.5 hrs", "2 hrs".
func FormatOffset(mins int) string {
	if mins < 60 && mins > -60 {
		return fmt.Sprintf("%d min", mins)
	}
	h := float64(mins) / 60
	s := strconv.FormatFloat(h, 'f', -1, 64)
	if mins%30 != 0 {
		// not a whole or half hour, minutes read better
		return fmt.Sprintf("%d min", mins)
	}
	if mins == 60 || mins == -60 {
		return s + " hr"
	}
	return s + " hrs"
}

// FormatRelative renders an offset relative to the run: "1 hr before" for
// positive minutes, "15 min after" for negative ones.
func FormatRelative(mins int) string {
	if mins < 0 {
		return FormatOffset(-mins) + " after"
	}
	return FormatOffset(mins) + " before"
}

// FormatThroughput renders an entrants-per-hour value, or Placeholder when unset.
func FormatThroughput(v float64) string {
	if !(v > 0) {
		return Placeholder
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
