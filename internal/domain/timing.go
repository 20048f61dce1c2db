package domain

import (
	"math"
	"time"
)

// EstimatedRunTime returns the time an entrant at the given ordinal position is
// expected to run, given the event start and the number of entrants per hour.
// It returns nil when start is absent, throughput <= 0, ordinal <= 0, or the
// distance from start does not fit in a time.Duration.
//
// Spacing is real-valued: with 7 entrants/hour each slot is 8.571... minutes and
// the fraction carries into seconds rather than being floored per slot.
func EstimatedRunTime(start *time.Time, throughput float64, ordinal int) *time.Time {
	if start == nil || !(throughput > 0) || ordinal <= 0 {
		return nil
	}
	minutesPerEntrant := 60 / throughput
	offset, ok := duration(float64(ordinal-1) * minutesPerEntrant * float64(time.Minute))
	if !ok {
		return nil
	}
	t := start.Add(offset)
	return &t
}

// FireTime returns runTime minus offsetMinutes, or nil when runTime is nil or
// the offset does not fit in a time.Duration.
// Negative offsets are accepted and land after the run time.
func FireTime(runTime *time.Time, offsetMinutes int) *time.Time {
	if runTime == nil {
		return nil
	}
	d, ok := duration(-float64(offsetMinutes) * float64(time.Minute))
	if !ok {
		return nil
	}
	t := runTime.Add(d)
	return &t
}

// SlotDuration is the time one entrant occupies at the given throughput.
// Zero when throughput is not positive or the slot is too long to represent.
func SlotDuration(throughput float64) time.Duration {
	if !(throughput > 0) {
		return 0
	}
	d, _ := duration(60 / throughput * float64(time.Minute))
	return d
}

// duration converts nanoseconds to a Duration, reporting false when ns is
// NaN or outside the int64 range.
func duration(ns float64) (time.Duration, bool) {
	if math.IsNaN(ns) || ns >= float64(math.MaxInt64) || ns < float64(math.MinInt64) {
		return 0, false
	}
	return time.Duration(ns), true
}
