package domain

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyOffset   = errors.New("empty offset")
	ErrInvalidOffset = errors.New("invalid offset")
	ErrInvalidClock  = errors.New("invalid clock time")
	ErrInvalidDate   = errors.New("invalid date")
)

var (
	hoursRe   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*h`)
	minutesRe = regexp.MustCompile(`(?i)(\d+)\s*m`)
)

// ParseThroughput reads an entrants-per-hour value from form input.
// Anything that is not a finite number yields 0, which the calculator
// treats as "not set".
func ParseThroughput(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParseOrdinal reads a draw position from form input; 0 when it is not an integer.
func ParseOrdinal(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}

// ParseOffset parses a reminder offset in minutes. Accepts a plain integer
// ("90", "-15") or hour/minute forms ("1h30m", "1.5h", "45m").
func ParseOffset(s string) (int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, ErrEmptyOffset
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}

	neg := strings.HasPrefix(s, "-")
	body := strings.TrimPrefix(s, "-")
	var total float64
	matched := false
	if mh := hoursRe.FindStringSubmatch(body); len(mh) == 2 {
		h, _ := strconv.ParseFloat(mh[1], 64)
		total += h * 60
		matched = true
	}
	if mm := minutesRe.FindStringSubmatch(body); len(mm) == 2 {
		m, _ := strconv.Atoi(mm[1])
		total += float64(m)
		matched = true
	}
	if !matched {
		return 0, fmt.Errorf("%w: %s", ErrInvalidOffset, s)
	}
	mins := int(math.Round(total))
	if neg {
		mins = -mins
	}
	return mins, nil
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: expected HH:MM", ErrInvalidClock)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: invalid hour", ErrInvalidClock)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: invalid minute", ErrInvalidClock)
	}
	return h*60 + m, nil
}

// ParseEventDate parses "YYYY-MM-DD" as midnight in loc.
func ParseEventDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}
	return d, nil
}

// At returns the instant mins minutes after midnight on date's calendar day in loc.
func At(date time.Time, mins int, loc *time.Location) time.Time {
	d := date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), mins/60, mins%60, 0, 0, loc)
}

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}
