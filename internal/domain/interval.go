package domain

import (
	"fmt"
	"strings"
	"time"
)

// ParseInterval splits an ISO 8601 interval of the form
// "2024-02-05T06:00:00+00:00/PT2H" into its start instant (UTC) and its
// duration in whole hours. "/" is tried first, then "--"; a string with
// neither delimiter is a bare timestamp with duration 0.
//
// The duration designator is scanned with a digit accumulator: digits build
// up a number, H banks it as hours, M banks number/60 and S banks number/360
// using integer division. Sub-hour remainders are dropped, so PT90M counts
// as one hour; the forecast grid is hourly and finer resolution carries no
// signal. Any other letter (P, T) is skipped without clearing the
// accumulator.
func ParseInterval(s string) (time.Time, int, error) {
	spec := s
	var duration string
	if date, rest, found := strings.Cut(s, "/"); found {
		spec, duration = date, rest
	} else if date, rest, found := strings.Cut(s, "--"); found {
		spec, duration = date, rest
	}

	start, err := time.Parse(time.RFC3339, spec)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("parsing interval %q: %w", s, err)
	}

	hours, acc := 0, 0
	for _, r := range duration {
		switch {
		case r >= '0' && r <= '9':
			acc = acc*10 + int(r-'0')
		case r == 'H':
			hours += acc
			acc = 0
		case r == 'M':
			hours += acc / 60
			acc = 0
		case r == 'S':
			hours += acc / 360
			acc = 0
		}
	}
	return start.UTC(), hours, nil
}

// RoundToHour rounds t to the nearest whole hour in UTC: minute 30 and above
// rounds up, below rounds down. Seconds and sub-second components are zeroed
// either way. Rounding up out of hour 23 carries into the next day.
func RoundToHour(t time.Time) time.Time {
	t = t.UTC()
	hour := t.Hour()
	if t.Minute() >= 30 {
		hour++
	}
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, time.UTC)
}

// ExpandInterval parses validTime, rounds its start to the nearest hour and
// emits one reading per covered hour, each carrying the same value. A
// duration of zero still emits exactly one reading at the rounded start, so
// instantaneous observations are never lost.
func ExpandInterval(validTime string, f Feature, v float64) ([]Reading, error) {
	start, hours, err := ParseInterval(validTime)
	if err != nil {
		return nil, err
	}
	start = RoundToHour(start)
	if hours < 1 {
		hours = 1
	}
	readings := make([]Reading, 0, hours)
	for h := 0; h < hours; h++ {
		readings = append(readings, Reading{
			Time:    start.Add(time.Duration(h) * time.Hour),
			Feature: f,
			Value:   v,
		})
	}
	return readings, nil
}
