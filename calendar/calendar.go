// Package calendar implements the strftime-format classifier and
// partition-bounds math: given a partition format string, determine the
// finest time resolution it names and the [ts_min, ts_max) window a
// given timestamp falls into.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"github.com/ncruces/go-strftime"
)

// ErrNameTooLong is returned by RenderName when the rendered partition
// name would exceed MaxNameLen. The engine layer maps it to its
// Exhausted error kind.
var ErrNameTooLong = errors.New("calendar: rendered partition name exceeds MaxNameLen")

// resolution ranks format specifiers from coarsest to finest. Only
// second..year participate in classification; week ranks between year
// and month and is recognized but rejected as an increment driver: a
// format whose finest recognized specifier names a week-of-year is
// invalid, since week boundaries don't nest cleanly inside year
// boundaries the way month/day/hour do.
type resolution int

const (
	resNone resolution = iota
	resYear
	resWeek
	resMonth
	resDay
	resHalfDay
	resHour
	resMinute
	resSecond
)

var specifierResolution = map[byte]resolution{
	// second
	'S': resSecond, 'X': resSecond, 'T': resSecond, 'r': resSecond,
	// minute
	'M': resMinute, 'R': resMinute, 'c': resMinute,
	// hour
	'H': resHour, 'I': resHour,
	// half-day
	'p': resHalfDay,
	// day
	'j': resDay, 'd': resDay, 'e': resDay, 'x': resDay, 'a': resDay, 'A': resDay,
	'u': resDay, 'w': resDay, 'D': resDay, 'F': resDay,
	// month
	'b': resMonth, 'h': resMonth, 'B': resMonth, 'm': resMonth,
	// year
	'C': resYear, 'g': resYear, 'G': resYear, 'y': resYear, 'Y': resYear,
	// week-of-year: recognized, not an increment driver
	'V': resWeek, 'U': resWeek, 'W': resWeek,
}

// MaxNameLen bounds a rendered partition name, mirroring the PATH_MAX-sized
// stack buffer a native implementation would size a rendered path into.
const MaxNameLen = 4096

// classify scans format for known specifiers and returns the finest
// resolution found.
func classify(format string) (resolution, error) {
	finest := resNone
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			continue
		}
		spec := format[i+1]
		i++
		r, ok := specifierResolution[spec]
		if !ok {
			continue
		}
		if r > finest {
			finest = r
		}
	}

	switch finest {
	case resNone:
		return resNone, fmt.Errorf("calendar: partition format %q names no recognized time specifier", format)
	case resWeek:
		return resNone, fmt.Errorf("calendar: partition format %q has week-of-year as its finest specifier, which this engine does not support as an increment driver", format)
	default:
		return finest, nil
	}
}

// Validate reports whether format is usable as a partition format, without
// computing bounds for any particular timestamp.
func Validate(format string) error {
	_, err := classify(format)
	return err
}

// Bounds returns the half-open [min, max) partition window (in epoch
// nanoseconds) that tsNanos falls into for the given partition format.
func Bounds(format string, tsNanos int64) (min, max int64, err error) {
	res, err := classify(format)
	if err != nil {
		return 0, 0, err
	}

	t := time.Unix(0, tsNanos).UTC()

	var start, next time.Time
	switch res {
	case resSecond:
		start = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
		next = start.Add(time.Second)
	case resMinute:
		start = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
		next = start.Add(time.Minute)
	case resHour:
		start = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
		next = start.Add(time.Hour)
	case resHalfDay:
		hour := (t.Hour() / 12) * 12
		start = time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, time.UTC)
		next = start.Add(12 * time.Hour)
	case resDay:
		start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		next = start.AddDate(0, 0, 1)
	case resMonth:
		start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		next = start.AddDate(0, 1, 0)
	case resYear:
		start = time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		next = start.AddDate(1, 0, 0)
	default:
		return 0, 0, fmt.Errorf("calendar: unreachable resolution %d", res)
	}

	return start.UnixNano(), next.UnixNano(), nil
}

// Increment returns the partition window's length for the format at
// tsNanos.
func Increment(format string, tsNanos int64) (time.Duration, error) {
	min, max, err := Bounds(format, tsNanos)
	if err != nil {
		return 0, err
	}
	return time.Duration(max - min), nil
}

// RenderName formats tsNanos using format the way strftime would,
// bounded to MaxNameLen bytes.
func RenderName(format string, tsNanos int64) (string, error) {
	t := time.Unix(0, tsNanos).UTC()
	name := strftime.Format(format, t)
	if len(name) > MaxNameLen {
		return "", fmt.Errorf("%w: %q is %d bytes, limit %d", ErrNameTooLong, format, len(name), MaxNameLen)
	}
	if name == "" {
		return "", fmt.Errorf("calendar: partition format %q rendered an empty name", format)
	}
	return name, nil
}
