package occupancy

import (
	"fmt"
	"time"
)

// HourStampLayout is the canonical hour-timestamp format used for day
// document keys and raw snapshot keys. Minutes are always "00"; the format
// sorts lexicographically in chronological order, which consumers rely on.
const HourStampLayout = "2006-01-02T15:04"

// DateLayout is the date portion of an hour stamp.
const DateLayout = "2006-01-02"

// HourStamp formats t as a canonical hour stamp in loc, truncated to the
// wall-clock hour. Truncation happens on the time value, never by string
// slicing, and zeroes the minute in local time: Truncate alone operates on
// absolute time and would leave residual minutes in zones with a
// non-whole-hour UTC offset.
func HourStamp(t time.Time, loc *time.Location) string {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), 0, 0, 0, loc).Format(HourStampLayout)
}

// ParseHourStamp parses a canonical hour stamp in loc.
func ParseHourStamp(stamp string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(HourStampLayout, stamp, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid hour stamp %q: %w", stamp, err)
	}
	if t.Minute() != 0 {
		return time.Time{}, fmt.Errorf("invalid hour stamp %q: minutes must be zero", stamp)
	}
	return t, nil
}

// DateOf returns the date portion of an hour stamp.
func DateOf(stamp string) string {
	if len(stamp) < len(DateLayout) {
		return stamp
	}
	return stamp[:len(DateLayout)]
}

// IsFirstHour reports whether stamp is the day's designated first hour.
// The first hour of a day never looks back at the previous day's baseline,
// so delta and churn are forced to zero there.
func IsFirstHour(stamp string, loc *time.Location, startHour int) bool {
	t, err := ParseHourStamp(stamp, loc)
	if err != nil {
		return false
	}
	return t.Hour() == startHour
}
