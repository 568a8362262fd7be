package model

import (
	"fmt"
	"time"

	appErr "autograde/pkg/errors"
)

// TimestampLayout is the minute-resolution form embedded in filenames.
const TimestampLayout = "20060102-1504"

// ParseTimestamp parses a YYYYMMDD-HHMM timestamp in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if len(s) != len(TimestampLayout) {
		return time.Time{}, appErr.Newf(appErr.InvalidFormat, "invalid timestamp %q", s)
	}
	t, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, appErr.Wrapf(err, appErr.InvalidFormat, "invalid timestamp %q", s)
	}
	return t, nil
}

// FormatTimestamp renders t in the filename timestamp form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// FormatOffset renders a signed lateness offset as "+2d 3h 05m".
// Zero and negative offsets use "-".
func FormatOffset(d time.Duration) string {
	sign := "-"
	if d > 0 {
		sign = "+"
	} else {
		d = -d
	}
	total := int64(d / time.Minute)
	days := total / (24 * 60)
	hours := (total / 60) % 24
	minutes := total % 60
	return fmt.Sprintf("%s%dd %dh %02dm", sign, days, hours, minutes)
}
