package metricvalue

import (
	"fmt"
	"time"
)

// TimeUnit is the resolution a datetime or timespan is reported in
type TimeUnit string

const (
	TimeUnitNanosecond  TimeUnit = "nanosecond"
	TimeUnitMicrosecond TimeUnit = "microsecond"
	TimeUnitMillisecond TimeUnit = "millisecond"
	TimeUnitSecond      TimeUnit = "second"
	TimeUnitMinute      TimeUnit = "minute"
	TimeUnitHour        TimeUnit = "hour"
	TimeUnitDay         TimeUnit = "day"
)

// ParseTimeUnit reads a time unit out of a stored value
func ParseTimeUnit(v any) (TimeUnit, error) {
	s, _ := v.(string)
	switch unit := TimeUnit(s); unit {
	case TimeUnitNanosecond, TimeUnitMicrosecond, TimeUnitMillisecond,
		TimeUnitSecond, TimeUnitMinute, TimeUnitHour, TimeUnitDay:
		return unit, nil
	default:
		return "", fmt.Errorf("invalid time unit %v", v)
	}
}

// Duration returns the length of one unit
func (u TimeUnit) Duration() time.Duration {
	switch u {
	case TimeUnitNanosecond:
		return time.Nanosecond
	case TimeUnitMicrosecond:
		return time.Microsecond
	case TimeUnitSecond:
		return time.Second
	case TimeUnitMinute:
		return time.Minute
	case TimeUnitHour:
		return time.Hour
	case TimeUnitDay:
		return 24 * time.Hour
	default:
		return time.Millisecond
	}
}

// Convert expresses d in whole units, truncating
func (u TimeUnit) Convert(d time.Duration) int64 {
	return int64(d / u.Duration())
}

// datetimeLayouts truncate the ISO-8601 representation to the unit
var datetimeLayouts = map[TimeUnit]string{
	TimeUnitNanosecond:  "2006-01-02T15:04:05.000000000-07:00",
	TimeUnitMicrosecond: "2006-01-02T15:04:05.000000-07:00",
	TimeUnitMillisecond: "2006-01-02T15:04:05.000-07:00",
	TimeUnitSecond:      "2006-01-02T15:04:05-07:00",
	TimeUnitMinute:      "2006-01-02T15:04-07:00",
	TimeUnitHour:        "2006-01-02T15-07:00",
	TimeUnitDay:         "2006-01-02-07:00",
}

// FormatDatetime renders t in the payload format for the given unit
func FormatDatetime(t time.Time, unit TimeUnit) string {
	layout, ok := datetimeLayouts[unit]
	if !ok {
		layout = datetimeLayouts[TimeUnitMillisecond]
	}
	return t.Format(layout)
}
