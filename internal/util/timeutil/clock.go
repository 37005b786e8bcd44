package timeutil

import (
	"fmt"
	"time"
)

// Now returns the current time. This can be overridden for testing.
var Now = func() time.Time {
	return time.Now()
}

// Since returns the elapsed time according to Now.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}

// DurationToMillis converts a duration to milliseconds
func DurationToMillis(d time.Duration) int64 {
	return d.Nanoseconds() / 1e6
}

// MillisToDuration converts milliseconds to a duration
func MillisToDuration(millis int64) time.Duration {
	return time.Duration(millis) * time.Millisecond
}

// FormatDuration renders a duration for human display, keeping
// sub-millisecond noise out of shell and explain output.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000.0)
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}
