// Package display formats stopwatch times for people.
package display

import (
	"fmt"
	"time"
)

// FormatElapsed renders whole seconds as MM:SS, or H:MM:SS from one hour up.
// Negative input renders as zero.
func FormatElapsed(elapsedMs int64) string {
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	total := elapsedMs / 1000
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// FormatPrecise renders MM:SS.cc with hundredths, prefixed by hours when set.
func FormatPrecise(elapsedMs int64) string {
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	centis := (elapsedMs % 1000) / 10
	return fmt.Sprintf("%s.%02d", FormatElapsed(elapsedMs), centis)
}

// FormatInterval renders an interval as a Go duration, e.g. "30s" or "500ms".
// Zero or negative intervals read "off".
func FormatInterval(intervalMs int64) string {
	if intervalMs <= 0 {
		return "off"
	}
	return (time.Duration(intervalMs) * time.Millisecond).String()
}
