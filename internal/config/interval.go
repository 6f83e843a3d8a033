package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MinInterval and MaxInterval bound user-entered beep intervals.
	MinInterval = 100 * time.Millisecond
	MaxInterval = 300 * time.Second

	// DefaultInterval is the interval used when nothing else is configured.
	DefaultInterval = 30 * time.Second

	// IntervalStep is the increment used by the +/- controls.
	IntervalStep = 500 * time.Millisecond
)

// ErrIntervalOutOfRange is returned by ValidateInterval and IntervalFromMillis.
var ErrIntervalOutOfRange = errors.New("interval out of range")

// ValidateInterval checks that d lies within [MinInterval, MaxInterval].
func ValidateInterval(d time.Duration) error {
	if d < MinInterval || d > MaxInterval {
		return fmt.Errorf("%w: %v must be between %v and %v", ErrIntervalOutOfRange, d, MinInterval, MaxInterval)
	}
	return nil
}

// IntervalFromMillis validates a millisecond count from a client and converts
// it. The range is checked before converting so huge values cannot overflow
// into the allowed range.
func IntervalFromMillis(ms int64) (time.Duration, error) {
	if ms < MinInterval.Milliseconds() || ms > MaxInterval.Milliseconds() {
		return 0, fmt.Errorf("%w: %dms must be between %v and %v", ErrIntervalOutOfRange, ms, MinInterval, MaxInterval)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// ClampInterval forces d into [MinInterval, MaxInterval].
func ClampInterval(d time.Duration) time.Duration {
	if d < MinInterval {
		return MinInterval
	}
	if d > MaxInterval {
		return MaxInterval
	}
	return d
}

// ParseIntervalSeconds converts a user-entered number of seconds, such as
// "0.5" or "30", into a validated interval.
func ParseIntervalSeconds(value string) (time.Duration, error) {
	d, err := time.ParseDuration(value + "s")
	if err != nil {
		return 0, fmt.Errorf("parse interval %q: %w", value, err)
	}
	if err := ValidateInterval(d); err != nil {
		return 0, err
	}
	return d, nil
}
