package stopwatch

import (
	"time"

	"github.com/mescon/beepwatch/internal/clock"
	"github.com/mescon/beepwatch/internal/wakelock"
)

const (
	// DefaultTickGranularity is the elapsed-time step applied on every tick.
	DefaultTickGranularity = 10 * time.Millisecond
	// DefaultBeepFlash is how long the beeping flag stays set after a beep.
	DefaultBeepFlash = 500 * time.Millisecond
	// DefaultInterval matches the interval shown to a fresh session.
	DefaultInterval = 30 * time.Second

	wakeLockTimeout = 5 * time.Second
)

type options struct {
	clock       clock.Clock
	interval    time.Duration
	granularity time.Duration
	beepFlash   time.Duration
	wakeLock    wakelock.Lock
	sessionID   string
}

// Option configures a Stopwatch.
type Option func(*options)

// WithClock injects the time source. Tests pass a *clock.Fake.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithInterval sets the initial beep interval. Values <= 0 disable beeping.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		o.interval = d
	}
}

// WithTickGranularity overrides the tick period. Non-positive values are ignored.
func WithTickGranularity(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.granularity = d
		}
	}
}

// WithBeepFlash overrides how long Snapshot reports Beeping after a beep.
func WithBeepFlash(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.beepFlash = d
		}
	}
}

// WithWakeLock sets the wake-lock collaborator.
func WithWakeLock(l wakelock.Lock) Option {
	return func(o *options) {
		if l != nil {
			o.wakeLock = l
		}
	}
}

// WithSessionID fixes the session identifier stamped on published events.
func WithSessionID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.sessionID = id
		}
	}
}
