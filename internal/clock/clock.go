// Package clock abstracts the timers the stopwatch schedules on, so tests can
// drive them with Fake instead of sleeping.
package clock

import (
	"sync"
	"time"
)

// Clock is the time source for the stopwatch.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f once after d, on its own goroutine.
	AfterFunc(d time.Duration, f func()) Timer
	// TickFunc calls f every period until stopped. Calls never overlap.
	TickFunc(period time.Duration, f func()) Ticker
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop reports whether it prevented the call.
	Stop() bool
}

// Ticker is a running TickFunc loop. Stop may be called more than once.
type Ticker interface {
	Stop()
}

// System is the wall clock.
var System Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (systemClock) TickFunc(period time.Duration, f func()) Ticker {
	l := &tickLoop{done: make(chan struct{})}
	go l.run(time.NewTicker(period), f)
	return l
}

type tickLoop struct {
	done chan struct{}
	once sync.Once
}

func (l *tickLoop) run(ticker *time.Ticker, f func()) {
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
		}
		// Both channels may be ready at once; a stopped loop must not call f.
		select {
		case <-l.done:
			return
		default:
			f()
		}
	}
}

func (l *tickLoop) Stop() {
	l.once.Do(func() { close(l.done) })
}
