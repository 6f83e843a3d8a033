package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Callbacks run synchronously inside
// Advance, in due-time order, so tests observe every tick deterministically.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending map[*fakeEntry]struct{}
}

type fakeEntry struct {
	clock  *Fake
	due    time.Time
	period time.Duration // zero for one-shot timers
	seq    uint64
	f      func()
}

// NewFake returns a Fake positioned at now.
func NewFake(now time.Time) *Fake {
	return &Fake{
		now:     now,
		pending: make(map[*fakeEntry]struct{}),
	}
}

// Now implements Clock.Now.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc implements Clock.AfterFunc. The callback runs on the goroutine
// calling Advance.
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	return c.add(d, 0, f)
}

// TickFunc implements Clock.TickFunc.
func (c *Fake) TickFunc(period time.Duration, f func()) Ticker {
	if period <= 0 {
		panic("clock: non-positive TickFunc period")
	}
	return fakeTicker{entry: c.add(period, period, f)}
}

func (c *Fake) add(d, period time.Duration, f func()) *fakeEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	e := &fakeEntry{
		clock:  c,
		due:    c.now.Add(d),
		period: period,
		seq:    c.seq,
		f:      f,
	}
	c.pending[e] = struct{}{}
	return e
}

// Advance moves the clock forward by d, firing everything that falls due.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.earliestLocked(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.due
		if next.period > 0 {
			next.due = next.due.Add(next.period)
		} else {
			delete(c.pending, next)
		}
		f := next.f
		c.mu.Unlock()

		f()
	}
}

// Pending returns the number of armed timers and tickers.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Fake) earliestLocked(limit time.Time) *fakeEntry {
	var best *fakeEntry
	for e := range c.pending {
		if e.due.After(limit) {
			continue
		}
		if best == nil || e.due.Before(best.due) || (e.due.Equal(best.due) && e.seq < best.seq) {
			best = e
		}
	}
	return best
}

func (e *fakeEntry) remove() bool {
	e.clock.mu.Lock()
	defer e.clock.mu.Unlock()
	if _, ok := e.clock.pending[e]; !ok {
		return false
	}
	delete(e.clock.pending, e)
	return true
}

// Stop implements Timer.Stop.
func (e *fakeEntry) Stop() bool {
	return e.remove()
}

type fakeTicker struct {
	entry *fakeEntry
}

// Stop implements Ticker.Stop.
func (t fakeTicker) Stop() {
	t.entry.remove()
}
