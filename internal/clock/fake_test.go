package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_Now(t *testing.T) {
	c := NewFake(epoch)
	assert.Equal(t, epoch, c.Now())

	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, epoch.Add(1500*time.Millisecond), c.Now())
}

func TestFake_AfterFunc(t *testing.T) {
	c := NewFake(epoch)
	fired := 0
	c.AfterFunc(500*time.Millisecond, func() { fired++ })

	c.Advance(499 * time.Millisecond)
	assert.Equal(t, 0, fired)

	c.Advance(time.Millisecond)
	assert.Equal(t, 1, fired)

	c.Advance(time.Second)
	assert.Equal(t, 1, fired, "one-shot timers fire once")
	assert.Equal(t, 0, c.Pending())
}

func TestFake_AfterFunc_Stop(t *testing.T) {
	c := NewFake(epoch)
	fired := false
	timer := c.AfterFunc(100*time.Millisecond, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second Stop reports already stopped")

	c.Advance(time.Second)
	assert.False(t, fired)
}

func TestFake_TickFunc(t *testing.T) {
	c := NewFake(epoch)
	var at []time.Duration
	ticker := c.TickFunc(10*time.Millisecond, func() {
		at = append(at, c.Now().Sub(epoch))
	})

	c.Advance(35 * time.Millisecond)
	require.Len(t, at, 3)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}, at)

	ticker.Stop()
	ticker.Stop()
	c.Advance(100 * time.Millisecond)
	assert.Len(t, at, 3)
}

func TestFake_OrdersCallbacksByDueTime(t *testing.T) {
	c := NewFake(epoch)
	var order []string
	c.AfterFunc(25*time.Millisecond, func() { order = append(order, "timer") })
	c.TickFunc(10*time.Millisecond, func() { order = append(order, "tick") })

	c.Advance(30 * time.Millisecond)
	assert.Equal(t, []string{"tick", "tick", "timer", "tick"}, order)
}

func TestFake_CallbackMayStopItself(t *testing.T) {
	c := NewFake(epoch)
	count := 0
	var ticker Ticker
	ticker = c.TickFunc(10*time.Millisecond, func() {
		count++
		if count == 2 {
			ticker.Stop()
		}
	})

	c.Advance(time.Second)
	assert.Equal(t, 2, count)
}

func TestFake_CallbackMaySchedule(t *testing.T) {
	c := NewFake(epoch)
	fired := 0
	c.AfterFunc(10*time.Millisecond, func() {
		c.AfterFunc(10*time.Millisecond, func() { fired++ })
	})

	c.Advance(20 * time.Millisecond)
	assert.Equal(t, 1, fired, "timers armed during Advance still fire within the window")
}

func TestFake_TickFunc_RejectsNonPositivePeriod(t *testing.T) {
	c := NewFake(epoch)
	assert.Panics(t, func() { c.TickFunc(0, func() {}) })
}
