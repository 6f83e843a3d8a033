package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

var (
	_ Clock  = System
	_ Clock  = (*Fake)(nil)
	_ Timer  = (*time.Timer)(nil)
	_ Ticker = (*tickLoop)(nil)
)

func TestSystem_Now(t *testing.T) {
	before := time.Now()
	got := System.Now()
	if got.Before(before) || got.After(time.Now()) {
		t.Errorf("System.Now() = %v, outside the surrounding time.Now() calls", got)
	}
}

func TestSystem_AfterFunc(t *testing.T) {
	fired := make(chan struct{})
	System.AfterFunc(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("AfterFunc callback never ran")
	}
}

func TestSystem_AfterFuncStop(t *testing.T) {
	var fired atomic.Bool
	timer := System.AfterFunc(50*time.Millisecond, func() { fired.Store(true) })

	if !timer.Stop() {
		t.Fatal("Stop() before the deadline should report true")
	}
	time.Sleep(80 * time.Millisecond)
	if fired.Load() {
		t.Error("stopped timer fired")
	}
	if timer.Stop() {
		t.Error("second Stop() should report false")
	}
}

func TestSystem_TickFunc(t *testing.T) {
	var ticks atomic.Int32
	reached := make(chan struct{})
	ticker := System.TickFunc(2*time.Millisecond, func() {
		if ticks.Add(1) == 3 {
			close(reached)
		}
	})
	defer ticker.Stop()

	select {
	case <-reached:
	case <-time.After(time.Second):
		t.Fatalf("only %d ticks in a second", ticks.Load())
	}
}

func TestSystem_TickFuncStop(t *testing.T) {
	var ticks atomic.Int32
	ticker := System.TickFunc(2*time.Millisecond, func() { ticks.Add(1) })

	time.Sleep(20 * time.Millisecond)
	ticker.Stop()
	ticker.Stop()
	// an in-flight tick may still finish
	time.Sleep(5 * time.Millisecond)
	settled := ticks.Load()

	time.Sleep(30 * time.Millisecond)
	if got := ticks.Load(); got != settled {
		t.Errorf("ticks continued after Stop(): %d -> %d", settled, got)
	}
}

func TestSystem_TickFuncNoOverlap(t *testing.T) {
	var running, overlaps atomic.Int32
	ticker := System.TickFunc(time.Millisecond, func() {
		if running.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(3 * time.Millisecond)
		running.Add(-1)
	})

	time.Sleep(30 * time.Millisecond)
	ticker.Stop()

	if n := overlaps.Load(); n > 0 {
		t.Errorf("%d overlapping tick calls", n)
	}
}
