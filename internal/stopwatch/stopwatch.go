// Package stopwatch owns the elapsed-time state machine. It drives a periodic
// tick from an injected clock, asks the beep scheduler whether a beep is due
// and announces lifecycle and beep events on an event bus.
package stopwatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mescon/beepwatch/internal/beep"
	"github.com/mescon/beepwatch/internal/clock"
	"github.com/mescon/beepwatch/internal/domain"
	"github.com/mescon/beepwatch/internal/eventbus"
	"github.com/mescon/beepwatch/internal/logger"
	"github.com/mescon/beepwatch/internal/wakelock"
)

// State is the stopwatch lifecycle state.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is a read-only copy of the stopwatch state for display.
type Snapshot struct {
	SessionID      string `json:"session_id"`
	State          string `json:"state"`
	Running        bool   `json:"running"`
	ElapsedMs      int64  `json:"elapsed_ms"`
	IntervalMs     int64  `json:"interval_ms"`
	NextBeepAtMs   int64  `json:"next_beep_at_ms"`
	Beeping        bool   `json:"beeping"`
	WakeLockActive bool   `json:"wake_lock_active"`
}

// Stopwatch is an interval stopwatch. Control methods are safe for concurrent
// use and are serialized with tick handling, so events are published in the
// order the state changed. Event handlers may call Snapshot but must not call
// control methods synchronously.
type Stopwatch struct {
	bus           eventbus.Publisher
	clock         clock.Clock
	wakeLock      wakelock.Lock
	sessionID     string
	granularity   time.Duration
	granularityMs int64
	beepFlash     time.Duration

	// opMu serializes operations, ticks and event publication.
	opMu       sync.Mutex
	ticker     clock.Ticker
	generation uint64
	flashTimer clock.Timer
	closed     bool

	mu         sync.RWMutex
	elapsed    int64
	running    bool
	interval   int64
	nextBeepAt int64
	beeping    bool
	flashSeq   uint64

	wakeMu      sync.Mutex
	wake        wakeTarget
	workerDone  chan struct{}
	wakeNotices sync.WaitGroup
	closeOnce   sync.Once
	closeErr    error
}

// New creates an idle stopwatch publishing on bus.
func New(bus eventbus.Publisher, opts ...Option) *Stopwatch {
	o := options{
		clock:       clock.System,
		interval:    DefaultInterval,
		granularity: DefaultTickGranularity,
		beepFlash:   DefaultBeepFlash,
		wakeLock:    wakelock.Unsupported{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sessionID == "" {
		o.sessionID = uuid.NewString()
	}

	s := &Stopwatch{
		bus:           bus,
		clock:         o.clock,
		wakeLock:      o.wakeLock,
		sessionID:     o.sessionID,
		granularity:   o.granularity,
		granularityMs: o.granularity.Milliseconds(),
		beepFlash:     o.beepFlash,
		interval:      intervalMillis(o.interval),
		wake:          newWakeTarget(),
		workerDone:    make(chan struct{}),
	}
	s.nextBeepAt = beep.ComputeNextBeepAt(0, s.interval)

	go s.runWakeLockWorker()

	logger.Debugf("Stopwatch %s: created (interval %dms, tick %v)", s.sessionID, s.interval, s.granularity)
	return s
}

// SessionID identifies this stopwatch on every event it publishes.
func (s *Stopwatch) SessionID() string {
	return s.sessionID
}

// Start moves the stopwatch to Running, schedules the next beep relative to
// the current elapsed time and arms the tick source. Calling Start while
// already running only re-arms the tick source.
func (s *Stopwatch) Start() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.closed {
		logger.Warnf("Stopwatch %s: start ignored after close", s.sessionID)
		return
	}

	s.cancelTickerLocked()

	s.mu.Lock()
	wasRunning := s.running
	s.running = true
	if !wasRunning {
		s.nextBeepAt = beep.ComputeNextBeepAt(s.elapsed, s.interval)
	}
	elapsed := s.elapsed
	next := s.nextBeepAt
	s.mu.Unlock()

	if wasRunning {
		s.armTickerLocked()
		logger.Debugf("Stopwatch %s: already running, tick source re-armed", s.sessionID)
		return
	}

	s.publishLocked(domain.StopwatchStarted, map[string]interface{}{
		domain.KeyStartTime: elapsed,
	})
	s.armTickerLocked()
	s.wantWakeLockLocked(true)

	logger.Infof("Stopwatch %s: started at %dms (next beep at %dms)", s.sessionID, elapsed, next)
}

// Stop moves the stopwatch to Idle and cancels the tick source. It is a no-op
// when the stopwatch is not running.
func (s *Stopwatch) Stop() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.closed {
		return
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	elapsed := s.elapsed
	s.mu.Unlock()

	s.cancelTickerLocked()
	s.publishLocked(domain.StopwatchStopped, map[string]interface{}{
		domain.KeyStopTime: elapsed,
	})
	s.wantWakeLockLocked(false)

	logger.Infof("Stopwatch %s: stopped at %dms", s.sessionID, elapsed)
}

// Reset zeroes the elapsed time without changing the running state. The next
// beep is primed one full interval from zero and a pending beep flash ends.
func (s *Stopwatch) Reset() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.closed {
		return
	}

	if s.flashTimer != nil {
		s.flashTimer.Stop()
		s.flashTimer = nil
	}

	s.mu.Lock()
	s.elapsed = 0
	s.nextBeepAt = beep.ComputeNextBeepAt(0, s.interval)
	s.beeping = false
	s.flashSeq++
	running := s.running
	s.mu.Unlock()

	s.publishLocked(domain.StopwatchReset, map[string]interface{}{})

	logger.Infof("Stopwatch %s: reset (running: %v)", s.sessionID, running)
}

// SetInterval changes the beep interval. Durations below one millisecond
// disable beeping. While running the next beep is rescheduled immediately
// from the current elapsed time; while idle it is rescheduled on Start.
func (s *Stopwatch) SetInterval(d time.Duration) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.closed {
		return
	}

	interval := intervalMillis(d)

	s.mu.Lock()
	s.interval = interval
	if s.running {
		s.nextBeepAt = beep.ComputeNextBeepAt(s.elapsed, interval)
	}
	next := s.nextBeepAt
	s.mu.Unlock()

	s.publishLocked(domain.IntervalChanged, map[string]interface{}{
		domain.KeyInterval:   interval,
		domain.KeyNextBeepAt: next,
	})

	if interval == 0 {
		logger.Infof("Stopwatch %s: beeping disabled", s.sessionID)
		return
	}
	logger.Infof("Stopwatch %s: interval set to %dms (next beep at %dms)", s.sessionID, interval, next)
}

// Snapshot returns the current state. It is safe to call from event handlers.
func (s *Stopwatch) Snapshot() Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		SessionID:    s.sessionID,
		State:        Idle.String(),
		Running:      s.running,
		ElapsedMs:    s.elapsed,
		IntervalMs:   s.interval,
		NextBeepAtMs: s.nextBeepAt,
		Beeping:      s.beeping,
	}
	s.mu.RUnlock()

	if snap.Running {
		snap.State = Running.String()
	}
	snap.WakeLockActive = s.wakeLock.IsActive()
	return snap
}

// Close tears the stopwatch down: ticks and the flash timer are cancelled,
// the wake-lock worker stops after any call in flight and a held wake lock
// is released. No lifecycle event is published. Close is idempotent.
func (s *Stopwatch) Close() error {
	s.closeOnce.Do(func() {
		s.opMu.Lock()
		s.closed = true
		s.cancelTickerLocked()
		if s.flashTimer != nil {
			s.flashTimer.Stop()
			s.flashTimer = nil
		}
		s.mu.Lock()
		s.running = false
		s.beeping = false
		s.mu.Unlock()
		s.wakeMu.Lock()
		s.wake.hold = false
		s.wakeMu.Unlock()
		close(s.wake.stop)
		s.opMu.Unlock()

		<-s.workerDone
		s.wakeNotices.Wait()

		if s.wakeLock.IsActive() {
			ctx, cancel := context.WithTimeout(context.Background(), wakeLockTimeout)
			defer cancel()
			if err := s.wakeLock.Release(ctx); err != nil {
				s.closeErr = fmt.Errorf("release wake lock: %w", err)
			}
		}
		logger.Debugf("Stopwatch %s: closed", s.sessionID)
	})
	return s.closeErr
}

func (s *Stopwatch) armTickerLocked() {
	s.generation++
	gen := s.generation
	s.ticker = s.clock.TickFunc(s.granularity, func() { s.tick(gen) })
}

// cancelTickerLocked is idempotent. Bumping the generation discards a tick
// that was already waiting on opMu when the source was cancelled.
func (s *Stopwatch) cancelTickerLocked() {
	s.generation++
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

func (s *Stopwatch) tick(gen uint64) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.closed || gen != s.generation {
		return
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.elapsed += s.granularityMs
	elapsed := s.elapsed
	due := beep.IsBeepDue(elapsed, s.nextBeepAt)
	s.mu.Unlock()

	if !due {
		return
	}

	s.publishLocked(domain.TimeReached, map[string]interface{}{
		domain.KeyCurrentTime: elapsed,
	})

	s.mu.Lock()
	s.nextBeepAt = beep.Advance(s.nextBeepAt, s.interval)
	next := s.nextBeepAt
	s.mu.Unlock()

	s.flashLocked()
	logger.Debugf("Stopwatch %s: beep at %dms, next at %dms", s.sessionID, elapsed, next)
}

// flashLocked sets the beeping flag and (re)arms the timer that clears it.
func (s *Stopwatch) flashLocked() {
	if s.flashTimer != nil {
		s.flashTimer.Stop()
	}

	s.mu.Lock()
	s.beeping = true
	s.flashSeq++
	seq := s.flashSeq
	s.mu.Unlock()

	s.flashTimer = s.clock.AfterFunc(s.beepFlash, func() {
		s.mu.Lock()
		if s.flashSeq == seq {
			s.beeping = false
		}
		s.mu.Unlock()
	})
}

func (s *Stopwatch) publishLocked(eventType domain.EventType, data map[string]interface{}) {
	event := domain.NewEvent(s.sessionID, eventType, data)
	event.CreatedAt = s.clock.Now().UTC()
	s.bus.Publish(event)
}

func intervalMillis(d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
