package stopwatch

import (
	"context"

	"github.com/mescon/beepwatch/internal/domain"
	"github.com/mescon/beepwatch/internal/logger"
)

// wakeTarget is the wake-lock state the stopwatch wants. Start and Stop only
// record it; the worker brings the platform lock in line.
type wakeTarget struct {
	hold  bool
	dirty chan struct{} // one slot, coalesces signals
	stop  chan struct{}
}

func newWakeTarget() wakeTarget {
	return wakeTarget{dirty: make(chan struct{}, 1), stop: make(chan struct{})}
}

// wantWakeLockLocked never blocks, however long the platform call in flight takes.
func (s *Stopwatch) wantWakeLockLocked(hold bool) {
	if !s.wakeLock.IsSupported() {
		return
	}
	s.wakeMu.Lock()
	s.wake.hold = hold
	s.wakeMu.Unlock()

	select {
	case s.wake.dirty <- struct{}{}:
	default:
	}
}

func (s *Stopwatch) runWakeLockWorker() {
	defer close(s.workerDone)

	for {
		select {
		case <-s.wake.stop:
			return
		case <-s.wake.dirty:
		}
		s.reconcileWakeLock()
	}
}

// reconcileWakeLock requests or releases the lock when it differs from the
// wanted state. Toggles made while a call was in flight collapse into one.
func (s *Stopwatch) reconcileWakeLock() {
	s.wakeMu.Lock()
	hold := s.wake.hold
	s.wakeMu.Unlock()

	if hold == s.wakeLock.IsActive() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), wakeLockTimeout)
	defer cancel()

	op, apply := "release", s.wakeLock.Release
	if hold {
		op, apply = "request", s.wakeLock.Request
	}
	if err := apply(ctx); err != nil {
		logger.Warnf("Stopwatch %s: wake lock %s failed: %v", s.sessionID, op, err)
		s.reportWakeFailure(op, err)
	}
}

// reportWakeFailure publishes from its own goroutine: the worker must never
// wait on opMu.
func (s *Stopwatch) reportWakeFailure(op string, err error) {
	s.wakeNotices.Add(1)
	go func() {
		defer s.wakeNotices.Done()

		s.opMu.Lock()
		defer s.opMu.Unlock()
		if s.closed {
			return
		}
		s.publishLocked(domain.WakeLockFailed, map[string]interface{}{
			domain.KeyOperation: op,
			domain.KeyError:     err.Error(),
		})
	}()
}
