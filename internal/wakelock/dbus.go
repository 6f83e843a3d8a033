package wakelock

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/mescon/beepwatch/internal/logger"
)

const (
	screenSaverDest      = "org.freedesktop.ScreenSaver"
	screenSaverPath      = dbus.ObjectPath("/org/freedesktop/ScreenSaver")
	screenSaverInhibit   = screenSaverDest + ".Inhibit"
	screenSaverUnInhibit = screenSaverDest + ".UnInhibit"

	inhibitReason = "Interval stopwatch running"
)

// caller is the subset of dbus.BusObject used by the inhibitor.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// ScreenSaverInhibitor holds an org.freedesktop.ScreenSaver inhibit cookie
// while active.
type ScreenSaverInhibitor struct {
	obj     caller
	appName string
	closeFn func() error

	mu     sync.Mutex
	cookie uint32
	active bool
}

var _ Lock = (*ScreenSaverInhibitor)(nil)

// NewScreenSaverInhibitor connects to the session bus.
func NewScreenSaverInhibitor(appName string) (*ScreenSaverInhibitor, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return newScreenSaverInhibitor(conn.Object(screenSaverDest, screenSaverPath), appName, conn.Close), nil
}

func newScreenSaverInhibitor(obj caller, appName string, closeFn func() error) *ScreenSaverInhibitor {
	return &ScreenSaverInhibitor{obj: obj, appName: appName, closeFn: closeFn}
}

func (s *ScreenSaverInhibitor) IsSupported() bool { return true }

func (s *ScreenSaverInhibitor) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Request inhibits the screensaver. It is a no-op when already active.
func (s *ScreenSaverInhibitor) Request(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return nil
	}

	var cookie uint32
	call := s.obj.CallWithContext(ctx, screenSaverInhibit, 0, s.appName, inhibitReason)
	if err := call.Store(&cookie); err != nil {
		return fmt.Errorf("screensaver inhibit: %w", err)
	}

	s.cookie = cookie
	s.active = true
	logger.Debugf("Wake lock acquired (cookie %d)", cookie)
	return nil
}

// Release drops the inhibit cookie. The lock is cleared even if the bus call fails.
func (s *ScreenSaverInhibitor) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil
	}

	cookie := s.cookie
	s.active = false
	s.cookie = 0

	if call := s.obj.CallWithContext(ctx, screenSaverUnInhibit, 0, cookie); call.Err != nil {
		return fmt.Errorf("screensaver uninhibit: %w", call.Err)
	}
	logger.Debugf("Wake lock released (cookie %d)", cookie)
	return nil
}

// Close releases any held lock and closes the bus connection.
func (s *ScreenSaverInhibitor) Close(ctx context.Context) error {
	releaseErr := s.Release(ctx)
	if s.closeFn == nil {
		return releaseErr
	}
	if err := s.closeFn(); err != nil {
		return fmt.Errorf("close session bus: %w", err)
	}
	return releaseErr
}
