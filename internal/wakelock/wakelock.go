// Package wakelock keeps the display awake while the stopwatch runs.
package wakelock

import (
	"context"
	"errors"

	"github.com/mescon/beepwatch/internal/logger"
)

// ErrUnsupported is returned by implementations that cannot hold a wake lock.
var ErrUnsupported = errors.New("wake lock not supported")

// Lock is the contract the stopwatch relies on. Implementations must be safe
// for concurrent use: IsActive may be read while Request or Release runs.
type Lock interface {
	IsSupported() bool
	IsActive() bool
	Request(ctx context.Context) error
	Release(ctx context.Context) error
}

// Unsupported is a Lock for systems without a screensaver inhibitor.
type Unsupported struct{}

var _ Lock = Unsupported{}

func (Unsupported) IsSupported() bool { return false }
func (Unsupported) IsActive() bool    { return false }

func (Unsupported) Request(context.Context) error { return ErrUnsupported }
func (Unsupported) Release(context.Context) error { return nil }

// Detect returns a D-Bus inhibitor when a session bus is reachable and
// Unsupported otherwise.
func Detect(appName string) Lock {
	inhibitor, err := NewScreenSaverInhibitor(appName)
	if err != nil {
		logger.Warnf("Wake lock unavailable: %v", err)
		return Unsupported{}
	}
	return inhibitor
}
