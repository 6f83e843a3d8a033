package notifier

import (
	"fmt"
	"sync"
	"time"

	"github.com/containrrr/shoutrrr"

	"github.com/mescon/beepwatch/internal/display"
	"github.com/mescon/beepwatch/internal/domain"
	"github.com/mescon/beepwatch/internal/eventbus"
	"github.com/mescon/beepwatch/internal/logger"
)

// SendFunc delivers message to a shoutrrr URL.
type SendFunc func(url, message string) error

// notifiedEvents are the events that trigger a push.
var notifiedEvents = []domain.EventType{
	domain.TimeReached,
	domain.WakeLockFailed,
}

type target struct {
	url   string
	label string
}

// Notifier pushes beeps and wake-lock failures to remote services via shoutrrr.
type Notifier struct {
	bus      eventbus.Publisher
	targets  []target
	throttle time.Duration
	send     SendFunc
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[int]time.Time // Per-target throttling
	subs     map[domain.EventType]eventbus.SubscriptionID
	wg       sync.WaitGroup // In-flight sends
}

// NewNotifier validates urls and returns a notifier that sends at most one
// message per target every throttle. Invalid URLs are an error.
func NewNotifier(bus eventbus.Publisher, urls []string, throttle time.Duration) (*Notifier, error) {
	targets := make([]target, 0, len(urls))
	for i, raw := range urls {
		u, err := NormalizeURL(raw)
		if err != nil {
			return nil, fmt.Errorf("notify url #%d: %w", i+1, err)
		}
		targets = append(targets, target{url: u, label: redactURL(u)})
	}

	return &Notifier{
		bus:      bus,
		targets:  targets,
		throttle: throttle,
		send:     shoutrrr.Send,
		now:      time.Now,
		lastSent: make(map[int]time.Time),
		subs:     make(map[domain.EventType]eventbus.SubscriptionID),
	}, nil
}

// SetSender replaces the delivery function; tests use it to capture messages.
func (n *Notifier) SetSender(send SendFunc) {
	n.mu.Lock()
	n.send = send
	n.mu.Unlock()
}

// Targets returns the number of configured destinations.
func (n *Notifier) Targets() int {
	return len(n.targets)
}

// Start subscribes to notified events. It does nothing without targets.
func (n *Notifier) Start() {
	if len(n.targets) == 0 {
		logger.Debugf("Notifier: no targets configured")
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.subs) > 0 {
		return
	}
	for _, eventType := range notifiedEvents {
		n.subs[eventType] = n.bus.Subscribe(eventType, n.handleEvent)
	}
	logger.Infof("Notifier started with %d targets", len(n.targets))
}

// Stop unsubscribes and waits for in-flight sends.
func (n *Notifier) Stop() {
	n.mu.Lock()
	for eventType, id := range n.subs {
		n.bus.Unsubscribe(eventType, id)
		delete(n.subs, eventType)
	}
	n.mu.Unlock()
	n.wg.Wait()
}

func (n *Notifier) handleEvent(event domain.Event) error {
	message, ok := formatMessage(event)
	if !ok {
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	for i, t := range n.targets {
		if !n.canSendLocked(i, now) {
			logger.Debugf("Throttled notification to %s for %s", t.label, event.EventType)
			continue
		}
		n.lastSent[i] = now
		n.wg.Add(1)
		go n.deliver(n.send, t, event.EventType, message)
	}
	return nil
}

func (n *Notifier) canSendLocked(i int, now time.Time) bool {
	last, exists := n.lastSent[i]
	if !exists {
		return true
	}
	return now.Sub(last) >= n.throttle
}

func (n *Notifier) deliver(send SendFunc, t target, eventType domain.EventType, message string) {
	defer n.wg.Done()
	if err := send(t.url, message); err != nil {
		logger.Errorf("Failed to send %s notification to %s: %v", eventType, t.label, err)
		return
	}
	logger.Debugf("Sent %s notification to %s", eventType, t.label)
}

// formatMessage renders the push text for an event.
func formatMessage(event domain.Event) (string, bool) {
	switch event.EventType {
	case domain.TimeReached:
		data, ok := event.ParseTimeReachedData()
		if !ok {
			return "", false
		}
		return fmt.Sprintf("Beep at %s", display.FormatElapsed(data.CurrentTime)), true
	case domain.WakeLockFailed:
		data, ok := event.ParseWakeLockFailedData()
		if !ok {
			return "", false
		}
		return fmt.Sprintf("Wake lock %s failed: %s", data.Operation, data.Error), true
	default:
		return "", false
	}
}
