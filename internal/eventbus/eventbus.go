package eventbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/mescon/beepwatch/internal/domain"
	"github.com/mescon/beepwatch/internal/logger"
)

// Handler reacts to a published event. A returned error is logged and
// isolated; it never reaches the publisher.
type Handler func(domain.Event) error

// SubscriptionID identifies one registration made by Subscribe.
type SubscriptionID uint64

// FailureHook is told about every handler error or panic.
type FailureHook func(eventType domain.EventType, err error)

// Publisher defines the interface for publishing events.
// This interface enables testing with mock implementations.
type Publisher interface {
	Publish(event domain.Event)
	Subscribe(eventType domain.EventType, handler Handler) SubscriptionID
	Unsubscribe(eventType domain.EventType, id SubscriptionID)
}

// Ensure EventBus implements Publisher
var _ Publisher = (*EventBus)(nil)

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// EventBus dispatches events synchronously, in registration order, on the
// publishing goroutine.
type EventBus struct {
	subscribers map[domain.EventType][]subscription
	nextID      SubscriptionID
	onFailure   FailureHook
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[domain.EventType][]subscription),
	}
}

// SetFailureHook installs a callback for handler failures. Pass nil to remove it.
func (eb *EventBus) SetFailureHook(hook FailureHook) {
	eb.mu.Lock()
	eb.onFailure = hook
	eb.mu.Unlock()
}

// Subscribe registers handler for eventType. Registering the same handler
// twice yields two independent subscriptions.
func (eb *EventBus) Subscribe(eventType domain.EventType, handler Handler) SubscriptionID {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	id := eb.nextID
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscription{id: id, handler: handler})
	logger.Debugf("EventBus: Registered handler %d for %s (total: %d)", id, eventType, len(eb.subscribers[eventType]))
	return id
}

// Unsubscribe removes a single registration. Unknown event types or IDs are ignored.
func (eb *EventBus) Unsubscribe(eventType domain.EventType, id SubscriptionID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs, ok := eb.subscribers[eventType]
	if !ok {
		return
	}

	// Copy instead of filtering in place: Publish may be iterating a snapshot.
	remaining := make([]subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.id != id {
			remaining = append(remaining, sub)
		}
	}

	if len(remaining) == 0 {
		delete(eb.subscribers, eventType)
		return
	}
	eb.subscribers[eventType] = remaining
}

// HandlerCount returns the number of handlers registered for eventType.
func (eb *EventBus) HandlerCount(eventType domain.EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers[eventType])
}

// Publish invokes every handler registered for the event's type. Handler
// errors and panics are logged and do not stop the remaining handlers.
func (eb *EventBus) Publish(event domain.Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	eb.mu.RLock()
	subs := eb.subscribers[event.EventType]
	hook := eb.onFailure
	eb.mu.RUnlock()

	if len(subs) == 0 {
		logger.Debugf("EventBus: No handlers for %s", event.EventType)
		return
	}

	for i, sub := range subs {
		if err := invoke(sub.handler, event); err != nil {
			logger.Errorf("EventBus: Handler #%d for %s failed: %v", i+1, event.EventType, err)
			if hook != nil {
				hook(event.EventType, err)
			}
		}
	}
}

func invoke(handler Handler, event domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(event)
}
