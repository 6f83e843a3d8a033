package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mescon/beepwatch/internal/domain"
	"github.com/mescon/beepwatch/internal/eventbus"
)

const feedBuffer = 32

// feedEvents are the events the terminal UI reacts to beyond polling state.
var feedEvents = []domain.EventType{domain.TimeReached, domain.WakeLockFailed}

// EventFeed hands bus events to the Bubble Tea loop. Handlers never block:
// when the UI is behind, events are dropped.
type EventFeed struct {
	bus  eventbus.Publisher
	ch   chan domain.Event
	subs map[domain.EventType]eventbus.SubscriptionID

	mu     sync.Mutex
	closed bool
}

// EventMsg wraps a bus event for Update.
type EventMsg struct {
	Event domain.Event
}

// feedClosedMsg tells the model the feed has been closed.
type feedClosedMsg struct{}

func NewEventFeed(bus eventbus.Publisher) *EventFeed {
	f := &EventFeed{
		bus:  bus,
		ch:   make(chan domain.Event, feedBuffer),
		subs: make(map[domain.EventType]eventbus.SubscriptionID),
	}
	for _, t := range feedEvents {
		f.subs[t] = bus.Subscribe(t, f.forward)
	}
	return f
}

func (f *EventFeed) forward(event domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	select {
	case f.ch <- event:
	default:
	}
	return nil
}

// Wait returns a command that delivers the next event as an EventMsg.
func (f *EventFeed) Wait() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-f.ch
		if !ok {
			return feedClosedMsg{}
		}
		return EventMsg{Event: event}
	}
}

// Close unsubscribes from the bus and ends pending Wait commands.
func (f *EventFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for t, id := range f.subs {
		f.bus.Unsubscribe(t, id)
	}
	close(f.ch)
}
