package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mescon/beepwatch/internal/domain"
	"github.com/mescon/beepwatch/internal/eventbus"
)

func TestEventFeed_ForwardsSubscribedEvents(t *testing.T) {
	bus := eventbus.NewEventBus()
	feed := NewEventFeed(bus)
	defer feed.Close()

	// Lifecycle events are read from snapshots, not the feed
	bus.Publish(domain.NewEvent("s", domain.StopwatchStarted, nil))
	bus.Publish(domain.NewEvent("s", domain.TimeReached, map[string]interface{}{domain.KeyCurrentTime: int64(500)}))

	msg := feed.Wait()()
	got, ok := msg.(EventMsg)
	require.True(t, ok, "expected EventMsg, got %T", msg)
	assert.Equal(t, domain.TimeReached, got.Event.EventType)
	assert.Len(t, feed.ch, 0)
}

func TestEventFeed_DropsWhenFull(t *testing.T) {
	bus := eventbus.NewEventBus()
	feed := NewEventFeed(bus)
	defer feed.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < feedBuffer+10; i++ {
			bus.Publish(domain.NewEvent("s", domain.TimeReached, nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publishing blocked on a full feed")
	}
	assert.Len(t, feed.ch, feedBuffer)
}

func TestEventFeed_Close(t *testing.T) {
	bus := eventbus.NewEventBus()
	feed := NewEventFeed(bus)
	require.Equal(t, 1, bus.HandlerCount(domain.TimeReached))
	require.Equal(t, 1, bus.HandlerCount(domain.WakeLockFailed))

	feed.Close()
	feed.Close()

	assert.Equal(t, 0, bus.HandlerCount(domain.TimeReached))
	assert.Equal(t, 0, bus.HandlerCount(domain.WakeLockFailed))
	if _, ok := feed.Wait()().(feedClosedMsg); !ok {
		t.Error("Wait after Close should report feedClosedMsg")
	}

	// Publishing after close is harmless
	bus.Publish(domain.NewEvent("s", domain.TimeReached, nil))
}
