package services

import (
	"sync"
	"sync/atomic"

	"github.com/mescon/beepwatch/internal/domain"
	"github.com/mescon/beepwatch/internal/eventbus"
	"github.com/mescon/beepwatch/internal/logger"
)

// journalQueueSize bounds events waiting for the writer.
const journalQueueSize = 256

// EventStore persists journal entries.
type EventStore interface {
	InsertEvent(event domain.Event) (int64, error)
}

// JournalService copies every published event into an EventStore. Writes
// happen on a background goroutine so the publisher never waits on disk.
type JournalService struct {
	bus   eventbus.Publisher
	store EventStore

	queue   chan domain.Event
	subs    map[domain.EventType]eventbus.SubscriptionID
	mu      sync.Mutex
	wg      sync.WaitGroup
	running bool

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

func NewJournalService(bus eventbus.Publisher, store EventStore) *JournalService {
	return &JournalService{
		bus:   bus,
		store: store,
		subs:  make(map[domain.EventType]eventbus.SubscriptionID),
	}
}

func (j *JournalService) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return
	}
	logger.Infof("Starting Journal Service...")

	j.queue = make(chan domain.Event, journalQueueSize)
	j.running = true
	j.wg.Add(1)
	go j.writeLoop(j.queue)

	for _, eventType := range domain.AllEventTypes {
		j.subs[eventType] = j.bus.Subscribe(eventType, j.enqueue)
	}
}

// Stop unsubscribes, then waits for queued events to be written.
func (j *JournalService) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	for eventType, id := range j.subs {
		j.bus.Unsubscribe(eventType, id)
		delete(j.subs, eventType)
	}
	j.running = false
	close(j.queue)
	j.mu.Unlock()

	j.wg.Wait()
	logger.Infof("Journal Service stopped (%d written, %d dropped, %d failed)",
		j.written.Load(), j.dropped.Load(), j.failed.Load())
}

func (j *JournalService) enqueue(event domain.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return nil
	}
	select {
	case j.queue <- event:
	default:
		// Writer is behind; drop rather than stall the stopwatch
		j.dropped.Add(1)
		logger.Warnf("Journal queue full, dropping %s event", event.EventType)
	}
	return nil
}

func (j *JournalService) writeLoop(queue <-chan domain.Event) {
	defer j.wg.Done()
	for event := range queue {
		if _, err := j.store.InsertEvent(event); err != nil {
			j.failed.Add(1)
			logger.Errorf("Failed to journal %s event: %v", event.EventType, err)
			continue
		}
		j.written.Add(1)
	}
}

// JournalStats are the writer's lifetime counters.
type JournalStats struct {
	Written int64 `json:"written"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
}

func (j *JournalService) Stats() JournalStats {
	return JournalStats{
		Written: j.written.Load(),
		Dropped: j.dropped.Load(),
		Failed:  j.failed.Load(),
	}
}
