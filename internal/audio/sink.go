// Package audio turns stopwatch events into sound.
package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mescon/beepwatch/internal/domain"
	"github.com/mescon/beepwatch/internal/eventbus"
	"github.com/mescon/beepwatch/internal/logger"
)

// Tone describes a single beep.
type Tone struct {
	Frequency float64       // Hz
	Duration  time.Duration
	Volume    float64       // 0.0 - 1.0
}

var (
	// BeepTone is played when an interval is reached.
	BeepTone = Tone{Frequency: 880, Duration: 300 * time.Millisecond, Volume: 1.0}
	// StartTone is a softer, shorter cue played when the stopwatch starts.
	StartTone = Tone{Frequency: 440, Duration: 100 * time.Millisecond, Volume: 0.25}
)

// Player renders a tone. Play should return quickly; long playback belongs on
// the player's own goroutine.
type Player interface {
	Play(tone Tone) error
}

// Sink subscribes a Player to the stopwatch events that make sound.
type Sink struct {
	bus    eventbus.Publisher
	player Player

	mu   sync.Mutex
	subs map[domain.EventType]eventbus.SubscriptionID
}

func NewSink(bus eventbus.Publisher, player Player) *Sink {
	return &Sink{
		bus:    bus,
		player: player,
	}
}

// Start subscribes to timeReached and stopwatchStarted. Calling Start twice is a no-op.
func (s *Sink) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs != nil {
		return
	}

	s.subs = map[domain.EventType]eventbus.SubscriptionID{
		domain.TimeReached:      s.bus.Subscribe(domain.TimeReached, s.playOn(BeepTone)),
		domain.StopwatchStarted: s.bus.Subscribe(domain.StopwatchStarted, s.playOn(StartTone)),
	}
	logger.Debugf("Audio sink subscribed (%T)", s.player)
}

// Stop removes the subscriptions made by Start.
func (s *Sink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for eventType, id := range s.subs {
		s.bus.Unsubscribe(eventType, id)
	}
	s.subs = nil
}

func (s *Sink) playOn(tone Tone) eventbus.Handler {
	return func(event domain.Event) error {
		if err := s.player.Play(tone); err != nil {
			return fmt.Errorf("play %s tone: %w", event.EventType, err)
		}
		return nil
	}
}

// BellPlayer rings the terminal bell. Frequency and duration are ignored.
type BellPlayer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewBellPlayer(w io.Writer) *BellPlayer {
	return &BellPlayer{w: w}
}

func (b *BellPlayer) Play(tone Tone) error {
	if tone.Volume <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := io.WriteString(b.w, "\a")
	return err
}

// NopPlayer discards every tone.
type NopPlayer struct{}

func (NopPlayer) Play(Tone) error { return nil }
