package audio

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mescon/beepwatch/internal/domain"
	"github.com/mescon/beepwatch/internal/eventbus"
)

type recordingPlayer struct {
	tones []Tone
	err   error
}

func (p *recordingPlayer) Play(tone Tone) error {
	p.tones = append(p.tones, tone)
	return p.err
}

func TestSink_PlaysTonesForEvents(t *testing.T) {
	bus := eventbus.NewEventBus()
	player := &recordingPlayer{}
	sink := NewSink(bus, player)
	sink.Start()

	bus.Publish(domain.NewEvent("s", domain.StopwatchStarted, map[string]interface{}{domain.KeyStartTime: int64(0)}))
	bus.Publish(domain.NewEvent("s", domain.TimeReached, map[string]interface{}{domain.KeyCurrentTime: int64(1000)}))
	bus.Publish(domain.NewEvent("s", domain.StopwatchStopped, nil))
	bus.Publish(domain.NewEvent("s", domain.StopwatchReset, nil))

	assert.Equal(t, []Tone{StartTone, BeepTone}, player.tones)
}

func TestSink_StartIsIdempotent(t *testing.T) {
	bus := eventbus.NewEventBus()
	player := &recordingPlayer{}
	sink := NewSink(bus, player)
	sink.Start()
	sink.Start()

	bus.Publish(domain.NewEvent("s", domain.TimeReached, nil))
	assert.Len(t, player.tones, 1)
}

func TestSink_Stop(t *testing.T) {
	bus := eventbus.NewEventBus()
	player := &recordingPlayer{}
	sink := NewSink(bus, player)
	sink.Start()
	sink.Stop()
	sink.Stop()

	bus.Publish(domain.NewEvent("s", domain.TimeReached, nil))
	bus.Publish(domain.NewEvent("s", domain.StopwatchStarted, nil))
	assert.Empty(t, player.tones)
	assert.Equal(t, 0, bus.HandlerCount(domain.TimeReached))
	assert.Equal(t, 0, bus.HandlerCount(domain.StopwatchStarted))
}

func TestSink_PlayerErrorReachesFailureHook(t *testing.T) {
	bus := eventbus.NewEventBus()
	var failures []error
	bus.SetFailureHook(func(_ domain.EventType, err error) {
		failures = append(failures, err)
	})

	sink := NewSink(bus, &recordingPlayer{err: errors.New("device busy")})
	sink.Start()

	otherCalled := false
	bus.Subscribe(domain.TimeReached, func(domain.Event) error {
		otherCalled = true
		return nil
	})

	bus.Publish(domain.NewEvent("s", domain.TimeReached, nil))
	assert.True(t, otherCalled)
	if assert.Len(t, failures, 1) {
		assert.ErrorContains(t, failures[0], "play timeReached tone")
		assert.ErrorContains(t, failures[0], "device busy")
	}
}

func TestTones(t *testing.T) {
	assert.Equal(t, 880.0, BeepTone.Frequency)
	assert.Equal(t, 1.0, BeepTone.Volume)
	assert.Equal(t, 440.0, StartTone.Frequency)
	assert.Equal(t, 0.25, StartTone.Volume)
	assert.Less(t, StartTone.Duration, BeepTone.Duration)
}

func TestBellPlayer(t *testing.T) {
	var buf bytes.Buffer
	player := NewBellPlayer(&buf)

	assert.NoError(t, player.Play(BeepTone))
	assert.NoError(t, player.Play(StartTone))
	assert.NoError(t, player.Play(Tone{Frequency: 440}))
	assert.Equal(t, "\a\a", buf.String(), "silent tones do not ring")
}

func TestNopPlayer(t *testing.T) {
	var p Player = NopPlayer{}
	assert.NoError(t, p.Play(BeepTone))
}
