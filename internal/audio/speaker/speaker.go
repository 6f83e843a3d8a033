// Package speaker plays tones through the system audio device.
package speaker

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/generators"
	"github.com/faiface/beep/speaker"

	"github.com/mescon/beepwatch/internal/audio"
)

const (
	DefaultSampleRate = beep.SampleRate(44100)
	bufferDuration    = 40 * time.Millisecond
)

var (
	initOnce sync.Once
	initErr  error
)

// Player renders tones as square waves on the default output device.
type Player struct {
	sampleRate beep.SampleRate
}

var _ audio.Player = (*Player)(nil)

// NewPlayer initializes the speaker once per process.
func NewPlayer(sampleRate beep.SampleRate) (*Player, error) {
	initOnce.Do(func() {
		initErr = speaker.Init(sampleRate, sampleRate.N(bufferDuration))
	})
	if initErr != nil {
		return nil, fmt.Errorf("init speaker: %w", initErr)
	}
	return &Player{sampleRate: sampleRate}, nil
}

// Play queues the tone and returns without waiting for it to finish.
func (p *Player) Play(tone audio.Tone) error {
	streamer, err := Stream(p.sampleRate, tone)
	if err != nil {
		return err
	}
	if streamer == nil {
		return nil
	}
	speaker.Play(streamer)
	return nil
}

// Stream builds a finite streamer for tone. A silent tone yields nil.
func Stream(sampleRate beep.SampleRate, tone audio.Tone) (beep.Streamer, error) {
	if tone.Volume <= 0 || tone.Duration <= 0 {
		return nil, nil
	}
	square, err := generators.SquareTone(sampleRate, tone.Frequency)
	if err != nil {
		return nil, fmt.Errorf("square tone %.0fHz: %w", tone.Frequency, err)
	}
	return beep.Take(sampleRate.N(tone.Duration), &effects.Volume{
		Streamer: square,
		Base:     2,
		Volume:   volumeExponent(tone.Volume),
		Silent:   false,
	}), nil
}

// volumeExponent maps a linear 0..1 gain onto effects.Volume's base-2 exponent.
func volumeExponent(gain float64) float64 {
	if gain >= 1 {
		return 0
	}
	return math.Log2(gain)
}
