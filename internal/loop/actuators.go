package loop

import (
	"context"
	"fmt"
	log "log/slog"

	"moodenv/internal/mood"
)

// Classifier yields one mood per call, or an error when no usable signal
// could be obtained.
type Classifier interface {
	Classify(ctx context.Context) (mood.Label, error)
}

// Light applies a colour and brightness to a physical lamp.
type Light interface {
	Apply(ctx context.Context, color string, brightness int) error
}

// Audio plays at most one looping sound at a time.
type Audio interface {
	Play(id mood.SoundID) error
	Stop() error
	SetVolume(level float64) error
	Shutdown() error
}

// Publisher announces applied moods to the outside world.
type Publisher interface {
	Publish(ctx context.Context, l mood.Label) error
}

// NopLight stands in when no lamp is configured.
type NopLight struct{}

func (NopLight) Apply(context.Context, string, int) error {
	log.Info("Light controller not available", "component", "light")
	return nil
}

// NopAudio stands in when no audio output could be opened.
type NopAudio struct{}

func (NopAudio) Play(id mood.SoundID) error {
	log.Info("Audio controller not available", "component", "audio", "sound", id)
	return nil
}

func (NopAudio) Stop() error {
	log.Info("Audio controller not available", "component", "audio")
	return nil
}

func (NopAudio) SetVolume(float64) error { return nil }
func (NopAudio) Shutdown() error         { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, mood.Label) error { return nil }

// guard runs fn and turns a panic into an error so that one actuator can
// never take down its sibling or the cycle.
func guard(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", name, r)
		}
	}()
	return fn()
}

func applyLight(ctx context.Context, l Light, cfg mood.Config) error {
	return guard("light", func() error {
		return l.Apply(ctx, cfg.Color, cfg.Brightness)
	})
}

func applyAudio(a Audio, cfg mood.Config) error {
	return guard("audio", func() error {
		if cfg.Sound == mood.SoundNone {
			return a.Stop()
		}
		return a.Play(cfg.Sound)
	})
}
