package loop

import (
	"context"
	"fmt"
	log "log/slog"
	"time"

	"moodenv/internal/mood"
)

const DefaultInterval = 60 * time.Second

// Outcome describes how a single cycle ended.
type Outcome int

const (
	// OutcomeFailed: no mood was obtained, state untouched.
	OutcomeFailed Outcome = iota
	// OutcomeUnchanged: same mood as last applied, actuators skipped.
	OutcomeUnchanged
	// OutcomeApplied: both actuators were attempted and state advanced.
	OutcomeApplied
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFailed:
		return "failed"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeApplied:
		return "applied"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type Config struct {
	Classifier Classifier
	Light      Light     // nil disables the lamp
	Audio      Audio     // nil disables sound
	Publisher  Publisher // optional
	Interval   time.Duration
}

// Loop polls the classifier on a fixed interval and drives the actuators
// whenever the mood changes. Cycles never overlap.
type Loop struct {
	classifier Classifier
	light      Light
	audio      Audio
	publisher  Publisher
	interval   time.Duration

	last mood.Label
}

func New(cfg Config) (*Loop, error) {
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}

	l := &Loop{
		classifier: cfg.Classifier,
		light:      cfg.Light,
		audio:      cfg.Audio,
		publisher:  cfg.Publisher,
		interval:   cfg.Interval,
		last:       mood.None,
	}

	if l.light == nil {
		l.light = NopLight{}
	}
	if l.audio == nil {
		l.audio = NopAudio{}
	}
	if l.publisher == nil {
		l.publisher = nopPublisher{}
	}
	if l.interval <= 0 {
		l.interval = DefaultInterval
	}

	return l, nil
}

// Run cycles until ctx is cancelled, then shuts the audio down once.
// Cancellation is only observed between cycles; a running cycle finishes.
func (l *Loop) Run(ctx context.Context) {
	defer l.shutdown()

	log.Info("Loop started", "component", "loop", "interval", l.interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// both channels may be ready; the interrupt wins
		if ctx.Err() != nil {
			return
		}

		l.Cycle(context.WithoutCancel(ctx))

		log.Info("Next check scheduled", "component", "loop", "in", l.interval)
		timer.Reset(l.interval)
	}
}

// Cycle runs classify -> map -> apply once. Any panic is contained here.
func (l *Loop) Cycle(ctx context.Context) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Error in mood detection/update cycle", "component", "loop", "err", r)
			out = OutcomeFailed
		}
	}()

	log.Info("Checking mood", "component", "loop")

	label, err := l.classifier.Classify(ctx)
	if err != nil {
		log.Error("Failed to detect mood, retrying next cycle", "component", "loop", "err", err)
		return OutcomeFailed
	}

	log.Info("Detected mood", "component", "loop", "mood", label)

	if label == l.last {
		log.Info("Mood unchanged, skipping update", "component", "loop", "mood", label)
		return OutcomeUnchanged
	}

	cfg := mood.Settings(label)

	if err := applyLight(ctx, l.light, cfg); err != nil {
		log.Warn("Light update failed", "component", "light", "err", err)
	}
	if err := applyAudio(l.audio, cfg); err != nil {
		log.Warn("Audio update failed", "component", "audio", "err", err)
	}

	l.last = label

	if err := guard("publisher", func() error { return l.publisher.Publish(ctx, label) }); err != nil {
		log.Warn("Failed to publish mood", "component", "bus", "err", err)
	}

	log.Info("Environment updated", "component", "loop", "mood", label)
	return OutcomeApplied
}

// Last returns the most recently applied mood, or mood.None.
func (l *Loop) Last() mood.Label {
	return l.last
}

func (l *Loop) shutdown() {
	log.Info("Stopping system", "component", "loop")

	if err := guard("audio", l.audio.Shutdown); err != nil {
		log.Error("Failed to shut down audio", "component", "audio", "err", err)
	}

	log.Info("System stopped", "component", "loop")
}
