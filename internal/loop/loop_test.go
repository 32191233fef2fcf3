package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"moodenv/internal/mood"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errNoFrame = errors.New("no frame")

type step struct {
	label mood.Label
	err   error
}

type scriptedClassifier struct {
	mu    sync.Mutex
	steps []step
	calls int
	// called after the script runs out
	done func()
}

func (c *scriptedClassifier) Classify(context.Context) (mood.Label, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.calls
	c.calls++
	if i >= len(c.steps) {
		if c.done != nil {
			c.done()
		}
		return "", errNoFrame
	}
	if i == len(c.steps)-1 && c.done != nil {
		defer c.done()
	}
	return c.steps[i].label, c.steps[i].err
}

type lightCall struct {
	color      string
	brightness int
}

type fakeLight struct {
	calls []lightCall
	err   error
	panic bool
}

func (f *fakeLight) Apply(_ context.Context, color string, brightness int) error {
	f.calls = append(f.calls, lightCall{color: color, brightness: brightness})
	if f.panic {
		panic("bulb on fire")
	}
	return f.err
}

type fakeAudio struct {
	mu        sync.Mutex
	played    []mood.SoundID
	stops     int
	shutdowns int
	err       error
}

func (f *fakeAudio) Play(id mood.SoundID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, id)
	return f.err
}

func (f *fakeAudio) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.err
}

func (f *fakeAudio) SetVolume(float64) error { return nil }

func (f *fakeAudio) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	return nil
}

func (f *fakeAudio) shutdownCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdowns
}

type fakePublisher struct {
	published []mood.Label
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, l mood.Label) error {
	f.published = append(f.published, l)
	return f.err
}

func labels(ls ...mood.Label) []step {
	out := make([]step, 0, len(ls))
	for _, l := range ls {
		out = append(out, step{label: l})
	}
	return out
}

func newTestLoop(t *testing.T, c Classifier, light Light, audio Audio) *Loop {
	t.Helper()
	l, err := New(Config{Classifier: c, Light: light, Audio: audio, Interval: time.Millisecond})
	require.NoError(t, err)
	return l
}

func TestNewRequiresClassifier(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	l, err := New(Config{Classifier: &scriptedClassifier{}})
	require.NoError(t, err)
	require.Equal(t, DefaultInterval, l.interval)
	require.IsType(t, NopLight{}, l.light)
	require.IsType(t, NopAudio{}, l.audio)
	require.Equal(t, mood.None, l.Last())
}

func TestCycleDebounce(t *testing.T) {
	c := &scriptedClassifier{steps: labels(mood.Happy, mood.Happy, mood.Happy)}
	light := &fakeLight{}
	audio := &fakeAudio{}
	l := newTestLoop(t, c, light, audio)

	ctx := context.Background()
	require.Equal(t, OutcomeApplied, l.Cycle(ctx))
	require.Equal(t, OutcomeUnchanged, l.Cycle(ctx))
	require.Equal(t, OutcomeUnchanged, l.Cycle(ctx))

	require.Len(t, light.calls, 1)
	require.Equal(t, lightCall{color: "#FFA500", brightness: 90}, light.calls[0])
	require.Equal(t, []mood.SoundID{mood.SoundHappy}, audio.played)
	require.Equal(t, mood.Happy, l.Last())
}

func TestCycleAdvancesDespiteLightFailure(t *testing.T) {
	c := &scriptedClassifier{steps: labels(mood.Sad)}
	light := &fakeLight{err: errors.New("device unreachable")}
	audio := &fakeAudio{}
	l := newTestLoop(t, c, light, audio)

	require.Equal(t, OutcomeApplied, l.Cycle(context.Background()))
	require.Equal(t, mood.Sad, l.Last())
	require.Equal(t, []mood.SoundID{mood.SoundSad}, audio.played)
}

func TestCycleAdvancesDespiteLightPanic(t *testing.T) {
	c := &scriptedClassifier{steps: labels(mood.Stressed)}
	light := &fakeLight{panic: true}
	audio := &fakeAudio{}
	l := newTestLoop(t, c, light, audio)

	require.Equal(t, OutcomeApplied, l.Cycle(context.Background()))
	require.Equal(t, mood.Stressed, l.Last())
	require.Equal(t, []mood.SoundID{mood.SoundStressed}, audio.played)
}

func TestCycleAdvancesDespiteAudioFailure(t *testing.T) {
	c := &scriptedClassifier{steps: labels(mood.Focused)}
	light := &fakeLight{}
	audio := &fakeAudio{err: errors.New("no output device")}
	l := newTestLoop(t, c, light, audio)

	require.Equal(t, OutcomeApplied, l.Cycle(context.Background()))
	require.Len(t, light.calls, 1)
	require.Equal(t, mood.Focused, l.Last())
}

func TestCycleClassificationFailureKeepsState(t *testing.T) {
	c := &scriptedClassifier{steps: []step{{label: mood.Focused}, {err: errNoFrame}}}
	light := &fakeLight{}
	audio := &fakeAudio{}
	l := newTestLoop(t, c, light, audio)

	ctx := context.Background()
	require.Equal(t, OutcomeApplied, l.Cycle(ctx))
	require.Len(t, light.calls, 1)
	require.Len(t, audio.played, 1)

	require.Equal(t, OutcomeFailed, l.Cycle(ctx))
	require.Equal(t, mood.Focused, l.Last())
	require.Len(t, light.calls, 1)
	require.Len(t, audio.played, 1)
	require.Zero(t, audio.stops)
}

func TestCycleTransitionSequence(t *testing.T) {
	c := &scriptedClassifier{steps: labels(mood.Neutral, mood.Happy, mood.Stressed, mood.Stressed, mood.Sad)}
	light := &fakeLight{}
	audio := &fakeAudio{}
	l := newTestLoop(t, c, light, audio)

	ctx := context.Background()
	require.Equal(t, OutcomeApplied, l.Cycle(ctx))
	light.calls = nil
	audio.played = nil
	audio.stops = 0

	var outcomes []Outcome
	for range 4 {
		outcomes = append(outcomes, l.Cycle(ctx))
	}

	require.Equal(t, []Outcome{OutcomeApplied, OutcomeApplied, OutcomeUnchanged, OutcomeApplied}, outcomes)
	require.Len(t, light.calls, 3)
	require.Equal(t, []mood.SoundID{mood.SoundHappy, mood.SoundStressed, mood.SoundSad}, audio.played)
	require.Equal(t, mood.Sad, l.Last())
}

func TestCycleNoneSoundStops(t *testing.T) {
	c := &scriptedClassifier{steps: labels(mood.Happy, mood.Neutral)}
	audio := &fakeAudio{}
	l := newTestLoop(t, c, &fakeLight{}, audio)

	ctx := context.Background()
	l.Cycle(ctx)
	l.Cycle(ctx)

	require.Equal(t, []mood.SoundID{mood.SoundHappy}, audio.played)
	require.Equal(t, 1, audio.stops)
	require.NotContains(t, audio.played, mood.SoundNone)
}

func TestCycleRecoversClassifierPanic(t *testing.T) {
	l := newTestLoop(t, panicClassifier{}, &fakeLight{}, &fakeAudio{})
	require.Equal(t, OutcomeFailed, l.Cycle(context.Background()))
	require.Equal(t, mood.None, l.Last())
}

type panicClassifier struct{}

func (panicClassifier) Classify(context.Context) (mood.Label, error) {
	panic("camera driver exploded")
}

func TestCyclePublishesAppliedMoods(t *testing.T) {
	c := &scriptedClassifier{steps: labels(mood.Happy, mood.Happy, mood.Sad)}
	pub := &fakePublisher{err: errors.New("hub down")}
	l, err := New(Config{Classifier: c, Light: &fakeLight{}, Audio: &fakeAudio{}, Publisher: pub})
	require.NoError(t, err)

	ctx := context.Background()
	for range 3 {
		l.Cycle(ctx)
	}

	require.Equal(t, []mood.Label{mood.Happy, mood.Sad}, pub.published)
	require.Equal(t, mood.Sad, l.Last())
}

func TestCycleWithNopActuators(t *testing.T) {
	c := &scriptedClassifier{steps: labels(mood.Happy, mood.Neutral)}
	l, err := New(Config{Classifier: c})
	require.NoError(t, err)

	require.Equal(t, OutcomeApplied, l.Cycle(context.Background()))
	require.Equal(t, OutcomeApplied, l.Cycle(context.Background()))
	require.Equal(t, mood.Neutral, l.Last())
}

func TestRunDebouncesAndShutsDownOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &scriptedClassifier{
		steps: []step{{label: mood.Happy}, {err: errNoFrame}, {label: mood.Happy}, {label: mood.Happy}},
		done:  cancel,
	}
	light := &fakeLight{}
	audio := &fakeAudio{}
	l := newTestLoop(t, c, light, audio)

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(ctx)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}

	require.Len(t, light.calls, 1)
	require.Equal(t, []mood.SoundID{mood.SoundHappy}, audio.played)
	require.Equal(t, 1, audio.shutdownCount())
	require.Equal(t, mood.Happy, l.Last())
}

func TestRunShutdownDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycled := make(chan struct{})
	c := &scriptedClassifier{
		steps: labels(mood.Focused),
		done:  func() { close(cycled) },
	}
	audio := &fakeAudio{}
	l, err := New(Config{Classifier: c, Light: &fakeLight{}, Audio: audio, Interval: time.Hour})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(ctx)
	}()

	<-cycled
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop while sleeping")
	}

	require.Equal(t, 1, audio.shutdownCount())
}

func TestRunCancelledBeforeFirstCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &scriptedClassifier{}
	audio := &fakeAudio{}
	l := newTestLoop(t, c, &fakeLight{}, audio)

	l.Run(ctx)

	require.Zero(t, c.calls)
	require.Equal(t, 1, audio.shutdownCount())
}

func TestRunNeverCyclesAfterCancel(t *testing.T) {
	for range 200 {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c := &scriptedClassifier{steps: labels(mood.Happy)}
		light := &fakeLight{}
		audio := &fakeAudio{}
		l := newTestLoop(t, c, light, audio)

		l.Run(ctx)

		require.Zero(t, c.calls)
		require.Empty(t, light.calls)
		require.Equal(t, 1, audio.shutdownCount())
	}
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "applied", OutcomeApplied.String())
	require.Equal(t, "unchanged", OutcomeUnchanged.String())
	require.Equal(t, "failed", OutcomeFailed.String())
}
