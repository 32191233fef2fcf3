package audio

import (
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// OutputRate is the rate the speaker is opened at; sounds are resampled to it.
const OutputRate beep.SampleRate = 44100

// Output is the sound card as seen by the Player.
type Output interface {
	Init(rate beep.SampleRate) error
	Play(s beep.Streamer)
	Clear()
	Lock()
	Unlock()
	Close()
}

// Speaker is the process-wide beep speaker.
type Speaker struct{}

func (Speaker) Init(rate beep.SampleRate) error {
	return speaker.Init(rate, rate.N(time.Second/10))
}

func (Speaker) Play(s beep.Streamer) { speaker.Play(s) }
func (Speaker) Clear()               { speaker.Clear() }
func (Speaker) Lock()                { speaker.Lock() }
func (Speaker) Unlock()              { speaker.Unlock() }
func (Speaker) Close()               { speaker.Close() }
