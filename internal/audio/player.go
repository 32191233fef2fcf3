package audio

import (
	"fmt"
	log "log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"

	"moodenv/internal/mood"
)

const (
	DefaultDir    = "audio"
	DefaultVolume = 0.5
)

// DefaultFiles maps each sound to its file inside the audio folder.
var DefaultFiles = map[mood.SoundID]string{
	mood.SoundHappy:    "happy.mp3",
	mood.SoundSad:      "sad.mp3",
	mood.SoundStressed: "stressed.mp3",
	mood.SoundFocused:  "rain.mp3",
}

type Options struct {
	Dir    string
	Files  map[mood.SoundID]string // overrides DefaultFiles per id
	Output Output                  // defaults to Speaker
}

// Player loops one sound file at a time.
type Player struct {
	mu    sync.Mutex
	dir   string
	files map[mood.SoundID]string
	out   Output

	level   float64
	current mood.SoundID
	stream  beep.StreamSeekCloser
	volume  *effects.Volume
}

// NewPlayer creates the audio folder if needed and opens the output.
func NewPlayer(opt Options) (*Player, error) {
	p := &Player{
		dir:   opt.Dir,
		files: make(map[mood.SoundID]string, len(DefaultFiles)),
		out:   opt.Output,
		level: DefaultVolume,
	}
	if p.dir == "" {
		p.dir = DefaultDir
	}
	if p.out == nil {
		p.out = Speaker{}
	}
	for id, f := range DefaultFiles {
		p.files[id] = f
	}
	for id, f := range opt.Files {
		p.files[id] = f
	}

	if _, err := os.Stat(p.dir); os.IsNotExist(err) {
		if err := os.MkdirAll(p.dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audio folder: %w", err)
		}
		log.Info("Created audio folder", "component", "audio", "dir", p.dir)
	}

	if err := p.out.Init(OutputRate); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}

	log.Info("Audio controller initialized", "component", "audio", "dir", p.dir)

	return p, nil
}

// Play stops whatever is playing and loops the file for id. SoundNone and
// unknown ids only stop. A missing file is logged, not returned.
func (p *Player) Play(id mood.SoundID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	file, ok := p.files[id]
	if id == mood.SoundNone || !ok {
		log.Info("No audio to play", "component", "audio", "sound", id)
		return nil
	}

	path := filepath.Join(p.dir, file)
	if _, err := os.Stat(path); err != nil {
		log.Warn("Audio file not found", "component", "audio", "path", path, "hint", fmt.Sprintf("add %q to %q", file, p.dir))
		return nil
	}

	stream, format, err := decode(path)
	if err != nil {
		return fmt.Errorf("play %s: %w", id, err)
	}

	var s beep.Streamer = beep.Loop(-1, stream)
	if format.SampleRate != OutputRate {
		s = beep.Resample(4, format.SampleRate, OutputRate, s)
	}

	vol := &effects.Volume{Streamer: s, Base: 2}
	setGain(vol, p.level)

	p.out.Play(vol)
	p.stream = stream
	p.volume = vol
	p.current = id

	log.Info("Playing", "component", "audio", "sound", id, "file", file)

	return nil
}

func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	return nil
}

func (p *Player) stopLocked() {
	if p.stream == nil {
		return
	}

	p.out.Clear()
	if err := p.stream.Close(); err != nil {
		log.Warn("Failed to close stream", "component", "audio", "err", err)
	}

	log.Info("Stopped", "component", "audio", "sound", p.current)

	p.stream = nil
	p.volume = nil
	p.current = ""
}

// SetVolume takes a level in [0,1]; values outside are clamped.
func (p *Player) SetVolume(level float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.level = math.Max(0, math.Min(1, level))

	if p.volume != nil {
		p.out.Lock()
		setGain(p.volume, p.level)
		p.out.Unlock()
	}

	log.Info("Volume set", "component", "audio", "percent", int(p.level*100))
	return nil
}

// Shutdown stops playback and releases the output.
func (p *Player) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.out.Close()

	log.Info("Audio controller cleaned up", "component", "audio")
	return nil
}

// Current reports the sound being looped, or "" when silent.
func (p *Player) Current() mood.SoundID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// setGain maps a linear level onto beep's base-2 volume.
func setGain(v *effects.Volume, level float64) {
	if level <= 0 {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(level)
}

func decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		s, format, err = mp3.Decode(f)
	case ".wav":
		s, format, err = wav.Decode(f)
	case ".ogg", ".oga":
		s, format, err = vorbis.Decode(f)
	default:
		err = fmt.Errorf("unsupported format: %s (supported: mp3/wav/ogg)", ext)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, err
	}

	return s, format, nil
}
