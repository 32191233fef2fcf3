package mood

import (
	log "log/slog"
	"strings"
)

// SoundID names a looping sound. SoundNone means silence.
type SoundID string

const (
	SoundHappy    SoundID = "happy"
	SoundSad      SoundID = "sad"
	SoundStressed SoundID = "stressed"
	SoundFocused  SoundID = "focused"
	SoundNone     SoundID = "none"
)

// Config is what the actuators get for one mood.
type Config struct {
	Color      string  // #RRGGBB
	Brightness int     // 0..100
	Sound      SoundID
}

var settingsTable = map[Label]Config{
	Happy:    {Color: "#FFA500", Brightness: 90, Sound: SoundHappy},
	Sad:      {Color: "#FFD700", Brightness: 50, Sound: SoundSad},
	Stressed: {Color: "#4169E1", Brightness: 60, Sound: SoundStressed},
	Neutral:  {Color: "#FFFFFF", Brightness: 70, Sound: SoundNone},
	Focused:  {Color: "#F0F8FF", Brightness: 85, Sound: SoundFocused},
}

// Lookup is the silent form of Settings.
func Lookup(l Label) Config {
	cfg, ok := settingsTable[Label(strings.ToLower(strings.TrimSpace(string(l))))]
	if !ok {
		return settingsTable[Neutral]
	}
	return cfg
}

// Settings resolves the actuator config for l. Matching is
// case-insensitive and anything unknown gets the neutral row.
func Settings(l Label) Config {
	cfg := Lookup(l)

	log.Info("Resolved settings",
		"component", "mood-logic",
		"mood", strings.ToLower(string(l)),
		"color", cfg.Color,
		"brightness", cfg.Brightness,
		"sound", cfg.Sound,
	)

	return cfg
}
