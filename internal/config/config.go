package config

import (
	"errors"
	"fmt"
	log "log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"moodenv/internal/mood"
)

var ErrMissingAPIKey = errors.New("OPENAI_API_KEY environment variable not set")

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// Tapo holds the bulb address and account. Credentials only come from the
// environment.
type Tapo struct {
	IP       string `yaml:"ip"`
	Email    string `yaml:"-"`
	Password string `yaml:"-"`
}

// Enabled reports whether all three values are present.
func (t Tapo) Enabled() bool {
	return t.IP != "" && t.Email != "" && t.Password != ""
}

type Config struct {
	EnvFile    string `yaml:"-"`
	ConfigFile string `yaml:"-"`

	LogLevel        string            `yaml:"log_level"`
	IntervalSeconds int               `yaml:"interval_seconds"`
	Volume          float64           `yaml:"volume"`
	AudioDir        string            `yaml:"audio_dir"`
	SoundFiles      map[string]string `yaml:"sound_files"`
	Camera          string            `yaml:"camera"`
	Frames          int               `yaml:"frames"`
	Model           string            `yaml:"model"`
	Proxy           string            `yaml:"proxy"`
	BusURL          string            `yaml:"bus_url"`
	Tapo            Tapo              `yaml:"tapo"`

	OpenAIKey string `yaml:"-"`

	// Warnings collects audio settings that were corrected at load time.
	Warnings []string `yaml:"-"`
}

func Default() Config {
	return Config{
		EnvFile:         ".env",
		LogLevel:        "info",
		IntervalSeconds: 60,
		Volume:          0.5,
		AudioDir:        "audio",
		Camera:          "/dev/video0",
		Frames:          1,
		Model:           "gpt-4o-mini",
	}
}

// Load resolves configuration from flags, the environment (after loading
// the env file), an optional YAML file and defaults, in that order of
// precedence.
func Load(args []string) (Config, error) {
	cfg := Default()

	fs := cli.NewFlagSet("moodenv", cli.ContinueOnError)
	envFile := fs.StringP("env", "e", cfg.EnvFile, "Env file path")
	cfgFile := fs.StringP("config", "c", "", "YAML config file")
	logLevel := fs.StringP("log", "l", cfg.LogLevel, "Log level")
	interval := fs.IntP("interval", "i", cfg.IntervalSeconds, "Seconds between mood checks")
	volume := fs.Float64("volume", cfg.Volume, "Audio volume 0.0-1.0")
	audioDir := fs.String("audio-dir", cfg.AudioDir, "Folder with sound files")
	camera := fs.String("camera", cfg.Camera, "Camera device")
	frames := fs.Int("frames", cfg.Frames, "Frames per mood check")
	model := fs.String("model", cfg.Model, "Vision model")
	proxyAddr := fs.StringP("proxy", "p", "", "SOCKS5 proxy address for the classifier")
	busURL := fs.String("bus", "", "Hub WebSocket URL")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.EnvFile = *envFile
	if err := godotenv.Load(cfg.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", cfg.EnvFile, err)
	}

	cfg.ConfigFile = *cfgFile
	if cfg.ConfigFile == "" {
		cfg.ConfigFile = os.Getenv("MOODENV_CONFIG")
	}
	if cfg.ConfigFile != "" {
		if err := cfg.loadYAML(cfg.ConfigFile); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	changed := func(name string) bool { return fs.Changed(name) }
	if changed("log") {
		cfg.LogLevel = *logLevel
	}
	if changed("interval") {
		cfg.IntervalSeconds = *interval
	}
	if changed("volume") {
		cfg.Volume = *volume
	}
	if changed("audio-dir") {
		cfg.AudioDir = *audioDir
	}
	if changed("camera") {
		cfg.Camera = *camera
	}
	if changed("frames") {
		cfg.Frames = *frames
	}
	if changed("model") {
		cfg.Model = *model
	}
	if changed("proxy") {
		cfg.Proxy = *proxyAddr
	}
	if changed("bus") {
		cfg.BusURL = *busURL
	}

	cfg.degradeAudio()

	return cfg, cfg.Validate()
}

// degradeAudio fixes settings that only concern the audio output. They
// never stop the daemon: the volume is clamped and unknown sound ids are
// dropped so the default file table applies.
func (c *Config) degradeAudio() {
	if c.Volume < 0 || c.Volume > 1 {
		clamped := math.Max(0, math.Min(1, c.Volume))
		c.Warnings = append(c.Warnings, fmt.Sprintf("volume must be within 0.0-1.0, got %g, using %g", c.Volume, clamped))
		c.Volume = clamped
	}

	for id := range c.SoundFiles {
		switch mood.SoundID(id) {
		case mood.SoundHappy, mood.SoundSad, mood.SoundStressed, mood.SoundFocused:
		default:
			c.Warnings = append(c.Warnings, fmt.Sprintf("sound_files: unknown sound %q ignored", id))
			delete(c.SoundFiles, id)
		}
	}
}

func (c *Config) loadYAML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	str("MOODENV_LOG", &c.LogLevel)
	str("MOODENV_AUDIO_DIR", &c.AudioDir)
	str("MOODENV_CAMERA", &c.Camera)
	str("MOODENV_MODEL", &c.Model)
	str("MOODENV_PROXY", &c.Proxy)
	str("BUS_URL", &c.BusURL)
	str("TAPO_IP", &c.Tapo.IP)
	str("TAPO_EMAIL", &c.Tapo.Email)
	str("TAPO_PASSWORD", &c.Tapo.Password)
	str("OPENAI_API_KEY", &c.OpenAIKey)

	if v := os.Getenv("MOODENV_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MOODENV_INTERVAL: %w", err)
		}
		c.IntervalSeconds = n
	}
	if v := os.Getenv("MOODENV_VOLUME"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.Warnings = append(c.Warnings, fmt.Sprintf("MOODENV_VOLUME %q is not a number, using %g", v, c.Volume))
		} else {
			c.Volume = f
		}
	}

	return nil
}

func (c Config) Validate() error {
	if _, ok := logLevelMap[c.LogLevel]; !ok {
		return fmt.Errorf("invalid log level %q (must be debug, info, warn or error)", c.LogLevel)
	}
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("interval must be positive, got %d", c.IntervalSeconds)
	}
	if c.Frames < 1 {
		return fmt.Errorf("frames must be at least 1, got %d", c.Frames)
	}
	if c.OpenAIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c Config) Level() log.Level {
	return logLevelMap[c.LogLevel]
}

func (c Config) Sounds() map[mood.SoundID]string {
	out := make(map[mood.SoundID]string, len(c.SoundFiles))
	for id, f := range c.SoundFiles {
		out[mood.SoundID(id)] = f
	}
	return out
}
