package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"moodenv/internal/audio"
	"moodenv/internal/bus"
	"moodenv/internal/camera"
	"moodenv/internal/classifier"
	"moodenv/internal/config"
	"moodenv/internal/light"
	"moodenv/internal/loop"
	"moodenv/internal/proxy"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, cli.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			log.Error("OPENAI_API_KEY not set", "hint", "make sure your .env file contains OPENAI_API_KEY=...")
		} else {
			log.Error("Invalid configuration", "err", err)
		}
		os.Exit(1)
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: cfg.Level(),
	})))

	log.Info("Mood-based smart environment controller booting up")

	for _, w := range cfg.Warnings {
		log.Warn("Audio configuration corrected", "component", "audio", "warning", w)
	}

	httpClient := http.DefaultClient
	if cfg.Proxy != "" {
		httpClient, err = proxy.NewSocksClient(cfg.Proxy)
		if err != nil {
			log.Error("Failed to dial socks proxy", "proxy", cfg.Proxy, "err", err)
			os.Exit(1)
		}
		log.Debug("Loaded proxy")
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.OpenAIKey),
		option.WithHTTPClient(httpClient),
	)

	mc := classifier.New(client, camera.NewWebcam(cfg.Camera), classifier.Options{
		Model:  cfg.Model,
		Frames: cfg.Frames,
	})

	lc := loop.Config{
		Classifier: mc,
		Interval:   cfg.Interval(),
	}

	if cfg.Tapo.Enabled() {
		bulb, err := light.NewBulb(cfg.Tapo.IP, cfg.Tapo.Email, cfg.Tapo.Password)
		if err != nil {
			log.Error("Failed to initialize light controller", "component", "light", "err", err)
		} else {
			lc.Light = bulb
		}
	} else {
		log.Warn("TAPO_IP, TAPO_EMAIL and TAPO_PASSWORD not set, continuing without light control", "component", "light")
	}

	player, err := audio.NewPlayer(audio.Options{
		Dir:   cfg.AudioDir,
		Files: cfg.Sounds(),
	})
	if err != nil {
		log.Error("Failed to initialize audio controller, continuing without audio control", "component", "audio", "err", err)
	} else {
		if err := player.SetVolume(cfg.Volume); err != nil {
			log.Error("Failed to set volume", "component", "audio", "volume", cfg.Volume, "err", err)
		}
		lc.Audio = player
	}

	if cfg.BusURL != "" {
		pub := bus.NewPublisher(cfg.BusURL)
		defer pub.Close()
		lc.Publisher = pub
	}

	ml, err := loop.New(lc)
	if err != nil {
		log.Error("Failed to build control loop", "err", err)
		os.Exit(1)
	}

	log.Info("Boot up - successful", "interval", cfg.Interval(), "hint", "press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ml.Run(ctx)

	log.Info("Goodbye!")
}
