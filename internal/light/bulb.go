package light

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// ErrPartial means the bulb is on with the new brightness but the colour
// could not be applied.
var ErrPartial = errors.New("colour not applied")

// Bulb drives a Tapo colour bulb on the local network.
type Bulb struct {
	baseURL string
	auth    []byte
	http    *http.Client
}

func NewBulb(addr, email, password string) (*Bulb, error) {
	if addr == "" || email == "" || password == "" {
		return nil, errors.New("TAPO_IP, TAPO_EMAIL and TAPO_PASSWORD must all be set")
	}

	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	log.Info("Light controller ready", "component", "light", "addr", addr)

	return &Bulb{
		baseURL: strings.TrimRight(base, "/"),
		auth:    authHash(email, password),
		http:    &http.Client{Timeout: defaultTimeout},
	}, nil
}

type powerParams struct {
	DeviceOn bool `json:"device_on"`
}

type brightnessParams struct {
	Brightness int `json:"brightness"`
}

type colorParams struct {
	Hue        int `json:"hue"`
	Saturation int `json:"saturation"`
	ColorTemp  int `json:"color_temp"`
}

// Apply turns the bulb on, sets brightness and then colour. Each call opens
// a fresh session. A bad colour still leaves brightness applied and is
// reported as ErrPartial.
func (b *Bulb) Apply(ctx context.Context, color string, brightness int) error {
	sess, err := handshake(ctx, b.http, b.baseURL, b.auth)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if _, err := sess.call(ctx, "set_device_info", powerParams{DeviceOn: true}); err != nil {
		return fmt.Errorf("turn on: %w", err)
	}

	brightness = clampBrightness(brightness)
	if _, err := sess.call(ctx, "set_device_info", brightnessParams{Brightness: brightness}); err != nil {
		return fmt.Errorf("set brightness: %w", err)
	}

	hue, sat, err := HueSaturation(color)
	if err == nil {
		_, err = sess.call(ctx, "set_device_info", colorParams{Hue: hue, Saturation: sat})
	}
	if err != nil {
		log.Warn("Failed to set colour", "component", "light", "color", color, "err", err)
		return fmt.Errorf("%w: %s: %w", ErrPartial, color, err)
	}

	log.Info("Applied light",
		"component", "light",
		"color", color,
		"hue", hue,
		"sat", sat,
		"brightness", brightness,
	)

	return nil
}
