package camera

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os/exec"
	"time"
)

const (
	DefaultDevice     = "/dev/video0"
	DefaultFrameDelay = 300 * time.Millisecond
)

var ErrNoFrames = errors.New("no frames captured")

type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Webcam grabs JPEG stills from a V4L2 device through ffmpeg.
type Webcam struct {
	device string
	delay  time.Duration
	ffmpeg string
	run    runner
}

func NewWebcam(device string) *Webcam {
	if device == "" {
		device = DefaultDevice
	}

	return &Webcam{
		device: device,
		delay:  DefaultFrameDelay,
		ffmpeg: "ffmpeg",
		run:    runCommand,
	}
}

// Capture returns up to n JPEG frames. A frame that fails after the first
// ends the burst early; only an empty burst is an error.
func (w *Webcam) Capture(ctx context.Context, n int) ([][]byte, error) {
	if n < 1 {
		n = 1
	}

	frames := make([][]byte, 0, n)

	for i := 0; i < n; i++ {
		frame, err := w.grab(ctx)
		if err != nil {
			log.Error("Failed to capture frame", "component", "classifier", "frame", i+1, "device", w.device, "err", err)
			break
		}
		frames = append(frames, frame)

		if i < n-1 {
			select {
			case <-ctx.Done():
				return frames, nil
			case <-time.After(w.delay):
			}
		}
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("%s: %w", w.device, ErrNoFrames)
	}

	return frames, nil
}

func (w *Webcam) grab(ctx context.Context) ([]byte, error) {
	out, err := w.run(ctx, w.ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-f", "v4l2", "-i", w.device,
		"-frames:v", "1",
		"-f", "image2pipe", "-vcodec", "mjpeg", "-",
	)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("empty frame")
	}
	return out, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}
