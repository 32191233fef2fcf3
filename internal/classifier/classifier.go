package classifier

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	log "log/slog"
	"strings"

	openai "github.com/openai/openai-go/v3"

	"moodenv/internal/mood"
)

const (
	DefaultModel  = openai.ChatModelGPT4oMini
	DefaultFrames = 1
)

var (
	// ErrSensing: no frame could be captured; the model was not called.
	ErrSensing = errors.New("sensing failed")
	// ErrTransport: the model call failed or returned nothing usable.
	ErrTransport = errors.New("classifier transport failed")
)

// FrameSource captures JPEG stills.
type FrameSource interface {
	Capture(ctx context.Context, n int) ([][]byte, error)
}

type Options struct {
	Model  string
	Frames int
}

type Classifier struct {
	client openai.Client
	camera FrameSource
	model  openai.ChatModel
	frames int
}

func New(client openai.Client, camera FrameSource, opt Options) *Classifier {
	c := &Classifier{
		client: client,
		camera: camera,
		model:  DefaultModel,
		frames: DefaultFrames,
	}

	if opt.Model != "" {
		c.model = openai.ChatModel(opt.Model)
	}
	if opt.Frames > 0 {
		c.frames = opt.Frames
	}

	return c
}

// Classify captures frames and asks the model for a mood. Any answer the
// model gives maps to a label; only capture and transport faults fail.
func (c *Classifier) Classify(ctx context.Context) (mood.Label, error) {
	frames, err := c.camera.Capture(ctx, c.frames)
	if err != nil {
		return mood.None, fmt.Errorf("%w: %w", ErrSensing, err)
	}
	if len(frames) == 0 {
		return mood.None, ErrSensing
	}

	content, err := c.ask(ctx, frames)
	if err != nil {
		return mood.None, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	label := mood.ParseResponse(content)

	log.Info("Model answered", "component", "classifier", "raw", content, "mood", label)

	return label, nil
}

func (c *Classifier) ask(ctx context.Context, frames [][]byte) (string, error) {
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(frames)+1)
	parts = append(parts, openai.TextContentPart(rulesPrompt))
	for _, f := range frames {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL(f),
		}))
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
		Model: c.model,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("empty message content")
	}

	log.Debug("Processed", "component", "classifier", "data", content)

	return content, nil
}

func dataURL(jpeg []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
}
