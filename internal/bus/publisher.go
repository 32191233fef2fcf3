package bus

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"moodenv/internal/mood"
	"moodenv/pkg/protocol"
)

const (
	DefaultHub   = "HUB"
	Shard        = "MOODENV"
	writeTimeout = 5 * time.Second
)

// Publisher tells the home hub about every applied mood.
type Publisher struct {
	mu  sync.Mutex
	ws  *protocol.WebSocket
	hub string
}

func NewPublisher(url string) *Publisher {
	p := &Publisher{hub: DefaultHub}
	p.ws = protocol.NewWebSocket(url, writeTimeout, func(raw []byte) {
		p.receive(string(raw))
	})
	return p
}

// receive decodes a hub frame. Only frames for this shard or broadcasts
// are kept; an ERR verb is the hub refusing a mood.
func (p *Publisher) receive(line string) *protocol.Message {
	msg, err := protocol.Parse(line)
	if err != nil {
		log.Warn("Failed to parse hub frame", "component", "bus", "msg", line, "err", err)
		return nil
	}
	if msg.To != Shard && msg.To != protocol.Broadcast {
		return nil
	}

	if msg.Verb == "ERR" {
		log.Warn("Hub rejected frame", "component", "bus", "msg", msg.String())
	} else {
		log.Debug("Hub replied", "component", "bus", "msg", msg.String())
	}
	return msg
}

func MoodMessage(hub string, l mood.Label) *protocol.Message {
	return &protocol.Message{
		To:   hub,
		Verb: "SET",
		Noun: "MOOD",
		Args: []string{l.String()},
		From: Shard,
	}
}

func (p *Publisher) Publish(ctx context.Context, l mood.Label) error {
	msg := MoodMessage(p.hub, l)
	if err := msg.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ws.Write(ctx, []byte(msg.String())); err != nil {
		return fmt.Errorf("publish %s: %w", msg, err)
	}

	log.Info("Published mood", "component", "bus", "msg", msg.String())
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ws.Close()
}
