package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lostfound-board/apiserver/config"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API. A nil *MQ drops published messages.
type MQ struct {
	backend Backend
}

// NewMQ constructs an MQ wrapper for the provided backend.
func NewMQ(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// New connects to the broker selected by cfg. It returns nil, nil when
// messaging is disabled.
func New(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case "", config.BackendNone:
		return nil, nil
	case config.BackendRabbitMQ:
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case config.BackendPubSub:
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Backend, err)
	}
	return NewMQ(backend), nil
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if m == nil {
		return "", nil
	}
	return m.backend.Publish(ctx, channel, data, attrs)
}

// PublishJSON encodes value as JSON and publishes it on channel.
func (m *MQ) PublishJSON(ctx context.Context, channel string, value any, attrs map[string]string) (string, error) {
	if m == nil {
		return "", nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode %s message: %w", channel, err)
	}
	merged := make(map[string]string, len(attrs)+1)
	for key, value := range attrs {
		merged[key] = value
	}
	merged["content_type"] = "application/json"
	return m.backend.Publish(ctx, channel, data, merged)
}

// Subscribe consumes messages from the named channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	if m == nil {
		return nil
	}
	return m.backend.Close()
}
