package mq

import (
	"context"
	"fmt"

	"github.com/revenac/apiserver/config"
)

// Channels used by the rewards service.
const (
	ChannelDeposits       = "rvm.deposits"
	ChannelCodes          = "rvm.codes"
	ChannelCodeClaimed    = "ledger.code_claimed"
	ChannelRewardRedeemed = "ledger.reward_redeemed"
)

// deadLetterSuffix names the queue or topic that receives messages a
// subscriber gave up on, e.g. rvm.deposits.dead.
const deadLetterSuffix = ".dead"

// DeadLetterChannel returns the dead-letter channel of channel.
func DeadLetterChannel(channel string) string {
	return channel + deadLetterSuffix
}

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
	// Attempt counts deliveries of this message, starting at 1. Backends
	// that cannot count exactly report 2 for any redelivery.
	Attempt int
}

// Handler processes a message. Returning an error hands the message back to
// the backend's retry policy: it is redelivered after a backoff and moved to
// the dead-letter channel once the backend stops retrying.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open builds the backend named by cfg.Backend. It returns nil, nil when no
// backend is configured.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case "":
		return nil, nil
	case "rabbitmq":
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s: %w", cfg.Backend, err)
	}
	return New(backend), nil
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
