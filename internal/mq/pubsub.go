package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/revenac/apiserver/config"
	"google.golang.org/api/option"
)

// PubSubClient maps channels to Pub/Sub topics with one subscription each.
// Subscriptions are created with an exponential retry policy and a
// dead-letter topic named by DeadLetterChannel, so nacked messages back off
// and stop after maxAttempts deliveries.
type PubSubClient struct {
	client      *pubsub.Client
	suffix      string
	minBackoff  time.Duration
	maxBackoff  time.Duration
	maxAttempts int
}

// NewPubSubClient creates a client for cfg.ProjectID.
func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	return &PubSubClient{
		client:      client,
		suffix:      cfg.SubscriptionSuffix,
		minBackoff:  cfg.MinBackoff,
		maxBackoff:  cfg.MaxBackoff,
		maxAttempts: cfg.MaxDeliveryAttempts,
	}, nil
}

// Publish sends data to the topic named channel and returns the server id.
func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("pubsub channel is required")
	}
	topic, err := p.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	return topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
}

// Subscribe receives from the channel's subscription until ctx is done.
func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("pubsub channel is required")
	}
	topic, err := p.topic(ctx, channel)
	if err != nil {
		return err
	}
	dead, err := p.topic(ctx, DeadLetterChannel(channel))
	if err != nil {
		return err
	}

	name := channel + p.suffix
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("lookup subscription %s: %w", name, err)
	}
	if !exists {
		sub, err = p.client.CreateSubscription(ctx, name, p.subscriptionConfig(topic, dead.String()))
		if err != nil {
			return fmt.Errorf("create subscription %s: %w", name, err)
		}
	}

	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		if err := handler(ctx, pubsubMessage(m)); err != nil {
			m.Nack()
			return
		}
		m.Ack()
	})
}

// Close closes the underlying client.
func (p *PubSubClient) Close() error {
	return p.client.Close()
}

func (p *PubSubClient) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("lookup topic %s: %w", name, err)
	}
	if exists {
		return topic, nil
	}
	return p.client.CreateTopic(ctx, name)
}

func (p *PubSubClient) subscriptionConfig(topic *pubsub.Topic, deadLetterTopic string) pubsub.SubscriptionConfig {
	cfg := pubsub.SubscriptionConfig{Topic: topic}
	if p.minBackoff > 0 || p.maxBackoff > 0 {
		retry := &pubsub.RetryPolicy{}
		if p.minBackoff > 0 {
			retry.MinimumBackoff = p.minBackoff
		}
		if p.maxBackoff > 0 {
			retry.MaximumBackoff = p.maxBackoff
		}
		cfg.RetryPolicy = retry
	}
	if p.maxAttempts > 0 {
		// Pub/Sub accepts 5 to 100 delivery attempts.
		attempts := min(max(p.maxAttempts, 5), 100)
		cfg.DeadLetterPolicy = &pubsub.DeadLetterPolicy{
			DeadLetterTopic:     deadLetterTopic,
			MaxDeliveryAttempts: attempts,
		}
	}
	return cfg
}

func pubsubMessage(m *pubsub.Message) Message {
	attempt := 1
	if m.DeliveryAttempt != nil {
		attempt = *m.DeliveryAttempt
	}
	return Message{
		ID:         m.ID,
		Data:       m.Data,
		Attributes: m.Attributes,
		Attempt:    attempt,
	}
}
