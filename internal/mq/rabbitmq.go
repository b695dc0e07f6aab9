package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/revenac/apiserver/config"
)

// RabbitMQClient publishes to and consumes from durable queues on the
// default exchange. Every queue is paired with a dead-letter queue named by
// DeadLetterChannel.
//
// A delivery whose handler fails is requeued once after retryDelay. If it
// fails again it is rejected without requeue and RabbitMQ routes it to the
// dead-letter queue, so an outage behind the handler cannot make a consumer
// spin on the same message.
type RabbitMQClient struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	durable    bool
	autoDelete bool
	retryDelay time.Duration
}

// NewRabbitMQClient dials cfg.URL and opens one channel.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	return &RabbitMQClient{
		conn:       conn,
		channel:    ch,
		durable:    cfg.QueueDurable,
		autoDelete: cfg.QueueAutoDelete,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Publish sends a persistent JSON message to the queue named channel.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}
	if err := r.declare(channel); err != nil {
		return "", err
	}

	headers := make(amqp.Table, len(attrs))
	for key, value := range attrs {
		headers[key] = value
	}

	id := uuid.NewString()
	err := r.channel.PublishWithContext(ctx, "", channel, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", channel, err)
	}
	return id, nil
}

// Subscribe consumes the queue named channel until ctx is done or the
// broker closes the delivery channel.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}
	if err := r.declare(channel); err != nil {
		return err
	}

	tag := "revenac-" + uuid.NewString()
	deliveries, err := r.channel.Consume(channel, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", channel, err)
	}
	defer func() {
		_ = r.channel.Cancel(tag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			msg := deliveryMessage(delivery)
			if err := r.settle(ctx, delivery, msg.Attempt, handler(ctx, msg)); err != nil {
				return fmt.Errorf("settle %s: %w", msg.ID, err)
			}
		}
	}
}

// Close closes the channel and the connection.
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// acknowledger is the part of amqp.Delivery the consumer settles through.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (r *RabbitMQClient) settle(ctx context.Context, d acknowledger, attempt int, handlerErr error) error {
	if handlerErr == nil {
		return d.Ack(false)
	}
	if attempt > 1 {
		return d.Nack(false, false)
	}
	if r.retryDelay > 0 {
		timer := time.NewTimer(r.retryDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
	return d.Nack(false, true)
}

func (r *RabbitMQClient) declare(channel string) error {
	dead := DeadLetterChannel(channel)
	if _, err := r.channel.QueueDeclare(dead, r.durable, r.autoDelete, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", dead, err)
	}
	if _, err := r.channel.QueueDeclare(channel, r.durable, r.autoDelete, false, false, queueArgs(channel)); err != nil {
		return fmt.Errorf("declare %s: %w", channel, err)
	}
	return nil
}

// queueArgs routes rejected messages of channel to its dead-letter queue
// through the default exchange.
func queueArgs(channel string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": DeadLetterChannel(channel),
	}
}

func deliveryMessage(d amqp.Delivery) Message {
	attempt := 1
	if d.Redelivered {
		attempt = 2
	}
	return Message{
		ID:         d.MessageId,
		Data:       d.Body,
		Attributes: headersToAttributes(d.Headers),
		Attempt:    attempt,
	}
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
