package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/revenac/apiserver/config"
)

func TestHeadersToAttributes(t *testing.T) {
	attrs := headersToAttributes(amqp.Table{
		"event":   "ledger.code_claimed",
		"raw":     []byte("bytes"),
		"user_id": int32(42),
	})
	if attrs["event"] != "ledger.code_claimed" {
		t.Fatalf("unexpected event attr %q", attrs["event"])
	}
	if attrs["raw"] != "bytes" {
		t.Fatalf("unexpected raw attr %q", attrs["raw"])
	}
	if attrs["user_id"] != "42" {
		t.Fatalf("unexpected user_id attr %q", attrs["user_id"])
	}
	if headersToAttributes(nil) != nil {
		t.Fatalf("expected nil attributes for empty headers")
	}
}

type recordingAck struct {
	acked    bool
	nacked   bool
	requeued bool
}

func (r *recordingAck) Ack(multiple bool) error {
	r.acked = true
	return nil
}

func (r *recordingAck) Nack(multiple, requeue bool) error {
	r.nacked = true
	r.requeued = requeue
	return nil
}

func TestRabbitMQSettle(t *testing.T) {
	client := &RabbitMQClient{retryDelay: 20 * time.Millisecond}
	failure := errors.New("database unavailable")
	ctx := context.Background()

	ok := &recordingAck{}
	if err := client.settle(ctx, ok, 1, nil); err != nil || !ok.acked || ok.nacked {
		t.Fatalf("expected ack, got %+v %v", ok, err)
	}

	first := &recordingAck{}
	start := time.Now()
	if err := client.settle(ctx, first, 1, failure); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !first.nacked || !first.requeued {
		t.Fatalf("expected first failure to be requeued, got %+v", first)
	}
	if waited := time.Since(start); waited < client.retryDelay {
		t.Fatalf("expected requeue after %v, waited %v", client.retryDelay, waited)
	}

	redelivered := &recordingAck{}
	start = time.Now()
	if err := client.settle(ctx, redelivered, 2, failure); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !redelivered.nacked || redelivered.requeued {
		t.Fatalf("expected redelivery failure to be dead-lettered, got %+v", redelivered)
	}
	if waited := time.Since(start); waited >= client.retryDelay {
		t.Fatalf("expected dead-lettering without delay, waited %v", waited)
	}
}

func TestRabbitMQSettleStopsWaitingOnCancel(t *testing.T) {
	client := &RabbitMQClient{retryDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ack := &recordingAck{}
	if err := client.settle(ctx, ack, 1, errors.New("boom")); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !ack.requeued {
		t.Fatalf("expected requeue on shutdown, got %+v", ack)
	}
}

func TestRabbitMQQueueArgs(t *testing.T) {
	args := queueArgs(ChannelDeposits)
	if args["x-dead-letter-exchange"] != "" {
		t.Fatalf("expected default exchange, got %v", args["x-dead-letter-exchange"])
	}
	if args["x-dead-letter-routing-key"] != "rvm.deposits.dead" {
		t.Fatalf("unexpected dead-letter route %v", args["x-dead-letter-routing-key"])
	}
}

func TestDeliveryMessageAttempt(t *testing.T) {
	msg := deliveryMessage(amqp.Delivery{MessageId: "m1", Body: []byte("{}")})
	if msg.ID != "m1" || msg.Attempt != 1 {
		t.Fatalf("unexpected first delivery %+v", msg)
	}
	if msg := deliveryMessage(amqp.Delivery{Redelivered: true}); msg.Attempt != 2 {
		t.Fatalf("expected attempt 2 for a redelivery, got %d", msg.Attempt)
	}
}

func TestPubSubSubscriptionConfig(t *testing.T) {
	client := &PubSubClient{minBackoff: 10 * time.Second, maxBackoff: 10 * time.Minute, maxAttempts: 3}
	cfg := client.subscriptionConfig(nil, "projects/p/topics/rvm.deposits.dead")

	if cfg.RetryPolicy == nil || cfg.RetryPolicy.MinimumBackoff != 10*time.Second || cfg.RetryPolicy.MaximumBackoff != 10*time.Minute {
		t.Fatalf("unexpected retry policy %+v", cfg.RetryPolicy)
	}
	if cfg.DeadLetterPolicy == nil || cfg.DeadLetterPolicy.DeadLetterTopic != "projects/p/topics/rvm.deposits.dead" {
		t.Fatalf("unexpected dead-letter policy %+v", cfg.DeadLetterPolicy)
	}
	if cfg.DeadLetterPolicy.MaxDeliveryAttempts != 5 {
		t.Fatalf("expected attempts clamped to 5, got %d", cfg.DeadLetterPolicy.MaxDeliveryAttempts)
	}

	bare := (&PubSubClient{}).subscriptionConfig(nil, "")
	if bare.RetryPolicy != nil || bare.DeadLetterPolicy != nil {
		t.Fatalf("expected no policies when unconfigured, got %+v", bare)
	}
}

func TestPubSubMessageAttempt(t *testing.T) {
	attempt := 3
	msg := pubsubMessage(&pubsub.Message{ID: "m1", DeliveryAttempt: &attempt})
	if msg.ID != "m1" || msg.Attempt != 3 {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg := pubsubMessage(&pubsub.Message{}); msg.Attempt != 1 {
		t.Fatalf("expected attempt 1 without a dead-letter policy, got %d", msg.Attempt)
	}
}

func TestDeadLetterChannel(t *testing.T) {
	if got := DeadLetterChannel(ChannelDeposits); got != "rvm.deposits.dead" {
		t.Fatalf("unexpected dead-letter channel %q", got)
	}
}

type recordingBackend struct {
	published []string
}

func (r *recordingBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	r.published = append(r.published, channel)
	return "id-1", nil
}

func (r *recordingBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return handler(ctx, Message{ID: "m1", Data: []byte("{}")})
}

func (r *recordingBackend) Close() error { return nil }

func TestMQDelegates(t *testing.T) {
	backend := &recordingBackend{}
	q := New(backend)

	id, err := q.Publish(context.Background(), ChannelCodes, []byte("x"), nil)
	if err != nil || id != "id-1" {
		t.Fatalf("publish: %q %v", id, err)
	}
	var got Message
	if err := q.Subscribe(context.Background(), ChannelDeposits, func(ctx context.Context, msg Message) error {
		got = msg
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if got.ID != "m1" || len(backend.published) != 1 {
		t.Fatalf("unexpected delegation state: %+v %v", got, backend.published)
	}
}

func TestOpenWithoutBackend(t *testing.T) {
	q, err := Open(context.Background(), config.MQConfig{})
	if err != nil || q != nil {
		t.Fatalf("expected nil queue, got %v %v", q, err)
	}
	if _, err := Open(context.Background(), config.MQConfig{Backend: "kafka"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
