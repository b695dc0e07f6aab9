package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventPublisher publishes a payload on a named channel. *mq.MQ satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Event is the envelope of every message the service emits.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// publishEvent sends an event when a publisher is configured. Failures are
// logged and swallowed: the event describes a change that is already
// committed.
func publishEvent(ctx context.Context, publisher EventPublisher, logger zerolog.Logger, channel string, data any) {
	if publisher == nil {
		return
	}

	event := Event{
		ID:         uuid.NewString(),
		Type:       channel,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Str("channel", channel).Msg("encode event")
		return
	}

	attrs := map[string]string{"event_id": event.ID, "event_type": channel}
	if _, err := publisher.Publish(ctx, channel, payload, attrs); err != nil {
		logger.Warn().Err(err).Str("channel", channel).Str("event_id", event.ID).Msg("publish event failed")
	}
}
