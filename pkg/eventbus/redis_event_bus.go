package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/actionhub/pkg/events"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisEnvelope carries the metadata Redis pub/sub has no room for.
type redisEnvelope struct {
	ID      string           `json:"id"`
	Key     string           `json:"key"`
	Type    events.EventType `json:"type"`
	Payload json.RawMessage  `json:"payload"`
}

// RedisEventBus broadcasts over Redis pub/sub. Every subscribed instance
// receives every message; nothing is retained for instances that are down.
type RedisEventBus struct {
	logger   *slog.Logger
	client   redis.UniversalClient
	handlers *handlers
	pubsub   *redis.PubSub
}

func NewRedisEventBus(logger *slog.Logger, client redis.UniversalClient) EventBus {
	return &RedisEventBus{
		logger:   logger.With("module", "redis-event-bus"),
		client:   client,
		handlers: newHandlers(),
	}
}

func (eb *RedisEventBus) GenerateID() string {
	return uuid.New().String()
}

func (eb *RedisEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	envelope, err := json.Marshal(redisEnvelope{
		ID:      eb.GenerateID(),
		Key:     key,
		Type:    event.GetType(),
		Payload: payload,
	})
	if err != nil {
		return err
	}

	if err := eb.client.Publish(ctx, events.PluginInstallsTopic, envelope).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	return nil
}

func (eb *RedisEventBus) Subscribe(ctx context.Context) error {
	pubsub := eb.client.Subscribe(ctx, events.PluginInstallsTopic)

	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()

		return fmt.Errorf("failed to subscribe to redis: %w", err)
	}

	eb.pubsub = pubsub

	go func() {
		for msg := range pubsub.Channel() {
			var envelope redisEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				eb.logger.ErrorContext(ctx, "Dropping malformed envelope", "error", err)

				continue
			}

			handler, exists := eb.handlers.get(envelope.Type)
			if !exists {
				continue
			}

			event, err := decode(envelope.Type, envelope.Payload)
			if err != nil {
				eb.logger.ErrorContext(ctx, "Dropping undecodable event", "type", envelope.Type, "error", err)

				continue
			}

			if err := handler(ctx, event); err != nil {
				eb.logger.ErrorContext(ctx, "Event handler failed", "type", envelope.Type, "id", envelope.ID, "error", err)
			}
		}
	}()

	return nil
}

func (eb *RedisEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.handlers.set(eventType, handler)

	return nil
}

// Close stops the subscription and closes the client.
func (eb *RedisEventBus) Close() error {
	var err error
	if eb.pubsub != nil {
		err = eb.pubsub.Close()
	}

	return errors.Join(err, eb.client.Close())
}
