package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/actionhub/pkg/channels/gochannel"
	"github.com/dukex/actionhub/pkg/channels/kafka"
	"github.com/dukex/actionhub/pkg/eventbus"
	"github.com/redis/go-redis/v9"
)

// EventBusConfig selects and configures the broadcast channel.
type EventBusConfig struct {
	Provider     string
	InstanceID   string
	KafkaBrokers string
	RedisURL     string
	Tracing      bool
}

// NewEventBus builds the broadcast channel every instance subscribes to.
func NewEventBus(ctx context.Context, logger *slog.Logger, cfg EventBusConfig) (eventbus.EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch cfg.Provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, kafka.ParseBrokers(cfg.KafkaBrokers), cfg.InstanceID, cfg.Tracing)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(logger, pub, sub), nil
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}

		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()

			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}

		return eventbus.NewRedisEventBus(logger, client), nil
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			return nil, err
		}

		return eventbus.NewWatermillEventBus(logger, pub, sub), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEventBus, cfg.Provider)
	}
}
