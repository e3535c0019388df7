package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type StreamsConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// StreamsNotifier publishes notifications to a Redis Stream so other Neo
// Alexandria processes (UI gateway, digest mailer) can consume them.
type StreamsNotifier struct {
	client *redis.Client
	stream string
}

func NewStreamsNotifier(ctx context.Context, cfg StreamsConfig) (*StreamsNotifier, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.Stream == "" {
		cfg.Stream = "na_notifications"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &StreamsNotifier{client: client, stream: cfg.Stream}, nil
}

func (n *StreamsNotifier) Notify(ctx context.Context, kind Kind, message string) error {
	_, err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]any{
			"kind":    string(kind),
			"message": message,
			"sent_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (n *StreamsNotifier) Close() error {
	return n.client.Close()
}
