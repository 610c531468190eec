package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"geochat-service/internal/config"
	"geochat-service/internal/logging"
	"geochat-service/internal/models"
)

// RedisBus fans chat events out through a Redis channel so every instance
// forwards them to its own websocket clients.
type RedisBus struct {
	client  *redis.Client
	channel string
	hub     Broadcaster
}

// NewRedisBus connects to Redis and verifies the connection.
func NewRedisBus(ctx context.Context, cfg config.RedisConfig, hub Broadcaster) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisBus{client: client, channel: cfg.Channel, hub: hub}, nil
}

// PublishChatEvent publishes event on the shared channel.
func (b *RedisBus) PublishChatEvent(ctx context.Context, event models.ChatEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Run forwards events from the shared channel to the local hub until ctx is done.
func (b *RedisBus) Run(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	logger := logging.L().With().Str(logging.FieldComponent, "realtime").Logger()
	logger.Info().Str("channel", b.channel).Msg("subscribed to chat channel")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := dispatch(b.hub, msg.Payload); err != nil {
				logger.Warn().Err(err).Msg("dropping malformed chat event")
			}
		}
	}
}

// Close releases the Redis client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}

func dispatch(hub Broadcaster, payload string) error {
	var event models.ChatEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return err
	}
	if event.Type == "" {
		return fmt.Errorf("chat event without type")
	}
	hub.Broadcast(event)
	return nil
}
