package realtime

import (
	"context"

	"geochat-service/internal/models"
)

// Broadcaster delivers an event to the clients connected to this instance.
type Broadcaster interface {
	Broadcast(event models.ChatEvent)
}

// LocalBus delivers chat events to this instance only.
type LocalBus struct {
	hub Broadcaster
}

// NewLocalBus builds a LocalBus.
func NewLocalBus(hub Broadcaster) *LocalBus {
	return &LocalBus{hub: hub}
}

func (b *LocalBus) PublishChatEvent(_ context.Context, event models.ChatEvent) error {
	b.hub.Broadcast(event)
	return nil
}
