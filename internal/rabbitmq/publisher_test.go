package rabbitmq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geochat-service/internal/observability"
	"geochat-service/internal/telemetry"
)

func TestNewPublisherWithoutURLIsNoop(t *testing.T) {
	p := NewPublisher("", "geochat.events")

	assert.Equal(t, "noop", PublisherMode(p))
	assert.Equal(t, "empty amqp url", PublisherNoopReason(p))
	require.NoError(t, p.Close())
}

func TestNoopPublisherAcceptsEnvelopes(t *testing.T) {
	p := NewPublisher("", "geochat.events")

	require.NoError(t, p.Publish(context.Background(), "audit.geochat", telemetry.AuditEnvelope{EventType: "audit_log"}))
	require.NoError(t, p.Publish(context.Background(), "ws_events.chat", observability.EventEnvelope{EventType: "ws_events", EventName: "ws_connect"}))
	require.NoError(t, p.Publish(context.Background(), "other", map[string]string{"k": "v"}))
}

func TestPublisherModeUnknown(t *testing.T) {
	assert.Equal(t, "unknown", PublisherMode(nil))
	assert.Empty(t, PublisherNoopReason(nil))
}
