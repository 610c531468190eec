package observability

import (
	"context"
	"time"

	"geochat-service/internal/logging"
)

// EventPublisher is the subset of the AMQP publisher used for operational events.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type EventEnvelope struct {
	EventType  string      `json:"event_type"`
	EventName  string      `json:"event_name"`
	OccurredAt string      `json:"occurred_at"`
	RequestID  string      `json:"request_id,omitempty"`
	TraceID    string      `json:"trace_id,omitempty"`
	Payload    interface{} `json:"payload"`
}

var defaultPublisher EventPublisher

func SetPublisher(publisher EventPublisher) {
	defaultPublisher = publisher
}

// PublishEvent sends an operational event when a publisher is installed.
func PublishEvent(ctx context.Context, routingKey, eventType, eventName string, payload interface{}) error {
	if defaultPublisher == nil {
		return nil
	}

	envelope := EventEnvelope{
		EventType:  eventType,
		EventName:  eventName,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		RequestID:  logging.RequestID(ctx),
		TraceID:    TraceID(ctx),
		Payload:    payload,
	}
	err := defaultPublisher.Publish(ctx, routingKey, envelope)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}
