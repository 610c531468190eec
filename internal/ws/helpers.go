package ws

import (
	"time"

	"github.com/google/uuid"
)

func newConnID() string {
	return uuid.NewString()
}

func connPayload(info ConnInfo, event, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"room":        "general",
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id": info.UserID,
			"ip":      info.IP,
		},
	}
}
