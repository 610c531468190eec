package models

// ChatEvent is fanned out to websocket clients and other instances.
type ChatEvent struct {
	Type    string       `json:"type"`
	Message *ChatMessage `json:"message,omitempty"`
}

const (
	EventMessage = "message"
	EventPurge   = "purge"
)

// JoinResult describes the outcome of a join request.
type JoinResult struct {
	Messages      []ChatMessage
	AlreadyJoined bool
	FirstUser     bool
}
