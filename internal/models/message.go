package models

import "time"

// MessageKind tells user messages apart from system-generated session markers.
type MessageKind string

const (
	KindUser   MessageKind = "user"
	KindJoin   MessageKind = "join"
	KindLeave  MessageKind = "leave"
	KindSystem MessageKind = "system"
)

// SystemName is the display name reserved for system-authored messages.
const SystemName = "Sistema"

// ChatMessage is a row of the global chat log.
type ChatMessage struct {
	ID        int64       `db:"id" json:"id"`
	UserID    int64       `db:"user_id" json:"user_id"`
	Kind      MessageKind `db:"kind" json:"kind"`
	UserName  string      `db:"user_name" json:"user_name"`
	Message   string      `db:"message" json:"message"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// NewMessage carries the caller-provided fields of a message about to be appended.
// ID and CreatedAt are assigned by the store.
type NewMessage struct {
	UserID   int64
	Kind     MessageKind
	UserName string
	Message  string
}

// Before reports whether m sorts before other in log order (created_at, then id).
func (m ChatMessage) Before(other ChatMessage) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
