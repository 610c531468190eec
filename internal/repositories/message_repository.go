package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"geochat-service/internal/models"
)

// MessageRepository is the append-only global chat log.
type MessageRepository interface {
	Append(ctx context.Context, msg models.NewMessage) (models.ChatMessage, error)
	AllOrdered(ctx context.Context) ([]models.ChatMessage, error)
	Since(ctx context.Context, since time.Time) ([]models.ChatMessage, error)
	Count(ctx context.Context) (int, error)
	PurgeAll(ctx context.Context) (int64, error)
	LatestJoin(ctx context.Context, userID int64) (models.ChatMessage, error)
	ReplaceJoin(ctx context.Context, userID int64, preceding []models.NewMessage, marker models.NewMessage) ([]models.ChatMessage, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const (
	messageColumns = `id, user_id, kind, user_name, message, created_at`
	insertMessage  = `INSERT INTO chat_messages (user_id, kind, user_name, message) VALUES ($1, $2, $3, $4) RETURNING ` + messageColumns
)

// Append stores a message; id and created_at come from the database.
func (r *MessageRepo) Append(ctx context.Context, msg models.NewMessage) (models.ChatMessage, error) {
	var out models.ChatMessage
	err := r.db.GetContext(ctx, &out, insertMessage, msg.UserID, msg.Kind, msg.UserName, msg.Message)
	if isUniqueViolation(err) {
		return models.ChatMessage{}, ErrJoinConflict
	}
	return out, err
}

// AllOrdered returns the whole log in (created_at, id) order.
func (r *MessageRepo) AllOrdered(ctx context.Context) ([]models.ChatMessage, error) {
	msgs := []models.ChatMessage{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM chat_messages ORDER BY created_at ASC, id ASC`)
	return msgs, err
}

// Since returns messages created at or after since, in log order.
func (r *MessageRepo) Since(ctx context.Context, since time.Time) ([]models.ChatMessage, error) {
	msgs := []models.ChatMessage{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM chat_messages WHERE created_at >= $1 ORDER BY created_at ASC, id ASC`, since)
	return msgs, err
}

// Count returns the number of messages in the log.
func (r *MessageRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM chat_messages`)
	return count, err
}

// PurgeAll deletes every message and reports how many were removed.
func (r *MessageRepo) PurgeAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LatestJoin returns the user's current join marker.
func (r *MessageRepo) LatestJoin(ctx context.Context, userID int64) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM chat_messages
        WHERE user_id=$1 AND kind=$2
        ORDER BY created_at DESC, id DESC
        LIMIT 1`, userID, models.KindJoin)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatMessage{}, ErrMessageNotFound
	}
	return msg, err
}

// ReplaceJoin appends preceding, drops the user's older join markers and appends
// marker, all in one transaction. The created rows are returned in insertion order.
func (r *MessageRepo) ReplaceJoin(ctx context.Context, userID int64, preceding []models.NewMessage, marker models.NewMessage) ([]models.ChatMessage, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin join tx: %w", err)
	}
	defer tx.Rollback()

	created := make([]models.ChatMessage, 0, len(preceding)+1)
	for _, m := range preceding {
		var out models.ChatMessage
		if err := tx.GetContext(ctx, &out, insertMessage, m.UserID, m.Kind, m.UserName, m.Message); err != nil {
			return nil, err
		}
		created = append(created, out)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE user_id=$1 AND kind=$2`, userID, models.KindJoin); err != nil {
		return nil, err
	}

	var joined models.ChatMessage
	if err := tx.GetContext(ctx, &joined, insertMessage, marker.UserID, marker.Kind, marker.UserName, marker.Message); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrJoinConflict
		}
		return nil, err
	}
	created = append(created, joined)

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrJoinConflict
		}
		return nil, err
	}
	return created, nil
}
