package services

import (
	"context"
	"errors"

	"geochat-service/internal/models"
	"geochat-service/internal/repositories"
)

const (
	joinSuffix      = " se ha unido al chat"
	leaveSuffix     = " se ha salido del chat"
	chatCreatedBody = "Se ha creado el chatgeneral"
)

// SessionTracker owns the join and leave markers that bound each user's view of the chat.
type SessionTracker struct {
	messages repositories.MessageRepository
}

// NewSessionTracker builds a SessionTracker.
func NewSessionTracker(messages repositories.MessageRepository) *SessionTracker {
	return &SessionTracker{messages: messages}
}

// CurrentJoinMarker returns the user's latest join marker, or nil when there is none.
func (t *SessionTracker) CurrentJoinMarker(ctx context.Context, userID int64) (*models.ChatMessage, error) {
	msg, err := t.messages.LatestJoin(ctx, userID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence("load join marker", err)
	}
	return &msg, nil
}

// RecordJoin replaces the user's join marker. With bootstrap set a "chat created"
// system message is written first, in the same transaction. Rows come back in log order.
func (t *SessionTracker) RecordJoin(ctx context.Context, user models.User, bootstrap bool) ([]models.ChatMessage, error) {
	var preceding []models.NewMessage
	if bootstrap {
		preceding = append(preceding, models.NewMessage{
			UserID:   user.ID,
			Kind:     models.KindSystem,
			UserName: models.SystemName,
			Message:  chatCreatedBody,
		})
	}
	marker := models.NewMessage{
		UserID:   user.ID,
		Kind:     models.KindJoin,
		UserName: models.SystemName,
		Message:  user.Name + joinSuffix,
	}

	created, err := t.messages.ReplaceJoin(ctx, user.ID, preceding, marker)
	if err != nil {
		return nil, persistence("record join", err)
	}
	return created, nil
}

// RecordLeave appends a leave marker. Join markers are left alone.
func (t *SessionTracker) RecordLeave(ctx context.Context, user models.User) (models.ChatMessage, error) {
	msg, err := t.messages.Append(ctx, models.NewMessage{
		UserID:   user.ID,
		Kind:     models.KindLeave,
		UserName: models.SystemName,
		Message:  user.Name + leaveSuffix,
	})
	if err != nil {
		return models.ChatMessage{}, persistence("record leave", err)
	}
	return msg, nil
}
