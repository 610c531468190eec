package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"geochat-service/internal/logging"
	"geochat-service/internal/models"
	"geochat-service/internal/observability"
	"geochat-service/internal/repositories"
)

const defaultBanReason = "No reason provided"

// LiveSessions closes the live feeds a user still holds open.
type LiveSessions interface {
	DisconnectUser(userID int64) int
}

// ModerationService lets administrators ban and unban accounts.
type ModerationService struct {
	users    repositories.UserRepository
	chat     *ChatService
	sessions LiveSessions
	audit    Auditor
}

// NewModerationService builds a ModerationService. sessions and audit may be nil.
func NewModerationService(users repositories.UserRepository, chat *ChatService, sessions LiveSessions, audit Auditor) *ModerationService {
	return &ModerationService{users: users, chat: chat, sessions: sessions, audit: audit}
}

// ListUsers returns every account, ordered by id.
func (s *ModerationService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, persistence("list users", err)
	}
	return users, nil
}

// Ban blocks targetID and takes it out of the chat. A blank reason is replaced
// with a default one. Administrators cannot ban themselves.
func (s *ModerationService) Ban(ctx context.Context, adminID, targetID int64, reason string) (models.User, error) {
	ctx, span := observability.StartSpan(ctx, "moderation.ban",
		attribute.Int64("admin.id", adminID), attribute.Int64("user.id", targetID))
	defer span.End()

	if adminID == targetID {
		return models.User{}, invalid("id", "administrators cannot ban themselves")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultBanReason
	}

	if err := s.users.Ban(ctx, targetID, reason); err != nil {
		return models.User{}, s.userError("ban user", err)
	}
	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return models.User{}, s.userError("load user", err)
	}

	logger := logging.Ctx(ctx)
	if s.sessions != nil {
		if n := s.sessions.DisconnectUser(targetID); n > 0 {
			logger.Info().Int64(logging.FieldUserID, targetID).Int("connections", n).Msg("closed live feeds of banned user")
		}
	}
	if s.chat != nil {
		if _, err := s.chat.CleanupIfEmpty(ctx); err != nil {
			logger.Error().Err(err).Msg("chat cleanup after ban failed")
		}
	}
	s.emit(ctx, "WARN", "user banned: "+reason, targetID)
	logger.Info().Int64("admin_id", adminID).Int64(logging.FieldUserID, targetID).Str("reason", reason).Msg("user banned")
	return user, nil
}

// Unban lifts the ban on targetID.
func (s *ModerationService) Unban(ctx context.Context, adminID, targetID int64) (models.User, error) {
	if err := s.users.Unban(ctx, targetID); err != nil {
		return models.User{}, s.userError("unban user", err)
	}
	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return models.User{}, s.userError("load user", err)
	}
	s.emit(ctx, "INFO", "user unbanned", targetID)
	logging.Ctx(ctx).Info().Int64("admin_id", adminID).Int64(logging.FieldUserID, targetID).Msg("user unbanned")
	return user, nil
}

// BanStatus returns the caller's account so banned users can see why.
func (s *ModerationService) BanStatus(ctx context.Context, userID int64) (models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return models.User{}, s.userError("load user", err)
	}
	return user, nil
}

func (s *ModerationService) userError(op string, err error) error {
	if errors.Is(err, repositories.ErrUserNotFound) {
		return ErrNotFound
	}
	return persistence(op, err)
}

func (s *ModerationService) emit(ctx context.Context, level, text string, userID int64) {
	if s.audit == nil {
		return
	}
	uid := strconv.FormatInt(userID, 10)
	s.audit.Emit(ctx, level, text, logging.RequestID(ctx), &uid)
}
