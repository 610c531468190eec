package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"geochat-service/internal/config"
	"geochat-service/internal/logging"
	"geochat-service/internal/models"
	"geochat-service/internal/observability"
	"geochat-service/internal/repositories"
)

// EventPublisher fans chat events out to live listeners.
type EventPublisher interface {
	PublishChatEvent(ctx context.Context, event models.ChatEvent) error
}

// Auditor records audit trail entries.
type Auditor interface {
	Emit(ctx context.Context, level, text, requestID string, userID *string)
}

// ChatStats is a snapshot of the global chat.
type ChatStats struct {
	Messages      int `json:"messages"`
	EligibleUsers int `json:"eligible_users"`
}

// ChatService orchestrates the global chat: join, send, fetch, leave and cleanup.
type ChatService struct {
	users    repositories.UserRepository
	messages repositories.MessageRepository
	sessions *SessionTracker
	events   EventPublisher
	audit    Auditor
	maxLen   int
}

// NewChatService builds a ChatService. events and audit may be nil.
func NewChatService(users repositories.UserRepository, messages repositories.MessageRepository, events EventPublisher, audit Auditor, cfg config.ChatConfig) *ChatService {
	return &ChatService{
		users:    users,
		messages: messages,
		sessions: NewSessionTracker(messages),
		events:   events,
		audit:    audit,
		maxLen:   cfg.MaxMessageLength,
	}
}

// Join opens the user's session window. A user who already holds a join marker
// gets it back unchanged with AlreadyJoined set. The first join into an empty
// log also writes the "chat created" message and sets FirstUser.
func (s *ChatService) Join(ctx context.Context, userID int64) (models.JoinResult, error) {
	ctx, span := observability.StartSpan(ctx, "chat.join", attribute.Int64("user.id", userID))
	defer span.End()

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return models.JoinResult{}, err
	}

	existing, err := s.sessions.CurrentJoinMarker(ctx, userID)
	if err != nil {
		return models.JoinResult{}, err
	}
	if existing != nil {
		return models.JoinResult{Messages: []models.ChatMessage{*existing}, AlreadyJoined: true}, nil
	}

	count, err := s.messages.Count(ctx)
	if err != nil {
		return models.JoinResult{}, persistence("count messages", err)
	}
	bootstrap := count == 0

	created, err := s.sessions.RecordJoin(ctx, user, bootstrap)
	if errors.Is(err, repositories.ErrJoinConflict) {
		// a concurrent join of the same user won; report its marker
		existing, lookupErr := s.sessions.CurrentJoinMarker(ctx, userID)
		if lookupErr != nil {
			return models.JoinResult{}, lookupErr
		}
		if existing != nil {
			return models.JoinResult{Messages: []models.ChatMessage{*existing}, AlreadyJoined: true}, nil
		}
	}
	if err != nil {
		return models.JoinResult{}, err
	}

	for i := range created {
		s.announce(ctx, created[i])
	}
	s.emitAudit(ctx, "INFO", "user joined chat", userID)
	logging.Ctx(ctx).Info().
		Int64(logging.FieldUserID, userID).
		Bool("first_user", bootstrap).
		Msg("user joined chat")

	return models.JoinResult{Messages: created, FirstUser: bootstrap}, nil
}

// Send appends a user message. The body is trimmed and must hold between 1 and
// the configured maximum number of characters.
func (s *ChatService) Send(ctx context.Context, userID int64, body string) (models.ChatMessage, error) {
	ctx, span := observability.StartSpan(ctx, "chat.send", attribute.Int64("user.id", userID))
	defer span.End()

	body = strings.TrimSpace(body)
	if body == "" {
		return models.ChatMessage{}, invalid("message", "message is required")
	}
	if utf8.RuneCountInString(body) > s.maxLen {
		return models.ChatMessage{}, invalid("message", "message must be at most "+strconv.Itoa(s.maxLen)+" characters")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return models.ChatMessage{}, err
	}

	msg, err := s.messages.Append(ctx, models.NewMessage{
		UserID:   user.ID,
		Kind:     models.KindUser,
		UserName: user.Name,
		Message:  body,
	})
	if err != nil {
		return models.ChatMessage{}, persistence("append message", err)
	}

	s.announce(ctx, msg)
	return msg, nil
}

// Fetch returns the messages visible to the user: everything from the current
// join marker on, or the whole log when the user has no marker.
func (s *ChatService) Fetch(ctx context.Context, userID int64) ([]models.ChatMessage, error) {
	ctx, span := observability.StartSpan(ctx, "chat.fetch", attribute.Int64("user.id", userID))
	defer span.End()

	marker, err := s.sessions.CurrentJoinMarker(ctx, userID)
	if err != nil {
		return nil, err
	}

	var msgs []models.ChatMessage
	if marker != nil {
		msgs, err = s.messages.Since(ctx, marker.CreatedAt)
	} else {
		msgs, err = s.messages.AllOrdered(ctx)
	}
	if err != nil {
		return nil, persistence("load messages", err)
	}
	span.SetAttributes(attribute.Bool("chat.windowed", marker != nil), attribute.Int("chat.messages", len(msgs)))
	return msgs, nil
}

// Leave writes the leave marker, deactivates the user and purges the chat when
// nobody eligible is left. A failed leave marker is logged and does not stop the rest.
func (s *ChatService) Leave(ctx context.Context, userID int64) error {
	ctx, span := observability.StartSpan(ctx, "chat.leave", attribute.Int64("user.id", userID))
	defer span.End()

	logger := logging.Ctx(ctx)
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	if msg, err := s.sessions.RecordLeave(ctx, user); err != nil {
		observability.IncLeaveFailure()
		logger.Warn().Err(err).Int64(logging.FieldUserID, userID).Msg("leave message not written")
	} else {
		s.announce(ctx, msg)
	}

	if err := s.users.Deactivate(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrNotFound
		}
		return persistence("deactivate user", err)
	}
	s.emitAudit(ctx, "INFO", "user left chat", userID)

	if _, err := s.CleanupIfEmpty(ctx); err != nil {
		logger.Error().Err(err).Msg("chat cleanup failed")
	}
	return nil
}

// CleanupIfEmpty purges the whole log when no eligible user remains. A failed
// count is treated as one eligible user so the log is never purged on doubt.
func (s *ChatService) CleanupIfEmpty(ctx context.Context) (bool, error) {
	logger := logging.Ctx(ctx)

	eligible, err := s.users.CountEligibleUsers(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("count eligible users failed, keeping chat")
		eligible = 1
	}
	if eligible > 0 {
		return false, nil
	}

	removed, err := s.messages.PurgeAll(ctx)
	if err != nil {
		return false, persistence("purge messages", err)
	}

	observability.IncChatPurge()
	s.publish(ctx, models.ChatEvent{Type: models.EventPurge})
	s.emitAudit(ctx, "INFO", "chat purged: no eligible users left", 0)
	logger.Info().Int64("removed", removed).Msg("chat purged")
	return true, nil
}

// Stats reports the log size and the number of eligible users.
func (s *ChatService) Stats(ctx context.Context) (ChatStats, error) {
	messages, err := s.messages.Count(ctx)
	if err != nil {
		return ChatStats{}, persistence("count messages", err)
	}
	eligible, err := s.users.CountEligibleUsers(ctx)
	if err != nil {
		return ChatStats{}, persistence("count eligible users", err)
	}
	return ChatStats{Messages: messages, EligibleUsers: eligible}, nil
}

func (s *ChatService) loadUser(ctx context.Context, userID int64) (models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, persistence("load user", err)
	}
	return user, nil
}

func (s *ChatService) announce(ctx context.Context, msg models.ChatMessage) {
	observability.IncMessage(string(msg.Kind))
	s.publish(ctx, models.ChatEvent{Type: models.EventMessage, Message: &msg})
}

func (s *ChatService) publish(ctx context.Context, event models.ChatEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishChatEvent(ctx, event); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("event", event.Type).Msg("chat event not published")
	}
}

func (s *ChatService) emitAudit(ctx context.Context, level, text string, userID int64) {
	if s.audit == nil {
		return
	}
	var uid *string
	if userID != 0 {
		v := strconv.FormatInt(userID, 10)
		uid = &v
	}
	s.audit.Emit(ctx, level, text, logging.RequestID(ctx), uid)
}
