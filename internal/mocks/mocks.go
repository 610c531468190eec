package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"geochat-service/internal/models"
	"geochat-service/internal/repositories"
	"geochat-service/internal/services"
)

// UserRepositoryMock is a testify mock of repositories.UserRepository.
type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Create(ctx context.Context, name, email, passwordHash string) (models.User, error) {
	args := m.Called(ctx, name, email, passwordHash)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetByID(ctx context.Context, id int64) (models.User, error) {
	args := m.Called(ctx, id)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) UpdateLocation(ctx context.Context, id int64, latitude, longitude float64) error {
	args := m.Called(ctx, id, latitude, longitude)
	return args.Error(0)
}

func (m *UserRepositoryMock) Activate(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *UserRepositoryMock) Deactivate(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *UserRepositoryMock) ListEligibleExcept(ctx context.Context, id int64) ([]models.NearbyUser, error) {
	args := m.Called(ctx, id)
	var users []models.NearbyUser
	if val := args.Get(0); val != nil {
		users = val.([]models.NearbyUser)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) CountEligibleUsers(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *UserRepositoryMock) ListAll(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) Ban(ctx context.Context, id int64, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *UserRepositoryMock) Unban(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *UserRepositoryMock) GrantAdmin(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MessageRepositoryMock is a testify mock of repositories.MessageRepository.
type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, msg models.NewMessage) (models.ChatMessage, error) {
	args := m.Called(ctx, msg)
	var out models.ChatMessage
	if val := args.Get(0); val != nil {
		out = val.(models.ChatMessage)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) AllOrdered(ctx context.Context) ([]models.ChatMessage, error) {
	args := m.Called(ctx)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Since(ctx context.Context, since time.Time) ([]models.ChatMessage, error) {
	args := m.Called(ctx, since)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) PurgeAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) LatestJoin(ctx context.Context, userID int64) (models.ChatMessage, error) {
	args := m.Called(ctx, userID)
	var msg models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChatMessage)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ReplaceJoin(ctx context.Context, userID int64, preceding []models.NewMessage, marker models.NewMessage) ([]models.ChatMessage, error) {
	args := m.Called(ctx, userID, preceding, marker)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

type EventPublisherMock struct {
	mock.Mock
}

func (m *EventPublisherMock) PublishChatEvent(ctx context.Context, event models.ChatEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type AuditorMock struct {
	mock.Mock
}

func (m *AuditorMock) Emit(ctx context.Context, level, text, requestID string, userID *string) {
	m.Called(ctx, level, text, requestID, userID)
}

var (
	_ repositories.UserRepository    = (*UserRepositoryMock)(nil)
	_ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
	_ services.EventPublisher        = (*EventPublisherMock)(nil)
	_ services.Auditor               = (*AuditorMock)(nil)
)
