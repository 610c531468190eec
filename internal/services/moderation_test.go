package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"geochat-service/internal/mocks"
	"geochat-service/internal/models"
	"geochat-service/internal/repositories"
	"geochat-service/internal/services"
)

type liveSessions map[int64]int

func (l liveSessions) DisconnectUser(userID int64) int {
	n := l[userID]
	delete(l, userID)
	return n
}

func TestBanDeactivatesAndPurgesEmptyChat(t *testing.T) {
	store := newMemStore()
	store.addUser(1, "Admin", nil, nil, true)
	store.addUser(2, "Troll", coord(40.4168), coord(-3.7038), true)
	chat := newChat(store)
	sessions := liveSessions{2: 2}
	mod := services.NewModerationService(store, chat, sessions, nil)
	ctx := context.Background()

	_, err := chat.Join(ctx, 2)
	require.NoError(t, err)

	user, err := mod.Ban(ctx, 1, 2, "  ")
	require.NoError(t, err)
	assert.True(t, user.IsBanned)
	assert.False(t, user.IsActive)
	require.NotNil(t, user.BanReason)
	assert.Equal(t, "No reason provided", *user.BanReason)
	assert.NotNil(t, user.BannedAt)
	assert.Empty(t, sessions)

	// the banned user was the last eligible one
	assert.Empty(t, store.kinds())
}

func TestBanKeepsReasonAndChatWithOthersPresent(t *testing.T) {
	store := newMemStore()
	store.addUser(1, "Admin", coord(40.0), coord(-3.0), true)
	store.addUser(2, "Troll", coord(40.0), coord(-3.0), true)
	chat := newChat(store)
	mod := services.NewModerationService(store, chat, nil, nil)
	ctx := context.Background()

	_, err := chat.Join(ctx, 2)
	require.NoError(t, err)

	user, err := mod.Ban(ctx, 1, 2, " spam ")
	require.NoError(t, err)
	assert.Equal(t, "spam", *user.BanReason)
	assert.NotEmpty(t, store.kinds())
}

func TestBanRejectsSelfAndUnknownUser(t *testing.T) {
	store := newMemStore()
	store.addUser(1, "Admin", nil, nil, true)
	mod := services.NewModerationService(store, newChat(store), nil, nil)

	_, err := mod.Ban(context.Background(), 1, 1, "oops")
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = mod.Ban(context.Background(), 1, 42, "who")
	assert.ErrorIs(t, err, services.ErrNotFound)

	_, err = mod.Unban(context.Background(), 1, 42)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestUnbanClearsBan(t *testing.T) {
	store := newMemStore()
	store.addUser(1, "Admin", nil, nil, true)
	store.addUser(2, "Troll", nil, nil, true)
	mod := services.NewModerationService(store, newChat(store), nil, nil)
	ctx := context.Background()

	_, err := mod.Ban(ctx, 1, 2, "spam")
	require.NoError(t, err)

	user, err := mod.Unban(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, user.IsBanned)
	assert.Nil(t, user.BanReason)
	assert.Nil(t, user.BannedAt)
	assert.False(t, user.IsActive)

	status, err := mod.BanStatus(ctx, 2)
	require.NoError(t, err)
	assert.False(t, status.IsBanned)
}

func TestBanEmitsAudit(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	audit := new(mocks.AuditorMock)
	mod := services.NewModerationService(users, nil, nil, audit)

	users.On("Ban", mock.Anything, int64(2), "spam").Return(nil).Once()
	users.On("GetByID", mock.Anything, int64(2)).Return(models.User{ID: 2, IsBanned: true}, nil).Once()
	audit.On("Emit", mock.Anything, "WARN", "user banned: spam", "", mock.MatchedBy(func(uid *string) bool { return uid != nil && *uid == "2" })).Once()

	_, err := mod.Ban(context.Background(), 1, 2, "spam")
	require.NoError(t, err)
	users.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestListUsersStorageFailure(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	mod := services.NewModerationService(users, nil, nil, nil)
	users.On("ListAll", mock.Anything).Return(nil, errStore).Once()

	_, err := mod.ListUsers(context.Background())
	var perr *services.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.NotErrorIs(t, err, repositories.ErrUserNotFound)
}
