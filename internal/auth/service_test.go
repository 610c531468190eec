package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"geochat-service/internal/config"
	"geochat-service/internal/mocks"
	"geochat-service/internal/models"
	"geochat-service/internal/repositories"
	"geochat-service/internal/services"
)

var jwtCfg = config.JWTConfig{Secret: "test-secret", TTL: time.Hour, Issuer: "geochat"}

func newTestService(users *mocks.UserRepositoryMock) *Service {
	return NewService(users, jwtCfg, WithHashCost(bcrypt.MinCost))
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestRegisterHashesPassword(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	svc := newTestService(users)

	var stored string
	users.On("Create", mock.Anything, "Ana", "ana@example.com", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { stored = args.String(3) }).
		Return(models.User{ID: 1, Name: "Ana", Email: "ana@example.com"}, nil).Once()

	user, err := svc.Register(context.Background(), " Ana ", "ANA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored), []byte("secret1")))
	users.AssertExpectations(t)
}

func TestRegisterGrantsConfiguredAdmins(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	svc := NewService(users, jwtCfg, WithHashCost(bcrypt.MinCost), WithAdminEmails([]string{" Root@Example.com "}))

	users.On("Create", mock.Anything, "Root", "root@example.com", mock.Anything).
		Return(models.User{ID: 3, Name: "Root", Email: "root@example.com"}, nil).Once()
	users.On("GrantAdmin", mock.Anything, int64(3)).Return(nil).Once()
	users.On("Create", mock.Anything, "Ana", "ana@example.com", mock.Anything).
		Return(models.User{ID: 4, Name: "Ana", Email: "ana@example.com"}, nil).Once()

	admin, err := svc.Register(context.Background(), "Root", "ROOT@example.com", "secret1")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)

	regular, err := svc.Register(context.Background(), "Ana", "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.False(t, regular.IsAdmin)
	users.AssertExpectations(t)
}

func TestRegisterEmailTaken(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	svc := newTestService(users)
	users.On("Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, repositories.ErrEmailExists).Once()

	_, err := svc.Register(context.Background(), "Ana", "ana@example.com", "secret1")
	assert.ErrorIs(t, err, services.ErrEmailTaken)
}

func TestLoginReactivatesInactiveUser(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	svc := newTestService(users)

	users.On("GetByEmail", mock.Anything, "ana@example.com").
		Return(models.User{ID: 3, Email: "ana@example.com", PasswordHash: hashed(t, "secret1"), IsActive: false}, nil).Once()
	users.On("Activate", mock.Anything, int64(3)).Return(nil).Once()

	token, user, err := svc.Login(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.True(t, user.IsActive)

	id, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	users.AssertExpectations(t)
}

func TestLoginWrongPasswordDoesNotReactivate(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	svc := newTestService(users)

	users.On("GetByEmail", mock.Anything, "ana@example.com").
		Return(models.User{ID: 3, PasswordHash: hashed(t, "secret1")}, nil).Once()

	_, _, err := svc.Login(context.Background(), "ana@example.com", "wrong")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	users.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything)
}

func TestValidateTokenRejectsExpiredAndForeign(t *testing.T) {
	svc := newTestService(new(mocks.UserRepositoryMock))
	past := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return past }
	expired, err := svc.issue(models.User{ID: 5})
	require.NoError(t, err)
	svc.now = time.Now

	_, err = svc.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewService(nil, config.JWTConfig{Secret: "other", TTL: time.Hour})
	foreign, err := other.issue(models.User{ID: 5})
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 5})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
