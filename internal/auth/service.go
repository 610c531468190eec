package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"geochat-service/internal/config"
	"geochat-service/internal/logging"
	"geochat-service/internal/models"
	"geochat-service/internal/repositories"
	"geochat-service/internal/services"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload issued at login.
type Claims struct {
	UserID int64  `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Service registers users, logs them in and validates their tokens.
type Service struct {
	users    repositories.UserRepository
	secret   []byte
	ttl      time.Duration
	issuer   string
	hashCost int
	admins   map[string]bool
	now      func() time.Time
}

type Option func(*Service)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// WithAdminEmails grants moderation rights to accounts registered with one of emails.
func WithAdminEmails(emails []string) Option {
	return func(s *Service) {
		for _, e := range emails {
			if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
				s.admins[e] = true
			}
		}
	}
}

func NewService(users repositories.UserRepository, cfg config.JWTConfig, opts ...Option) *Service {
	s := &Service{
		users:    users,
		secret:   []byte(cfg.Secret),
		ttl:      cfg.TTL,
		issuer:   cfg.Issuer,
		hashCost: bcrypt.DefaultCost,
		admins:   make(map[string]bool),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an active account without a location.
func (s *Service) Register(ctx context.Context, name, email, password string) (models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
		return models.User{}, &services.ValidationError{Field: "name", Message: "must be between 2 and 100 characters"}
	}
	if email == "" || !strings.Contains(email, "@") {
		return models.User{}, &services.ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	if utf8.RuneCountInString(password) < 6 {
		return models.User{}, &services.ValidationError{Field: "password", Message: "must be at least 6 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, name, email, string(hash))
	if err != nil {
		if errors.Is(err, repositories.ErrEmailExists) {
			return models.User{}, services.ErrEmailTaken
		}
		return models.User{}, &services.PersistenceError{Op: "create user", Err: err}
	}
	if s.admins[email] {
		if err := s.users.GrantAdmin(ctx, user.ID); err != nil {
			return models.User{}, &services.PersistenceError{Op: "grant admin", Err: err}
		}
		user.IsAdmin = true
	}
	logging.Ctx(ctx).Info().Int64(logging.FieldUserID, user.ID).Bool("admin", user.IsAdmin).Msg("user registered")
	return user, nil
}

// Login checks the credentials, reactivates an inactive account and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (string, models.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return "", models.User{}, services.ErrInvalidCredentials
		}
		return "", models.User{}, &services.PersistenceError{Op: "load user", Err: err}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", models.User{}, services.ErrInvalidCredentials
	}

	if !user.IsActive {
		if err := s.users.Activate(ctx, user.ID); err != nil {
			return "", models.User{}, &services.PersistenceError{Op: "activate user", Err: err}
		}
		user.IsActive = true
		logging.Ctx(ctx).Info().Int64(logging.FieldUserID, user.ID).Msg("user reactivated on login")
	}

	token, err := s.issue(user)
	if err != nil {
		return "", models.User{}, fmt.Errorf("sign token: %w", err)
	}
	return token, user, nil
}

// ValidateToken returns the user id carried by a valid, unexpired token.
func (s *Service) ValidateToken(tokenString string) (int64, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || claims.UserID == 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}

func (s *Service) issue(user models.User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	return token.SignedString(s.secret)
}
