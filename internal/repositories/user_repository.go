package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"geochat-service/internal/models"
)

// UserRepository is the location store plus the account lookups the core needs.
type UserRepository interface {
	Create(ctx context.Context, name, email, passwordHash string) (models.User, error)
	GetByID(ctx context.Context, id int64) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	UpdateLocation(ctx context.Context, id int64, latitude, longitude float64) error
	Activate(ctx context.Context, id int64) error
	Deactivate(ctx context.Context, id int64) error
	ListEligibleExcept(ctx context.Context, id int64) ([]models.NearbyUser, error)
	CountEligibleUsers(ctx context.Context) (int, error)
	ListAll(ctx context.Context) ([]models.User, error)
	Ban(ctx context.Context, id int64, reason string) error
	Unban(ctx context.Context, id int64) error
	GrantAdmin(ctx context.Context, id int64) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, name, email, password_hash, latitude, longitude, is_active, is_admin, is_banned, ban_reason, banned_at, created_at, updated_at`

// Create inserts an active user without a location.
func (r *UserRepo) Create(ctx context.Context, name, email, passwordHash string) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `INSERT INTO users (name, email, password_hash) VALUES ($1, $2, $3) RETURNING `+userColumns,
		name, email, passwordHash)
	if isUniqueViolation(err) {
		return models.User{}, ErrEmailExists
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return u, err
}

// GetByEmail fetches a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return u, err
}

// UpdateLocation stores both coordinates.
func (r *UserRepo) UpdateLocation(ctx context.Context, id int64, latitude, longitude float64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET latitude=$2, longitude=$3, updated_at=NOW() WHERE id=$1`, id, latitude, longitude)
	return affectedOne(res, err, ErrUserNotFound)
}

// Activate marks the user active again. The location stays cleared until the next update.
func (r *UserRepo) Activate(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_active=TRUE, updated_at=NOW() WHERE id=$1`, id)
	return affectedOne(res, err, ErrUserNotFound)
}

// Deactivate marks the user inactive and forgets the location.
func (r *UserRepo) Deactivate(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_active=FALSE, latitude=NULL, longitude=NULL, updated_at=NOW() WHERE id=$1`, id)
	return affectedOne(res, err, ErrUserNotFound)
}

// ListEligibleExcept returns every active located user other than id, ordered by id.
func (r *UserRepo) ListEligibleExcept(ctx context.Context, id int64) ([]models.NearbyUser, error) {
	query := `SELECT id, name, email, latitude, longitude
        FROM users
        WHERE is_active = TRUE
        AND latitude IS NOT NULL
        AND longitude IS NOT NULL
        AND id <> $1
        ORDER BY id ASC`
	var users []models.NearbyUser
	err := r.db.SelectContext(ctx, &users, query, id)
	return users, err
}

// CountEligibleUsers counts active users with both coordinates set.
func (r *UserRepo) CountEligibleUsers(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE is_active = TRUE AND latitude IS NOT NULL AND longitude IS NOT NULL`)
	return count, err
}

// ListAll returns every account ordered by id.
func (r *UserRepo) ListAll(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	return users, err
}

// Ban flags the user as banned and deactivates it. The location is kept.
func (r *UserRepo) Ban(ctx context.Context, id int64, reason string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users
        SET is_banned=TRUE, ban_reason=$2, banned_at=NOW(), is_active=FALSE, updated_at=NOW()
        WHERE id=$1`, id, reason)
	return affectedOne(res, err, ErrUserNotFound)
}

// Unban lifts a ban. The user stays inactive until the next login.
func (r *UserRepo) Unban(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users
        SET is_banned=FALSE, ban_reason=NULL, banned_at=NULL, updated_at=NOW()
        WHERE id=$1`, id)
	return affectedOne(res, err, ErrUserNotFound)
}

// GrantAdmin gives the user access to the moderation endpoints.
func (r *UserRepo) GrantAdmin(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_admin=TRUE, updated_at=NOW() WHERE id=$1`, id)
	return affectedOne(res, err, ErrUserNotFound)
}

func affectedOne(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}
