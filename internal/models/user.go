package models

import "time"

// User is an account with an optional shared location.
type User struct {
	ID           int64      `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Latitude     *float64   `db:"latitude" json:"latitude"`
	Longitude    *float64   `db:"longitude" json:"longitude"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	IsAdmin      bool       `db:"is_admin" json:"is_admin"`
	IsBanned     bool       `db:"is_banned" json:"is_banned"`
	BanReason    *string    `db:"ban_reason" json:"ban_reason"`
	BannedAt     *time.Time `db:"banned_at" json:"banned_at"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// HasLocation reports whether both coordinates are set.
func (u User) HasLocation() bool {
	return u.Latitude != nil && u.Longitude != nil
}

// Eligible reports whether the user takes part in proximity search and keeps the chat alive.
func (u User) Eligible() bool {
	return u.IsActive && u.HasLocation()
}

// NearbyUser is a proximity search hit. DistanceKm is not rounded.
type NearbyUser struct {
	ID         int64   `db:"id" json:"id"`
	Name       string  `db:"name" json:"name"`
	Email      string  `db:"email" json:"email"`
	Latitude   float64 `db:"latitude" json:"latitude"`
	Longitude  float64 `db:"longitude" json:"longitude"`
	DistanceKm float64 `db:"-" json:"distance_km"`
}
