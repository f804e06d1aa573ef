// Package session defines the persisted login session model.
package session

import "time"

// Session records an issued login token. Only the SHA-256 hash of the token
// is stored; presenting a token whose hash has no row means the session was
// revoked or never existed.
type Session struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	TokenHash string    `json:"-" db:"token_hash"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
