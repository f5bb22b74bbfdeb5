// Package session provides session storage backends for refresh tokens.
package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session: token not found or expired")

// TokenData holds the data stored for each refresh token
type TokenData struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Store is implemented by the Redis store and the document-store
// fallback.
type Store interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID, displayName string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (TokenData, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	Ping(ctx context.Context) error
	Close() error
}
