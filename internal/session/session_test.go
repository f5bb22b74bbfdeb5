package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"lorekeeper/api/internal/docstore"
)

// Both backends run the same suite.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	s := miniredis.RunT(t)
	redisStore, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = redisStore.Close() })
	return map[string]Store{
		"redis": redisStore,
		"doc":   NewDocStore(docstore.NewMemory()),
	}
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			expiresAt := time.Now().Add(24 * time.Hour)

			if err := store.SaveRefreshSession(ctx, "test-token-hash", "user-123", "Avery", expiresAt); err != nil {
				t.Fatalf("SaveRefreshSession failed: %v", err)
			}

			data, err := store.LookupRefreshSession(ctx, "test-token-hash")
			if err != nil {
				t.Fatalf("LookupRefreshSession failed: %v", err)
			}
			if data.UserID != "user-123" || data.DisplayName != "Avery" {
				t.Errorf("unexpected token data: %+v", data)
			}
		})
	}
}

func TestLookupNonExistentSession(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.LookupRefreshSession(context.Background(), "non-existent-token"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			expiresAt := time.Now().Add(24 * time.Hour)

			if err := store.SaveRefreshSession(ctx, "token-to-revoke", "user-789", "Theo", expiresAt); err != nil {
				t.Fatalf("SaveRefreshSession failed: %v", err)
			}
			if _, err := store.LookupRefreshSession(ctx, "token-to-revoke"); err != nil {
				t.Fatalf("Lookup before revoke failed: %v", err)
			}
			if err := store.RevokeRefreshSession(ctx, "token-to-revoke"); err != nil {
				t.Fatalf("RevokeRefreshSession failed: %v", err)
			}
			if _, err := store.LookupRefreshSession(ctx, "token-to-revoke"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound after revoke, got %v", err)
			}

			// Revoking again should not error.
			if err := store.RevokeRefreshSession(ctx, "token-to-revoke"); err != nil {
				t.Errorf("second revoke failed: %v", err)
			}
		})
	}
}

func TestSessionIsolation(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			expiresAt := time.Now().Add(24 * time.Hour)

			if err := store.SaveRefreshSession(ctx, "token-1", "user-1", "One", expiresAt); err != nil {
				t.Fatalf("SaveRefreshSession 1 failed: %v", err)
			}
			if err := store.SaveRefreshSession(ctx, "token-2", "user-2", "Two", expiresAt); err != nil {
				t.Fatalf("SaveRefreshSession 2 failed: %v", err)
			}

			if err := store.RevokeRefreshSession(ctx, "token-1"); err != nil {
				t.Fatalf("Revoke token-1 failed: %v", err)
			}
			if _, err := store.LookupRefreshSession(ctx, "token-1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound for revoked token-1, got %v", err)
			}
			data, err := store.LookupRefreshSession(ctx, "token-2")
			if err != nil {
				t.Fatalf("Lookup token-2 after revoke failed: %v", err)
			}
			if data.UserID != "user-2" {
				t.Errorf("expected user-2 after revoke, got %s", data.UserID)
			}
		})
	}
}

func TestRedisLookupExpiredSession(t *testing.T) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.SaveRefreshSession(ctx, "expired-token", "user-456", "Anya", time.Now().Add(time.Millisecond)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	s.FastForward(2 * time.Millisecond)

	if _, err := store.LookupRefreshSession(ctx, "expired-token"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired token, got %v", err)
	}
}

func TestDocStoreLookupExpiredSession(t *testing.T) {
	store := NewDocStore(docstore.NewMemory())
	ctx := context.Background()

	if err := store.SaveRefreshSession(ctx, "expired-token", "user-456", "Anya", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	if _, err := store.LookupRefreshSession(ctx, "expired-token"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired token, got %v", err)
	}
}
