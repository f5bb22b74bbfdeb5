package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lorekeeper/api/internal/docstore"
)

// DocStore keeps refresh sessions in the document store, for deployments
// running without Redis. Expiry is enforced on read.
type DocStore struct {
	docs docstore.Store
}

func NewDocStore(docs docstore.Store) *DocStore {
	return &DocStore{docs: docs}
}

func sessionPath(tokenHash string) string { return "sessions/" + tokenHash }

func (s *DocStore) SaveRefreshSession(ctx context.Context, tokenHash, userID, displayName string, expiresAt time.Time) error {
	data := TokenData{
		UserID:      userID,
		DisplayName: displayName,
		CreatedAt:   s.docs.Now(ctx),
		ExpiresAt:   expiresAt,
	}
	_, err := s.docs.Update(ctx, sessionPath(tokenHash), func(json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(data)
	})
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

func (s *DocStore) LookupRefreshSession(ctx context.Context, tokenHash string) (TokenData, error) {
	doc, err := s.docs.Get(ctx, sessionPath(tokenHash))
	if errors.Is(err, docstore.ErrNotFound) {
		return TokenData{}, ErrNotFound
	}
	if err != nil {
		return TokenData{}, fmt.Errorf("lookup refresh token: %w", err)
	}

	var data TokenData
	if err := json.Unmarshal(doc.Data, &data); err != nil {
		return TokenData{}, fmt.Errorf("unmarshal token data: %w", err)
	}
	if s.docs.Now(ctx).After(data.ExpiresAt) {
		_ = s.docs.Delete(ctx, sessionPath(tokenHash))
		return TokenData{}, ErrNotFound
	}
	return data, nil
}

func (s *DocStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	err := s.docs.Delete(ctx, sessionPath(tokenHash))
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *DocStore) Ping(ctx context.Context) error { return s.docs.Ping(ctx) }

// Close is a no-op; the document store is owned by the caller.
func (s *DocStore) Close() error { return nil }
