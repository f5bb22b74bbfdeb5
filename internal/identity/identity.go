// Package identity stores user accounts in the document store. Accounts
// live at accounts/<id>; email lookup rides a field query over the
// accounts collection.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lorekeeper/api/internal/docstore"
)

const (
	accountsCollection = "accounts"
	resetsCollection   = "resets"
	emailsCollection   = "emails"
)

var (
	ErrNotFound     = errors.New("identity: user not found")
	ErrEmailTaken   = errors.New("identity: email already registered")
	ErrInvalidToken = errors.New("identity: invalid or expired token")
)

type User struct {
	ID                 string    `json:"id"`
	DisplayName        string    `json:"displayName"`
	Email              string    `json:"email"`
	PasswordHash       string    `json:"passwordHash"`
	IsEmailVerified    bool      `json:"isEmailVerified"`
	VerificationToken  string    `json:"verificationToken,omitempty"`
	VerificationExpiry time.Time `json:"verificationExpiry,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

type resetDoc struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `json:"used"`
}

type Directory struct {
	docs docstore.Store
}

func NewDirectory(docs docstore.Store) *Directory {
	return &Directory{docs: docs}
}

func accountPath(id string) string { return accountsCollection + "/" + id }

func resetPath(token string) string { return resetsCollection + "/" + token }

func emailPath(email string) string { return emailsCollection + "/" + email }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser registers an account. The address is claimed first through a
// create-if-absent reservation document, so two concurrent signups with
// the same email cannot both land.
func (d *Directory) CreateUser(ctx context.Context, user User) error {
	user.Email = normalizeEmail(user.Email)
	if _, err := d.docs.Update(ctx, emailPath(user.Email), func(current json.RawMessage) (json.RawMessage, error) {
		if current != nil {
			return nil, ErrEmailTaken
		}
		return json.Marshal(map[string]string{"userId": user.ID})
	}); err != nil {
		return err
	}
	_, err := d.docs.Update(ctx, accountPath(user.ID), func(current json.RawMessage) (json.RawMessage, error) {
		if current != nil {
			return nil, fmt.Errorf("identity: user %s already exists", user.ID)
		}
		return json.Marshal(user)
	})
	return err
}

func (d *Directory) GetUserByID(ctx context.Context, id string) (User, error) {
	doc, err := d.docs.Get(ctx, accountPath(id))
	if errors.Is(err, docstore.ErrNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return decodeUser(doc.Data)
}

func (d *Directory) GetUserByEmail(ctx context.Context, email string) (User, error) {
	docs, err := d.docs.Query(ctx, accountsCollection, docstore.Filter{
		Field: "email", Op: docstore.OpEqual, Value: normalizeEmail(email),
	})
	if err != nil {
		return User{}, err
	}
	if len(docs) == 0 {
		return User{}, ErrNotFound
	}
	return decodeUser(docs[0].Data)
}

func (d *Directory) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	return d.mutate(ctx, userID, func(u *User) error {
		u.VerificationToken = token
		u.VerificationExpiry = expiresAt
		return nil
	})
}

// VerifyUserEmail consumes a verification token. Tokens are single-use
// and expire.
func (d *Directory) VerifyUserEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	docs, err := d.docs.Query(ctx, accountsCollection, docstore.Filter{
		Field: "verificationToken", Op: docstore.OpEqual, Value: token,
	})
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return ErrInvalidToken
	}
	user, err := decodeUser(docs[0].Data)
	if err != nil {
		return err
	}
	if d.docs.Now(ctx).After(user.VerificationExpiry) {
		return ErrInvalidToken
	}
	return d.mutate(ctx, user.ID, func(u *User) error {
		if u.VerificationToken != token {
			return ErrInvalidToken
		}
		u.IsEmailVerified = true
		u.VerificationToken = ""
		u.VerificationExpiry = time.Time{}
		return nil
	})
}

func (d *Directory) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	return d.mutate(ctx, userID, func(u *User) error {
		u.PasswordHash = passwordHash
		return nil
	})
}

func (d *Directory) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := d.docs.Update(ctx, resetPath(token), func(json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(resetDoc{UserID: userID, Token: token, ExpiresAt: expiresAt})
	})
	return err
}

func (d *Directory) GetPasswordReset(ctx context.Context, token string) (string, error) {
	doc, err := d.docs.Get(ctx, resetPath(token))
	if errors.Is(err, docstore.ErrNotFound) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", err
	}
	var reset resetDoc
	if err := json.Unmarshal(doc.Data, &reset); err != nil {
		return "", err
	}
	if reset.Used || d.docs.Now(ctx).After(reset.ExpiresAt) {
		return "", ErrInvalidToken
	}
	return reset.UserID, nil
}

func (d *Directory) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := d.docs.Update(ctx, resetPath(token), func(current json.RawMessage) (json.RawMessage, error) {
		if current == nil {
			return nil, ErrInvalidToken
		}
		var reset resetDoc
		if err := json.Unmarshal(current, &reset); err != nil {
			return nil, err
		}
		reset.Used = true
		return json.Marshal(reset)
	})
	return err
}

func (d *Directory) mutate(ctx context.Context, userID string, fn func(*User) error) error {
	_, err := d.docs.Update(ctx, accountPath(userID), func(current json.RawMessage) (json.RawMessage, error) {
		if current == nil {
			return nil, ErrNotFound
		}
		user, err := decodeUser(current)
		if err != nil {
			return nil, err
		}
		if err := fn(&user); err != nil {
			return nil, err
		}
		return json.Marshal(user)
	})
	return err
}

func decodeUser(data json.RawMessage) (User, error) {
	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	return user, nil
}
