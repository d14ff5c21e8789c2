// Package store defines the persistence contract for issued OAuth tokens.
// Drivers live under drivers/ and are selected at startup.
package store

import (
	"context"
	"errors"
	"time"
)

// Token type discriminators. Values are part of the stored format and must
// not change.
const (
	TypeCode    = "oauth2Code"
	TypeAccess  = "oauth2Access"
	TypeRefresh = "oauth2Refresh"
)

var (
	ErrNotFound      = errors.New("store: token not found")
	ErrAlreadyExists = errors.New("store: token already exists")
)

// Token is one stored token row. Value is the opaque wire string handed to
// the client; Payload is the serialized internal token record.
type Token struct {
	Type      string
	Value     string
	Owner     string
	Payload   []byte
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token's lifetime has passed. A zero ExpiresAt
// means the token never expires.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// TokenStore persists issued tokens keyed by (type, value). Implementations
// must be safe for concurrent use.
type TokenStore interface {
	// Put stores a token. A token with the same type and value must not
	// already exist.
	Put(ctx context.Context, token Token) error

	// Get returns the token with the given type and value. Expired tokens
	// are reported as ErrNotFound.
	Get(ctx context.Context, tokenType, value string) (Token, error)

	// Remove deletes a token. Removing a missing token returns ErrNotFound.
	Remove(ctx context.Context, tokenType, value string) error

	// ListOwned returns all live tokens of the given type belonging to an
	// owner.
	ListOwned(ctx context.Context, tokenType, owner string) ([]Token, error)
}
