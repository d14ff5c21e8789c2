// Package sqlite provides the durable TokenStore backed by a local SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/solsticeid/solstice/internal/oauth/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	dsn string
	now func() time.Time
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite database: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}

	return &Store{db: db, dsn: dsn, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithClock replaces the store's clock and returns the store.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Put(ctx context.Context, token store.Token) error {
	var expiresAt sql.NullInt64
	if !token.ExpiresAt.IsZero() {
		expiresAt = sql.NullInt64{Int64: token.ExpiresAt.UnixMilli(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (type, value, owner, payload, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		token.Type, token.Value, token.Owner, token.Payload,
		token.IssuedAt.UnixMilli(), expiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("store: insert token: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, tokenType, value string) (store.Token, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT type, value, owner, payload, issued_at, expires_at
		FROM oauth_tokens
		WHERE type = ? AND value = ?`,
		tokenType, value,
	)

	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Token{}, store.ErrNotFound
		}
		return store.Token{}, fmt.Errorf("store: select token: %w", err)
	}

	if token.Expired(s.now()) {
		_ = s.Remove(ctx, tokenType, value)
		return store.Token{}, store.ErrNotFound
	}
	return token, nil
}

func (s *Store) Remove(ctx context.Context, tokenType, value string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM oauth_tokens WHERE type = ? AND value = ?`,
		tokenType, value,
	)
	if err != nil {
		return fmt.Errorf("store: delete token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete token: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListOwned(ctx context.Context, tokenType, owner string) ([]store.Token, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, value, owner, payload, issued_at, expires_at
		FROM oauth_tokens
		WHERE type = ? AND owner = ?
		ORDER BY issued_at`,
		tokenType, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list tokens: %w", err)
	}
	defer rows.Close()

	now := s.now()
	var out []store.Token
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list tokens: %w", err)
		}
		if token.Expired(now) {
			continue
		}
		out = append(out, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list tokens: %w", err)
	}
	return out, nil
}

// PurgeExpired removes every token past its expiry. Intended to run on a
// periodic maintenance tick.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM oauth_tokens WHERE expires_at IS NOT NULL AND expires_at < ?`,
		s.now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: purge expired tokens: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: purge expired tokens: %w", err)
	}
	return affected, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanToken(row scannable) (store.Token, error) {
	var (
		token     store.Token
		issuedAt  int64
		expiresAt sql.NullInt64
	)
	if err := row.Scan(&token.Type, &token.Value, &token.Owner, &token.Payload, &issuedAt, &expiresAt); err != nil {
		return store.Token{}, err
	}
	token.IssuedAt = time.UnixMilli(issuedAt)
	if expiresAt.Valid {
		token.ExpiresAt = time.UnixMilli(expiresAt.Int64)
	}
	return token, nil
}

// isUniqueViolation detects SQLite's primary key conflict without
// depending on the driver's error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
