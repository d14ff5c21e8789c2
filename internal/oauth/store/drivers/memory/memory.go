// Package memory provides an in-process TokenStore, used by tests and by
// single-node deployments with no durability requirement.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/solsticeid/solstice/internal/oauth/store"
)

type Store struct {
	mu     sync.Mutex
	tokens map[string]store.Token
	now    func() time.Time
}

// New returns an empty store. The now function may be overridden via
// WithClock for tests.
func New() *Store {
	return &Store{
		tokens: make(map[string]store.Token),
		now:    time.Now,
	}
}

// WithClock replaces the store's clock and returns the store.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func key(tokenType, value string) string {
	return tokenType + "\x00" + value
}

func (s *Store) Put(_ context.Context, token store.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(token.Type, token.Value)
	if _, ok := s.tokens[k]; ok {
		return store.ErrAlreadyExists
	}
	s.tokens[k] = token
	return nil
}

func (s *Store) Get(_ context.Context, tokenType, value string) (store.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(tokenType, value)
	token, ok := s.tokens[k]
	if !ok {
		return store.Token{}, store.ErrNotFound
	}
	if token.Expired(s.now()) {
		delete(s.tokens, k)
		return store.Token{}, store.ErrNotFound
	}
	return token, nil
}

func (s *Store) Remove(_ context.Context, tokenType, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(tokenType, value)
	if _, ok := s.tokens[k]; !ok {
		return store.ErrNotFound
	}
	delete(s.tokens, k)
	return nil
}

func (s *Store) ListOwned(_ context.Context, tokenType, owner string) ([]store.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var out []store.Token
	for k, token := range s.tokens {
		if !strings.HasPrefix(k, tokenType+"\x00") {
			continue
		}
		if token.Expired(now) {
			delete(s.tokens, k)
			continue
		}
		if token.Owner == owner {
			out = append(out, token)
		}
	}
	return out, nil
}
