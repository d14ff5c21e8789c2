package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solsticeid/solstice/internal/oauth/store"
)

func TestStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	newToken := func(value, owner string, expiresAt time.Time) store.Token {
		return store.Token{
			Type:      store.TypeAccess,
			Value:     value,
			Owner:     owner,
			Payload:   []byte(`{"subject":"` + owner + `"}`),
			IssuedAt:  time.Now(),
			ExpiresAt: expiresAt,
		}
	}

	t.Run("put then get", func(t *testing.T) {
		s := New()
		want := newToken("tok-1", "alice", time.Now().Add(time.Hour))
		require.NoError(t, s.Put(ctx, want))

		got, err := s.Get(ctx, store.TypeAccess, "tok-1")
		require.NoError(t, err)
		require.Equal(t, want, got)
	})

	t.Run("duplicate put fails", func(t *testing.T) {
		s := New()
		tok := newToken("tok-1", "alice", time.Now().Add(time.Hour))
		require.NoError(t, s.Put(ctx, tok))
		require.ErrorIs(t, s.Put(ctx, tok), store.ErrAlreadyExists)
	})

	t.Run("types do not collide", func(t *testing.T) {
		s := New()
		tok := newToken("same-value", "alice", time.Now().Add(time.Hour))
		require.NoError(t, s.Put(ctx, tok))

		tok.Type = store.TypeRefresh
		require.NoError(t, s.Put(ctx, tok))

		_, err := s.Get(ctx, store.TypeCode, "same-value")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("expired tokens read as missing", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
		s := New().WithClock(func() time.Time { return now })

		require.NoError(t, s.Put(ctx, newToken("tok-1", "alice", now.Add(time.Minute))))

		now = now.Add(2 * time.Minute)
		_, err := s.Get(ctx, store.TypeAccess, "tok-1")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("remove", func(t *testing.T) {
		s := New()
		require.NoError(t, s.Put(ctx, newToken("tok-1", "alice", time.Now().Add(time.Hour))))
		require.NoError(t, s.Remove(ctx, store.TypeAccess, "tok-1"))
		require.ErrorIs(t, s.Remove(ctx, store.TypeAccess, "tok-1"), store.ErrNotFound)
	})

	t.Run("list owned", func(t *testing.T) {
		s := New()
		require.NoError(t, s.Put(ctx, newToken("tok-1", "alice", time.Now().Add(time.Hour))))
		require.NoError(t, s.Put(ctx, newToken("tok-2", "alice", time.Now().Add(time.Hour))))
		require.NoError(t, s.Put(ctx, newToken("tok-3", "bob", time.Now().Add(time.Hour))))

		owned, err := s.ListOwned(ctx, store.TypeAccess, "alice")
		require.NoError(t, err)
		require.Len(t, owned, 2)
	})

	t.Run("zero expiry never expires", func(t *testing.T) {
		s := New()
		require.NoError(t, s.Put(ctx, newToken("tok-1", "alice", time.Time{})))
		_, err := s.Get(ctx, store.TypeAccess, "tok-1")
		require.NoError(t, err)
	})
}
