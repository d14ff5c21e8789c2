package scope

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solsticeid/solstice/internal/oauth/domain"
)

func TestMatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	literal := domain.ScopeDefinition{Name: "profile"}
	pattern := domain.ScopeDefinition{Name: `tasks\..*`, Pattern: true}
	broken := domain.ScopeDefinition{Name: `tasks\.(`, Pattern: true}

	t.Run("literal matches by equality", func(t *testing.T) {
		require.True(t, Match(ctx, literal, "profile", false))
		require.False(t, Match(ctx, literal, "profile.read", false))
	})

	t.Run("pattern matches the full string", func(t *testing.T) {
		require.True(t, Match(ctx, pattern, "tasks.read", false))
		require.False(t, Match(ctx, pattern, "admin.tasks.read", false))
		require.False(t, Match(ctx, pattern, "tasks", false))
	})

	t.Run("wildcard request needs containment", func(t *testing.T) {
		require.True(t, Match(ctx, pattern, `tasks\.r.*`, true))
		require.False(t, Match(ctx, pattern, `.*`, true))
	})

	t.Run("malformed pattern fails closed", func(t *testing.T) {
		require.False(t, Match(ctx, broken, "tasks.read", false))
		require.False(t, Match(ctx, broken, `tasks\..*`, true))
	})
}

func TestIsSubsetOfPattern(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	require.True(t, IsSubsetOfPattern(ctx, `tasks\.read`, `tasks\..*`))
	require.False(t, IsSubsetOfPattern(ctx, `admin\..*`, `tasks\..*`))
	require.False(t, IsSubsetOfPattern(ctx, `tasks\.read`, `tasks\.(`))
}
