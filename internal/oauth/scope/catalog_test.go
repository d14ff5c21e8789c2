package scope

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solsticeid/solstice/internal/oauth/config"
	"github.com/solsticeid/solstice/internal/oauth/domain"
)

func names(defs []domain.ScopeDefinition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Name)
	}
	return out
}

func TestEffectiveScopes(t *testing.T) {
	t.Parallel()

	t.Run("auto-added openid stays disabled", func(t *testing.T) {
		cfg := &config.Config{RefreshTokenPolicy: config.RefreshOfflineScopeBased}
		got := names(EffectiveScopes(cfg))
		require.NotContains(t, got, OpenID)
		require.Contains(t, got, OfflineAccess)
		require.Contains(t, got, TokenExchange)
	})

	t.Run("offline_access follows the refresh policy", func(t *testing.T) {
		cfg := &config.Config{RefreshTokenPolicy: config.RefreshAlways}
		require.NotContains(t, names(EffectiveScopes(cfg)), OfflineAccess)

		cfg.RefreshTokenPolicy = config.RefreshNever
		require.NotContains(t, names(EffectiveScopes(cfg)), OfflineAccess)

		cfg.RefreshTokenPolicy = config.RefreshOfflineScopeBased
		require.Contains(t, names(EffectiveScopes(cfg)), OfflineAccess)
	})

	t.Run("explicit definition overrides the default", func(t *testing.T) {
		cfg := &config.Config{
			Scopes: []domain.ScopeDefinition{
				{Name: OpenID, Enabled: true},
				{Name: TokenExchange, Enabled: false},
			},
		}
		got := names(EffectiveScopes(cfg))
		require.Contains(t, got, OpenID)
		require.NotContains(t, got, TokenExchange)
	})

	t.Run("disabled configured scopes are filtered out", func(t *testing.T) {
		cfg := &config.Config{
			Scopes: []domain.ScopeDefinition{
				{Name: "profile", Enabled: true},
				{Name: "legacy", Enabled: false},
			},
		}
		got := names(EffectiveScopes(cfg))
		require.Contains(t, got, "profile")
		require.NotContains(t, got, "legacy")
	})

	t.Run("repeated calls agree", func(t *testing.T) {
		cfg := &config.Config{RefreshTokenPolicy: config.RefreshOfflineScopeBased}
		require.Equal(t, EffectiveScopes(cfg), EffectiveScopes(cfg))
	})
}
