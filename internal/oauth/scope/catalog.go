// Package scope holds the scope catalog and the matching rules deciding
// whether a requested scope string is satisfied by a scope definition.
package scope

import (
	"github.com/solsticeid/solstice/internal/oauth/config"
	"github.com/solsticeid/solstice/internal/oauth/domain"
)

// Names of the scopes the system contributes on top of the configured set.
const (
	OpenID        = "openid"
	OfflineAccess = "offline_access"
	TokenExchange = "token-exchange"
)

var systemScopes = []domain.ScopeDefinition{
	{Name: OpenID, Description: "Access to user's identity token"},
	{Name: OfflineAccess, Description: "Access to tokens usable without the user's presence"},
	{Name: TokenExchange, Description: "Permission to exchange tokens between clients"},
}

// EffectiveScopes returns every enabled scope: the configured definitions
// plus any system scope not already present by name. The default
// enabled/disabled status of an auto-added system scope is a fixed rule of
// the configuration alone, so repeated calls always produce the same result.
func EffectiveScopes(cfg *config.Config) []domain.ScopeDefinition {
	byName := make(map[string]bool, len(cfg.Scopes))
	all := make([]domain.ScopeDefinition, 0, len(cfg.Scopes)+len(systemScopes))
	for _, def := range cfg.Scopes {
		byName[def.Name] = true
		all = append(all, def)
	}

	for _, sys := range systemScopes {
		if byName[sys.Name] {
			continue
		}
		all = append(all, sys.WithEnabled(defaultEnabled(sys.Name, cfg)))
	}

	enabled := make([]domain.ScopeDefinition, 0, len(all))
	for _, def := range all {
		if def.Enabled {
			enabled = append(enabled, def)
		}
	}
	return enabled
}

// defaultEnabled computes the enabled status of a system scope that was not
// configured explicitly: openid stays off until an administrator opts in,
// offline_access follows the refresh token policy, everything else is on.
func defaultEnabled(name string, cfg *config.Config) bool {
	switch name {
	case OpenID:
		return false
	case OfflineAccess:
		return cfg.RefreshTokenPolicy == config.RefreshOfflineScopeBased
	default:
		return true
	}
}
