package scope

import (
	"context"
	"regexp"

	"github.com/solsticeid/solstice/internal/oauth/domain"
	"github.com/solsticeid/solstice/pkg/rex"
	"github.com/solsticeid/solstice/pkg/slogx"
)

// Match decides whether the requested scope string is satisfied by the
// definition.
//
// Non-pattern definitions match by exact string equality. Pattern
// definitions match the requested string as a full-string regular
// expression. When the requester itself supplies a pattern
// (wildcardRequest), the definition matches only if everything the requested
// pattern could match is already covered by the definition's pattern: the
// requested language must be a subset of the definition's language. The
// asymmetry is deliberate; a client may narrow a server wildcard but never
// widen it.
//
// Malformed patterns are logged and treated as non-matching.
func Match(ctx context.Context, def domain.ScopeDefinition, requested string, wildcardRequest bool) bool {
	if !def.Pattern {
		return def.Name == requested
	}

	log := slogx.FromContext(ctx)

	if wildcardRequest {
		contained, err := rex.Subset(requested, def.Name)
		if err != nil {
			log.Warn("scope pattern containment check failed, treating as non-matching",
				"definition", def.Name, "requested", requested, "error", err)
			return false
		}
		return contained
	}

	re, err := regexp.Compile(`\A(?:` + def.Name + `)\z`)
	if err != nil {
		log.Warn("malformed scope pattern in definition, treating as non-matching",
			"definition", def.Name, "error", err)
		return false
	}
	return re.MatchString(requested)
}

// IsSubsetOfPattern reports whether requested, itself treated as a pattern,
// is entirely covered by the given pattern scope. Used when re-validating
// scopes of a previously issued token against pattern grants.
func IsSubsetOfPattern(ctx context.Context, requested, pattern string) bool {
	contained, err := rex.Subset(requested, pattern)
	if err != nil {
		slogx.FromContext(ctx).Warn("scope pattern containment check failed",
			"pattern", pattern, "requested", requested, "error", err)
		return false
	}
	return contained
}
