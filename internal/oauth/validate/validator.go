// Package validate cross-checks an authorization request against the
// client's resolved attributes and the server configuration, producing the
// validated authorization context the response builder works from.
package validate

import (
	"context"

	"github.com/solsticeid/solstice/internal/oauth/config"
	"github.com/solsticeid/solstice/internal/oauth/domain"
	"github.com/solsticeid/solstice/internal/oauth/scope"
	"github.com/solsticeid/solstice/pkg/slogx"
)

// Validator implements the request validation rules. It is stateless and
// safe for concurrent use.
type Validator struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateGroupMembership fails unless the client is a member of the
// configured OAuth clients group.
func (v *Validator) ValidateGroupMembership(client domain.ClientRecord) error {
	if !client.MemberOf(v.cfg.ClientsGroup) {
		return domain.Validationf("the client %q is not a member of the clients group %q",
			client.Username, v.cfg.ClientsGroup)
	}
	return nil
}

// AllowedFlows reads the client's allowed grant flows attribute. When the
// attribute is absent the client may use exactly the authorization code
// flow; the fail-safe default is never a more permissive set.
func (v *Validator) AllowedFlows(attrs map[string]domain.Attribute) map[domain.GrantFlow]bool {
	allowed := make(map[domain.GrantFlow]bool)

	attr, ok := attrs[domain.AttrAllowedGrantFlows]
	if !ok {
		allowed[domain.FlowAuthorizationCode] = true
		return allowed
	}

	for _, value := range attr.Values {
		flow, err := domain.ParseGrantFlow(value)
		if err != nil {
			continue
		}
		allowed[flow] = true
	}
	return allowed
}

// AllowedScopes reads the client's optional scope allow-list. The second
// return distinguishes "unset" (no restriction) from an empty list (nothing
// is allowed).
func (v *Validator) AllowedScopes(attrs map[string]domain.Attribute) ([]string, bool) {
	attr, ok := attrs[domain.AttrAllowedScopes]
	if !ok {
		return nil, false
	}
	return attr.Values, true
}

// DroppedScope names a requested scope the server quietly declined, with the
// reason. Dropping is expected, normal behaviour for over-requesting
// clients, so it travels in the result rather than as an error.
type DroppedScope struct {
	Scope  string
	Reason string
}

// ValidRequestedScopes pairs each surviving requested scope with its
// matching catalog definition, in request order, and reports the dropped
// rest. A scope is dropped when the client's allow-list excludes it or no
// enabled definition matches it. Literal duplicates collapse to one entry.
func (v *Validator) ValidRequestedScopes(
	ctx context.Context,
	clientAttrs map[string]domain.Attribute,
	requestedScopes []string,
) ([]domain.RequestedScope, []DroppedScope) {
	log := slogx.FromContext(ctx)

	definitions := scope.EffectiveScopes(v.cfg)
	allowList, restricted := v.AllowedScopes(clientAttrs)

	allowed := func(s string) bool {
		if !restricted {
			return true
		}
		for _, a := range allowList {
			if a == s {
				return true
			}
		}
		return false
	}

	var granted []domain.RequestedScope
	var dropped []DroppedScope
	seen := make(map[string]bool)

	for _, requested := range requestedScopes {
		if seen[requested] {
			continue
		}
		seen[requested] = true

		if !allowed(requested) {
			log.Info("dropping scope outside the client's allow-list", "scope", requested)
			dropped = append(dropped, DroppedScope{Scope: requested, Reason: "not in the client's allowed scopes"})
			continue
		}

		match, wildcard, ok := matchDefinition(ctx, definitions, requested)
		if !ok {
			log.Info("dropping scope with no matching definition", "scope", requested)
			dropped = append(dropped, DroppedScope{Scope: requested, Reason: "no enabled scope definition matches"})
			continue
		}

		granted = append(granted, domain.RequestedScope{
			Scope:      requested,
			Definition: match,
			Wildcard:   wildcard,
		})
	}

	return granted, dropped
}

// matchDefinition finds the definition satisfying the requested scope.
// Plain matching is tried first; when nothing matches and the requested
// string is itself a pattern, pattern definitions are retried with subset
// containment semantics.
func matchDefinition(
	ctx context.Context,
	definitions []domain.ScopeDefinition,
	requested string,
) (domain.ScopeDefinition, bool, bool) {
	for _, def := range definitions {
		if scope.Match(ctx, def, requested, false) {
			return def, false, true
		}
	}

	if isPatternScope(requested) {
		for _, def := range definitions {
			if def.Pattern && scope.Match(ctx, def, requested, true) {
				return def, true, true
			}
		}
	}

	return domain.ScopeDefinition{}, false, false
}

// isPatternScope reports whether a requested scope string is a wildcard
// request rather than a literal name. Literal scope names never carry regex
// metacharacters.
func isPatternScope(s string) bool {
	for _, r := range s {
		switch r {
		case '*', '+', '?', '[', ']', '(', ')', '|', '^', '$', '\\', '{', '}':
			return true
		}
	}
	return false
}
