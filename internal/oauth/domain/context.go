package domain

import (
	"time"
)

// AuthnTimeout bounds how long an authorization attempt may sit in the
// authentication/consent round trip before it is considered stale.
const AuthnTimeout = 900_000 * time.Millisecond

// ErrContextExpired reports use of an AuthorizationContext past AuthnTimeout.
var ErrContextExpired = &ErrorResponse{
	Code:              "access_denied",
	Description:       "authorization session expired, please start again",
	InvalidateSession: true,
}

// AuthzRequest is the parsed authorization endpoint request handed to the
// core by the (out of scope) HTTP layer.
type AuthzRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        ResponseType
	Scopes              []string
	State               string
	Nonce               string
	Prompt              []string
	Resources           []string
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizationContext carries everything decided about one authorization
// attempt between request parsing and response construction. It is scoped to
// a single user's browser session and never shared across requests.
type AuthorizationContext struct {
	Request   AuthzRequest
	CreatedAt time.Time

	ClientUsername string
	ClientName     string
	ClientEntityID int64
	ClientType     ClientType

	ReturnURI  string
	UsersGroup string

	Flow       GrantFlow
	OpenIDMode bool

	EffectiveScopes []RequestedScope
	RequestedScopes []string
	ClaimFilters    []ClaimFilterSpec

	AdditionalAudience []string
}

// NewAuthorizationContext stamps the context's creation time; every later
// use must go through AssertNotExpired.
func NewAuthorizationContext(req AuthzRequest, now time.Time) *AuthorizationContext {
	return &AuthorizationContext{Request: req, CreatedAt: now}
}

// AssertNotExpired fails once the context is older than AuthnTimeout. The
// check is evaluated against the supplied clock on every call, never cached.
func (c *AuthorizationContext) AssertNotExpired(now time.Time) error {
	if now.After(c.CreatedAt.Add(AuthnTimeout)) {
		return ErrContextExpired
	}
	return nil
}

// EffectiveScopeNames returns the granted scope strings in request order.
func (c *AuthorizationContext) EffectiveScopeNames() []string {
	names := make([]string, 0, len(c.EffectiveScopes))
	for _, s := range c.EffectiveScopes {
		names = append(names, s.Scope)
	}
	return names
}

// EffectiveAttributeNames returns the union of attribute names exposed by
// the granted scopes, preserving first-seen order.
func (c *AuthorizationContext) EffectiveAttributeNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range c.EffectiveScopes {
		for _, attr := range s.Definition.Attributes {
			if !seen[attr] {
				seen[attr] = true
				names = append(names, attr)
			}
		}
	}
	return names
}
