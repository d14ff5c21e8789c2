package validate

import (
	"context"
	"net"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/solsticeid/solstice/internal/oauth/claims"
	"github.com/solsticeid/solstice/internal/oauth/domain"
	"github.com/solsticeid/solstice/internal/oauth/scope"
	"github.com/solsticeid/solstice/pkg/slogx"
)

// Validate runs the complete authorization request validation and returns
// the filled-in authorization context the response builder works from.
// Everything that can fail a request fails here; downstream code may assume
// a returned context is internally consistent.
func (v *Validator) Validate(
	ctx context.Context,
	client domain.ClientRecord,
	req domain.AuthzRequest,
	now time.Time,
) (*domain.AuthorizationContext, error) {
	log := slogx.FromContext(ctx)

	if err := v.ValidateGroupMembership(client); err != nil {
		return nil, err
	}

	actx := domain.NewAuthorizationContext(req, now)
	actx.ClientUsername = client.Username
	actx.ClientName = client.Name()
	actx.ClientEntityID = client.EntityID
	actx.ClientType = client.Type()
	actx.UsersGroup = client.Group()
	if actx.UsersGroup == "" {
		actx.UsersGroup = v.cfg.UsersGroup
	}

	returnURI, err := v.validateReturnURI(client, req.RedirectURI)
	if err != nil {
		return nil, err
	}
	actx.ReturnURI = returnURI

	cleaned, filters := claims.ExtractFilters(ctx, req.Scopes)
	actx.ClaimFilters = filters
	actx.RequestedScopes = cleaned

	cleaned = v.dropUnconsentedOfflineAccess(ctx, cleaned, req.Prompt)

	granted, dropped := v.ValidRequestedScopes(ctx, client.Attributes, cleaned)
	for _, d := range dropped {
		if d.Scope == scope.OpenID {
			return nil, domain.Validationf("the %s scope was requested but is not available: %s",
				scope.OpenID, d.Reason)
		}
	}
	actx.EffectiveScopes = granted
	actx.OpenIDMode = slices.Contains(actx.EffectiveScopeNames(), scope.OpenID)

	flow, err := v.validateFlowAndMode(client, actx)
	if err != nil {
		return nil, err
	}
	actx.Flow = flow

	if err := v.validatePKCE(actx); err != nil {
		return nil, err
	}

	log.Info("authorization request validated",
		"client", client.Username,
		"flow", string(flow),
		"scopes", actx.EffectiveScopeNames())
	return actx, nil
}

// dropUnconsentedOfflineAccess removes the offline_access scope unless the
// request explicitly asks for the consent prompt, as OIDC requires for
// offline grants.
func (v *Validator) dropUnconsentedOfflineAccess(ctx context.Context, scopes []string, prompt []string) []string {
	if !slices.Contains(scopes, scope.OfflineAccess) || slices.Contains(prompt, "consent") {
		return scopes
	}
	slogx.FromContext(ctx).Info("dropping offline_access scope requested without the consent prompt")
	out := make([]string, 0, len(scopes)-1)
	for _, s := range scopes {
		if s != scope.OfflineAccess {
			out = append(out, s)
		}
	}
	return out
}

// validateFlowAndMode derives the grant flow from the response type, checks
// it against the client's allowed flows and verifies the response type is
// consistent with whether the request is in OpenID Connect mode.
func (v *Validator) validateFlowAndMode(client domain.ClientRecord, actx *domain.AuthorizationContext) (domain.GrantFlow, error) {
	rt := actx.Request.ResponseType
	if len(rt) == 0 {
		return "", domain.Validationf("the response_type parameter is required")
	}
	for _, value := range rt {
		switch value {
		case domain.ResponseTypeCode, domain.ResponseTypeToken, domain.ResponseTypeIDToken:
		default:
			return "", domain.Validationf("unknown response type %q", value)
		}
	}

	if actx.OpenIDMode && rt.Only(domain.ResponseTypeToken) {
		return "", domain.Validationf("the token response type alone can not be used with the openid scope")
	}
	if !actx.OpenIDMode && rt.Contains(domain.ResponseTypeIDToken) {
		return "", domain.Validationf("the id_token response type requires the openid scope")
	}

	var flow domain.GrantFlow
	switch {
	case rt.Contains(domain.ResponseTypeCode) && len(rt) == 1:
		flow = domain.FlowAuthorizationCode
	case rt.Contains(domain.ResponseTypeCode):
		if !actx.OpenIDMode {
			return "", domain.Validationf("the hybrid response type %q requires the openid scope", rt.String())
		}
		flow = domain.FlowOpenIDHybrid
	default:
		flow = domain.FlowImplicit
	}

	allowed := v.AllowedFlows(client.Attributes)
	if !allowed[flow] {
		return "", domain.Validationf("the client %q is not allowed to use the %s flow",
			client.Username, flow)
	}
	return flow, nil
}

// validatePKCE enforces a code challenge for public clients using a flow
// that returns an authorization code, and checks the challenge method.
func (v *Validator) validatePKCE(actx *domain.AuthorizationContext) error {
	req := actx.Request

	if req.CodeChallenge != "" {
		switch req.CodeChallengeMethod {
		case "", "plain", "S256":
		default:
			return domain.Validationf("unsupported code challenge method %q", req.CodeChallengeMethod)
		}
		return nil
	}

	codeFlow := actx.Flow == domain.FlowAuthorizationCode || actx.Flow == domain.FlowOpenIDHybrid
	if codeFlow && actx.ClientType == domain.ClientPublic {
		return domain.Validationf("a code challenge is required for public clients using the %s flow", actx.Flow)
	}
	return nil
}

// validateReturnURI resolves the redirect URI the response will be sent to.
// An omitted URI falls back to the client's first registered URI. A supplied
// URI must match the client's allow-list exactly, except that public clients
// may vary the port of a registered loopback URI and wildcard entries are
// honoured when the server enables them.
func (v *Validator) validateReturnURI(client domain.ClientRecord, requested string) (string, error) {
	registered := client.AllowedReturnURIs()
	if len(registered) == 0 {
		return "", domain.Validationf("the client %q has no registered return URIs", client.Username)
	}

	if requested == "" {
		return registered[0], nil
	}

	for _, allowed := range registered {
		if allowed == requested {
			return requested, nil
		}
		if v.cfg.AllowWildcardReturnURI && wildcardURIMatch(allowed, requested) {
			return requested, nil
		}
		if client.Type() == domain.ClientPublic && loopbackURIMatch(allowed, requested) {
			return requested, nil
		}
	}

	if client.Type() == domain.ClientPublic {
		if err := checkPrivateUseScheme(requested); err != nil {
			return "", err
		}
	}

	return "", domain.Validationf("the return URI %q is not registered for the client %q",
		requested, client.Username)
}

// wildcardURIMatch treats '*' in a registered URI as matching any run of
// characters. Everything else matches literally.
func wildcardURIMatch(allowed, requested string) bool {
	if !strings.Contains(allowed, "*") {
		return false
	}
	parts := strings.Split(allowed, "*")
	for i := range parts {
		parts[i] = regexp.QuoteMeta(parts[i])
	}
	re, err := regexp.Compile(`\A` + strings.Join(parts, ".*") + `\z`)
	if err != nil {
		return false
	}
	return re.MatchString(requested)
}

// loopbackURIMatch allows a public client to use any port on a registered
// loopback URI. Scheme, host and path must still match.
func loopbackURIMatch(allowed, requested string) bool {
	au, err := url.Parse(allowed)
	if err != nil {
		return false
	}
	ru, err := url.Parse(requested)
	if err != nil {
		return false
	}
	if !isLoopbackHost(au.Hostname()) || !isLoopbackHost(ru.Hostname()) {
		return false
	}
	return au.Scheme == ru.Scheme && au.Hostname() == ru.Hostname() && au.Path == ru.Path
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// checkPrivateUseScheme rejects native-app custom schemes that do not use a
// reverse-domain name, per RFC 8252.
func checkPrivateUseScheme(requested string) error {
	u, err := url.Parse(requested)
	if err != nil {
		return domain.Validationf("the return URI %q is not a valid URI", requested)
	}
	switch u.Scheme {
	case "", "http", "https":
		return nil
	}
	if !strings.Contains(u.Scheme, ".") {
		return domain.Validationf("the private-use return URI scheme %q must use a reverse-domain name", u.Scheme)
	}
	return nil
}
