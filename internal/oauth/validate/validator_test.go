package validate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solsticeid/solstice/internal/oauth/config"
	"github.com/solsticeid/solstice/internal/oauth/domain"
)

func testConfig() *config.Config {
	return &config.Config{
		Issuer:             "https://idp.test",
		RefreshTokenPolicy: config.RefreshOfflineScopeBased,
		ClientsGroup:       "/oauth-clients",
		UsersGroup:         "/",
		Scopes: []domain.ScopeDefinition{
			{Name: "openid", Enabled: true},
			{Name: "profile", Enabled: true, Attributes: []string{"name", "email"}},
			{Name: `tasks\..*`, Enabled: true, Pattern: true},
		},
	}
}

func testClient(attrs map[string]domain.Attribute) domain.ClientRecord {
	if attrs == nil {
		attrs = map[string]domain.Attribute{}
	}
	if _, ok := attrs[domain.AttrAllowedReturnURI]; !ok {
		attrs[domain.AttrAllowedReturnURI] = domain.Attribute{
			Name:   domain.AttrAllowedReturnURI,
			Values: []string{"https://rp.test/cb"},
		}
	}
	return domain.ClientRecord{
		Username:   "rp-client",
		EntityID:   7,
		Groups:     []string{"/oauth-clients"},
		Attributes: attrs,
	}
}

func strAttr(name string, values ...string) domain.Attribute {
	return domain.Attribute{Name: name, Syntax: domain.SyntaxString, Values: values}
}

func TestValidateGroupMembership(t *testing.T) {
	t.Parallel()
	v := New(testConfig())

	require.NoError(t, v.ValidateGroupMembership(testClient(nil)))

	outsider := testClient(nil)
	outsider.Groups = []string{"/somewhere-else"}
	err := v.ValidateGroupMembership(outsider)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestAllowedFlows(t *testing.T) {
	t.Parallel()
	v := New(testConfig())

	t.Run("defaults to authorization code only", func(t *testing.T) {
		allowed := v.AllowedFlows(map[string]domain.Attribute{})
		require.Equal(t, map[domain.GrantFlow]bool{domain.FlowAuthorizationCode: true}, allowed)
	})

	t.Run("reads the attribute and skips junk values", func(t *testing.T) {
		allowed := v.AllowedFlows(map[string]domain.Attribute{
			domain.AttrAllowedGrantFlows: strAttr(domain.AttrAllowedGrantFlows,
				"implicit", "openidHybrid", "not-a-flow"),
		})
		require.True(t, allowed[domain.FlowImplicit])
		require.True(t, allowed[domain.FlowOpenIDHybrid])
		require.False(t, allowed[domain.FlowAuthorizationCode])
		require.Len(t, allowed, 2)
	})
}

func TestAllowedScopes(t *testing.T) {
	t.Parallel()
	v := New(testConfig())

	t.Run("absent attribute means unrestricted", func(t *testing.T) {
		list, restricted := v.AllowedScopes(map[string]domain.Attribute{})
		require.False(t, restricted)
		require.Nil(t, list)
	})

	t.Run("empty attribute means nothing allowed", func(t *testing.T) {
		list, restricted := v.AllowedScopes(map[string]domain.Attribute{
			domain.AttrAllowedScopes: strAttr(domain.AttrAllowedScopes),
		})
		require.True(t, restricted)
		require.Empty(t, list)
	})
}

func TestValidRequestedScopes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v := New(testConfig())

	t.Run("grants in request order and reports drops", func(t *testing.T) {
		granted, dropped := v.ValidRequestedScopes(ctx, map[string]domain.Attribute{},
			[]string{"profile", "unknown", "openid"})

		require.Len(t, granted, 2)
		require.Equal(t, "profile", granted[0].Scope)
		require.Equal(t, "openid", granted[1].Scope)

		require.Len(t, dropped, 1)
		require.Equal(t, "unknown", dropped[0].Scope)
	})

	t.Run("pattern definitions match concrete requests", func(t *testing.T) {
		granted, dropped := v.ValidRequestedScopes(ctx, map[string]domain.Attribute{},
			[]string{"tasks.read"})
		require.Empty(t, dropped)
		require.Len(t, granted, 1)
		require.Equal(t, `tasks\..*`, granted[0].Definition.Name)
		require.False(t, granted[0].Wildcard)
	})

	t.Run("wildcard requests need containment", func(t *testing.T) {
		granted, dropped := v.ValidRequestedScopes(ctx, map[string]domain.Attribute{},
			[]string{`tasks\.r.*`, `.*`})

		require.Len(t, granted, 1)
		require.Equal(t, `tasks\.r.*`, granted[0].Scope)
		require.True(t, granted[0].Wildcard)

		require.Len(t, dropped, 1)
		require.Equal(t, `.*`, dropped[0].Scope)
	})

	t.Run("allow-list restricts", func(t *testing.T) {
		attrs := map[string]domain.Attribute{
			domain.AttrAllowedScopes: strAttr(domain.AttrAllowedScopes, "openid"),
		}
		granted, dropped := v.ValidRequestedScopes(ctx, attrs, []string{"openid", "profile"})
		require.Len(t, granted, 1)
		require.Equal(t, "openid", granted[0].Scope)
		require.Len(t, dropped, 1)
		require.Equal(t, "profile", dropped[0].Scope)
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		granted, _ := v.ValidRequestedScopes(ctx, map[string]domain.Attribute{},
			[]string{"profile", "profile"})
		require.Len(t, granted, 1)
	})
}

func codeRequest(scopes ...string) domain.AuthzRequest {
	return domain.AuthzRequest{
		ClientID:     "rp-client",
		RedirectURI:  "https://rp.test/cb",
		ResponseType: domain.ParseResponseType("code"),
		Scopes:       scopes,
		State:        "xyz",
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v := New(testConfig())
	now := time.Now()

	t.Run("accepts a plain code flow request", func(t *testing.T) {
		actx, err := v.Validate(ctx, testClient(nil), codeRequest("openid", "profile"), now)
		require.NoError(t, err)
		require.Equal(t, domain.FlowAuthorizationCode, actx.Flow)
		require.True(t, actx.OpenIDMode)
		require.Equal(t, "https://rp.test/cb", actx.ReturnURI)
		require.Equal(t, []string{"openid", "profile"}, actx.EffectiveScopeNames())
		require.Equal(t, "/", actx.UsersGroup)
	})

	t.Run("captures claim filters from pseudo-scopes", func(t *testing.T) {
		actx, err := v.Validate(ctx, testClient(nil),
			codeRequest("openid", "claim_filter:group:staff"), now)
		require.NoError(t, err)
		require.Len(t, actx.ClaimFilters, 1)
		require.Equal(t, "group", actx.ClaimFilters[0].Attribute)
	})

	t.Run("rejects unknown response types", func(t *testing.T) {
		req := codeRequest("openid")
		req.ResponseType = domain.ParseResponseType("code badtype")
		_, err := v.Validate(ctx, testClient(nil), req, now)
		require.Error(t, err)
	})

	t.Run("token alone clashes with openid", func(t *testing.T) {
		req := codeRequest("openid")
		req.ResponseType = domain.ParseResponseType("token")
		client := testClient(map[string]domain.Attribute{
			domain.AttrAllowedGrantFlows: strAttr(domain.AttrAllowedGrantFlows, "implicit"),
		})
		_, err := v.Validate(ctx, client, req, now)
		require.Error(t, err)
	})

	t.Run("id_token requires openid", func(t *testing.T) {
		req := codeRequest("profile")
		req.ResponseType = domain.ParseResponseType("id_token")
		client := testClient(map[string]domain.Attribute{
			domain.AttrAllowedGrantFlows: strAttr(domain.AttrAllowedGrantFlows, "implicit"),
		})
		_, err := v.Validate(ctx, client, req, now)
		require.Error(t, err)
	})

	t.Run("hybrid needs openid and the hybrid flow grant", func(t *testing.T) {
		req := codeRequest("openid")
		req.ResponseType = domain.ParseResponseType("code id_token")

		_, err := v.Validate(ctx, testClient(nil), req, now)
		require.Error(t, err) // only authorizationCode allowed by default

		client := testClient(map[string]domain.Attribute{
			domain.AttrAllowedGrantFlows: strAttr(domain.AttrAllowedGrantFlows, "openidHybrid"),
		})
		actx, err := v.Validate(ctx, client, req, now)
		require.NoError(t, err)
		require.Equal(t, domain.FlowOpenIDHybrid, actx.Flow)
	})

	t.Run("openid requested but unavailable fails loudly", func(t *testing.T) {
		client := testClient(map[string]domain.Attribute{
			domain.AttrAllowedScopes: strAttr(domain.AttrAllowedScopes, "profile"),
		})
		_, err := v.Validate(ctx, client, codeRequest("openid", "profile"), now)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("offline_access dropped without consent prompt", func(t *testing.T) {
		cfgWithOffline := testConfig()
		vv := New(cfgWithOffline)

		actx, err := vv.Validate(ctx, testClient(nil),
			codeRequest("openid", "offline_access"), now)
		require.NoError(t, err)
		require.NotContains(t, actx.EffectiveScopeNames(), "offline_access")

		req := codeRequest("openid", "offline_access")
		req.Prompt = []string{"consent"}
		actx, err = vv.Validate(ctx, testClient(nil), req, now)
		require.NoError(t, err)
		require.Contains(t, actx.EffectiveScopeNames(), "offline_access")
	})

	t.Run("public clients need PKCE on code flows", func(t *testing.T) {
		client := testClient(map[string]domain.Attribute{
			domain.AttrClientType: strAttr(domain.AttrClientType, "PUBLIC"),
		})

		_, err := v.Validate(ctx, client, codeRequest("profile"), now)
		require.Error(t, err)

		req := codeRequest("profile")
		req.CodeChallenge = "challenge"
		req.CodeChallengeMethod = "S256"
		actx, err := v.Validate(ctx, client, req, now)
		require.NoError(t, err)
		require.Equal(t, domain.ClientPublic, actx.ClientType)
	})

	t.Run("rejects unsupported challenge method", func(t *testing.T) {
		req := codeRequest("profile")
		req.CodeChallenge = "challenge"
		req.CodeChallengeMethod = "S999"
		_, err := v.Validate(ctx, testClient(nil), req, now)
		require.Error(t, err)
	})
}

func TestValidateReturnURI(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()

	t.Run("omitted URI falls back to the first registered", func(t *testing.T) {
		v := New(testConfig())
		req := codeRequest("profile")
		req.RedirectURI = ""
		actx, err := v.Validate(ctx, testClient(nil), req, now)
		require.NoError(t, err)
		require.Equal(t, "https://rp.test/cb", actx.ReturnURI)
	})

	t.Run("unregistered URI is rejected", func(t *testing.T) {
		v := New(testConfig())
		req := codeRequest("profile")
		req.RedirectURI = "https://evil.test/cb"
		_, err := v.Validate(ctx, testClient(nil), req, now)
		require.Error(t, err)
	})

	t.Run("wildcard matching is opt-in", func(t *testing.T) {
		client := testClient(map[string]domain.Attribute{
			domain.AttrAllowedReturnURI: strAttr(domain.AttrAllowedReturnURI, "https://rp.test/cb/*"),
		})
		req := codeRequest("profile")
		req.RedirectURI = "https://rp.test/cb/step2"

		_, err := New(testConfig()).Validate(ctx, client, req, now)
		require.Error(t, err)

		cfg := testConfig()
		cfg.AllowWildcardReturnURI = true
		actx, err := New(cfg).Validate(ctx, client, req, now)
		require.NoError(t, err)
		require.Equal(t, "https://rp.test/cb/step2", actx.ReturnURI)
	})

	t.Run("public clients may vary loopback ports", func(t *testing.T) {
		client := testClient(map[string]domain.Attribute{
			domain.AttrClientType:       strAttr(domain.AttrClientType, "PUBLIC"),
			domain.AttrAllowedReturnURI: strAttr(domain.AttrAllowedReturnURI, "http://127.0.0.1:8000/cb"),
		})
		req := codeRequest("profile")
		req.RedirectURI = "http://127.0.0.1:51004/cb"
		req.CodeChallenge = "challenge"
		req.CodeChallengeMethod = "S256"

		actx, err := New(testConfig()).Validate(ctx, client, req, now)
		require.NoError(t, err)
		require.Equal(t, "http://127.0.0.1:51004/cb", actx.ReturnURI)

		// Path must still agree.
		req.RedirectURI = "http://127.0.0.1:51004/other"
		_, err = New(testConfig()).Validate(ctx, client, req, now)
		require.Error(t, err)
	})

	t.Run("private-use schemes need a reverse-domain name", func(t *testing.T) {
		client := testClient(map[string]domain.Attribute{
			domain.AttrClientType:       strAttr(domain.AttrClientType, "PUBLIC"),
			domain.AttrAllowedReturnURI: strAttr(domain.AttrAllowedReturnURI, "https://rp.test/cb"),
		})
		req := codeRequest("profile")
		req.RedirectURI = "myapp:/cb"
		req.CodeChallenge = "challenge"

		_, err := New(testConfig()).Validate(ctx, client, req, now)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		require.Contains(t, verr.Reason, "reverse-domain")
	})
}
