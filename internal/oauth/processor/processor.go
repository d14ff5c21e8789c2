// Package processor turns a validated, consented authorization context into
// the artifacts of the authorization response: the code, the access token
// and the signed ID token, persisting server-side state as it goes.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/solsticeid/solstice/internal/oauth/claims"
	"github.com/solsticeid/solstice/internal/oauth/config"
	"github.com/solsticeid/solstice/internal/oauth/domain"
	"github.com/solsticeid/solstice/internal/oauth/store"
	"github.com/solsticeid/solstice/pkg/cryptox"
	"github.com/solsticeid/solstice/pkg/idx"
	"github.com/solsticeid/solstice/pkg/jwtx"
	"github.com/solsticeid/solstice/pkg/slogx"
)

// Processor builds authorization responses. It is constructed once per
// issuer and shared across requests.
type Processor struct {
	cfg    *config.Config
	signer jwtx.Signer
	tokens store.TokenStore
	now    func() time.Time
}

func New(cfg *config.Config, signer jwtx.Signer, tokens store.TokenStore) *Processor {
	return &Processor{cfg: cfg, signer: signer, tokens: tokens, now: time.Now}
}

// WithClock replaces the processor's clock and returns the processor.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// AuthorizationSuccessResponse carries everything the front channel returns
// to the client. Fields are populated per the selected flow; empty fields
// are omitted from the redirect.
type AuthorizationSuccessResponse struct {
	RedirectURI string
	Code        string
	AccessToken string
	TokenType   string
	ExpiresIn   int64
	IDToken     string
	State       string
	Scope       string
}

// BuildAuthzResponse produces the authorization response for an approved
// request. The user's resolved attributes arrive already released by the
// consent step; claim filters from the request are applied here.
func (p *Processor) BuildAuthzResponse(
	ctx context.Context,
	actx *domain.AuthorizationContext,
	subject string,
	attrs []domain.Attribute,
) (*AuthorizationSuccessResponse, error) {
	now := p.now()
	if err := actx.AssertNotExpired(now); err != nil {
		return nil, err
	}

	record, err := p.newTokenRecord(actx, subject, attrs)
	if err != nil {
		return nil, err
	}

	resp := &AuthorizationSuccessResponse{
		RedirectURI: actx.ReturnURI,
		State:       actx.Request.State,
		Scope:       strings.Join(actx.EffectiveScopeNames(), " "),
	}

	rt := actx.Request.ResponseType
	wantCode := rt.Contains(domain.ResponseTypeCode)
	wantToken := rt.Contains(domain.ResponseTypeToken)
	wantIDToken := rt.Contains(domain.ResponseTypeIDToken)

	var idClaims jwt.MapClaims
	if actx.OpenIDMode {
		idClaims, err = p.prepareIDClaims(actx, record, subject, now)
		if err != nil {
			return nil, err
		}
	}

	var code string
	if wantCode {
		code = cryptox.MustGenerateToken(cryptox.TokenSize256)
		record.AuthzCode = code
		resp.Code = code
	}

	var accessToken string
	if wantToken {
		accessToken = cryptox.MustGenerateToken(cryptox.TokenSize256)
		record.AccessToken = accessToken
		resp.AccessToken = accessToken
		resp.TokenType = "Bearer"
		resp.ExpiresIn = config.Seconds(p.cfg.AccessTokenValidity)
	}

	if actx.OpenIDMode {
		if err := p.signIDToken(record, idClaims, code, accessToken); err != nil {
			return nil, err
		}
		if wantIDToken {
			resp.IDToken = record.OpenidInfo
		}
	}

	if err := p.persist(ctx, record, now, wantCode, wantToken); err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("authorization response built",
		"client", actx.ClientUsername,
		"flow", string(actx.Flow),
		"code_issued", wantCode,
		"token_issued", wantToken,
		"id_token_issued", wantIDToken)
	return resp, nil
}

// newTokenRecord captures the authorization decision as the server-side
// record shared by all tokens minted from it.
func (p *Processor) newTokenRecord(
	actx *domain.AuthorizationContext,
	subject string,
	attrs []domain.Attribute,
) (*domain.TokenRecord, error) {
	filtered := claims.ApplyFilters(actx.ClaimFilters, attrs)
	userInfo, err := json.Marshal(claims.BuildUserInfo(subject, filtered))
	if err != nil {
		return nil, fmt.Errorf("processor: marshal user info: %w", err)
	}

	record := &domain.TokenRecord{
		UserInfo:              string(userInfo),
		EffectiveScope:        actx.EffectiveScopeNames(),
		RequestedScope:        actx.RequestedScopes,
		ClientEntityID:        actx.ClientEntityID,
		RedirectURI:           actx.ReturnURI,
		Subject:               subject,
		ClientName:            actx.ClientName,
		ClientUsername:        actx.ClientUsername,
		MaxExtendedValidity:   config.Seconds(p.cfg.MaxExtendedValidity),
		TokenValidity:         config.Seconds(p.cfg.AccessTokenValidity),
		ResponseType:          actx.Request.ResponseType.String(),
		Audience:              append([]string{actx.ClientUsername}, actx.AdditionalAudience...),
		IssuerURI:             p.cfg.Issuer,
		ClientType:            actx.ClientType,
		AttributeValueFilters: actx.ClaimFilters,
	}

	if actx.Request.CodeChallenge != "" {
		record.PKCSInfo = &domain.PKCSInfo{
			CodeChallenge:       actx.Request.CodeChallenge,
			CodeChallengeMethod: actx.Request.CodeChallengeMethod,
		}
	}
	return record, nil
}

// prepareIDClaims assembles the ID token claim set before any token hashes
// are known. Regular user claims go inline only when the ID token is the
// sole response artifact; otherwise relying parties fetch them from the
// userinfo endpoint with the access token.
func (p *Processor) prepareIDClaims(
	actx *domain.AuthorizationContext,
	record *domain.TokenRecord,
	subject string,
	now time.Time,
) (jwt.MapClaims, error) {
	idClaims := jwt.MapClaims{
		"iss": p.cfg.Issuer,
		"sub": subject,
		"aud": record.Audience,
		"exp": now.Add(p.cfg.IDTokenValidity).Unix(),
		"iat": now.Unix(),
		"jti": idx.New().String(),
	}
	if actx.Request.Nonce != "" {
		idClaims["nonce"] = actx.Request.Nonce
	}

	if actx.Request.ResponseType.Only(domain.ResponseTypeIDToken) {
		var userInfo map[string]any
		if err := json.Unmarshal([]byte(record.UserInfo), &userInfo); err != nil {
			return nil, fmt.Errorf("processor: unmarshal user info: %w", err)
		}
		for name, value := range userInfo {
			idClaims[name] = value
		}
	}
	return idClaims, nil
}

// signIDToken signs the ID token, injecting c_hash and at_hash as the code
// and access token require. When both hashes apply the token is signed
// twice so the stored form always carries the complete hash set.
func (p *Processor) signIDToken(
	record *domain.TokenRecord,
	idClaims jwt.MapClaims,
	code, accessToken string,
) error {
	if code != "" {
		hash, err := p.signer.TokenHash(code)
		if err != nil {
			return &domain.SigningError{Err: err}
		}
		idClaims["c_hash"] = hash
	}

	signed, err := p.signer.Sign(idClaims)
	if err != nil {
		return &domain.SigningError{Err: err}
	}
	record.OpenidInfo = signed

	if accessToken != "" {
		hash, err := p.signer.TokenHash(accessToken)
		if err != nil {
			return &domain.SigningError{Err: err}
		}
		idClaims["at_hash"] = hash

		signed, err = p.signer.Sign(idClaims)
		if err != nil {
			return &domain.SigningError{Err: err}
		}
		record.OpenidInfo = signed
	}
	return nil
}

// persist writes the code and access token rows after all signing has
// completed, so a signing failure never leaves redeemable state behind.
func (p *Processor) persist(ctx context.Context, record *domain.TokenRecord, now time.Time, wantCode, wantToken bool) error {
	payload, err := record.Marshal()
	if err != nil {
		return fmt.Errorf("processor: marshal token record: %w", err)
	}

	if wantCode {
		err := p.tokens.Put(ctx, store.Token{
			Type:      store.TypeCode,
			Value:     record.AuthzCode,
			Owner:     record.Subject,
			Payload:   payload,
			IssuedAt:  now,
			ExpiresAt: now.Add(p.cfg.CodeTokenValidity),
		})
		if err != nil {
			return fmt.Errorf("processor: store authorization code: %w", err)
		}
	}

	if wantToken {
		err := p.tokens.Put(ctx, store.Token{
			Type:      store.TypeAccess,
			Value:     record.AccessToken,
			Owner:     record.Subject,
			Payload:   payload,
			IssuedAt:  now,
			ExpiresAt: now.Add(p.cfg.AccessTokenValidity),
		})
		if err != nil {
			return fmt.Errorf("processor: store access token: %w", err)
		}
	}
	return nil
}
