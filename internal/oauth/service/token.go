// Package service implements the token endpoint operations: redeeming
// authorization codes and rolling refresh tokens.
package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/solsticeid/solstice/internal/oauth/claims"
	"github.com/solsticeid/solstice/internal/oauth/config"
	"github.com/solsticeid/solstice/internal/oauth/domain"
	"github.com/solsticeid/solstice/internal/oauth/scope"
	"github.com/solsticeid/solstice/internal/oauth/store"
	"github.com/solsticeid/solstice/pkg/cryptox"
	"github.com/solsticeid/solstice/pkg/idx"
	"github.com/solsticeid/solstice/pkg/jwtx"
	"github.com/solsticeid/solstice/pkg/slogx"
)

// ErrRateLimited is returned when a client exceeds the redemption rate
// limit. The transport layer maps it to a 429 with Retry-After.
var ErrRateLimited = errors.New("service: token endpoint rate limit exceeded")

// SecretResolver looks up the stored secret hash for a confidential client.
// An empty hash means the client has no secret configured.
type SecretResolver func(ctx context.Context, clientUsername string) (string, error)

// TokenService serves the token endpoint grant types.
type TokenService struct {
	cfg     *config.Config
	signer  jwtx.Signer
	tokens  store.TokenStore
	secrets SecretResolver
	limiter *keyedLimiter
	now     func() time.Time
}

func NewTokenService(cfg *config.Config, signer jwtx.Signer, tokens store.TokenStore, secrets SecretResolver) *TokenService {
	return &TokenService{
		cfg:     cfg,
		signer:  signer,
		tokens:  tokens,
		secrets: secrets,
		limiter: newKeyedLimiter(DefaultRedemptionLimit),
		now:     time.Now,
	}
}

// WithClock replaces the service's clock and returns the service.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// WithRateLimit replaces the redemption rate limit and returns the service.
func (s *TokenService) WithRateLimit(cfg RateLimitConfig) *TokenService {
	s.limiter = newKeyedLimiter(cfg)
	return s
}

// TokenResponse is the token endpoint success payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// ExchangeRequest carries the authorization_code grant parameters.
type ExchangeRequest struct {
	ClientUsername string
	ClientSecret   string
	Code           string
	RedirectURI    string
	CodeVerifier   string
}

var (
	errInvalidGrant  = &domain.ErrorResponse{Code: "invalid_grant"}
	errInvalidClient = &domain.ErrorResponse{Code: "invalid_client"}
)

// ExchangeAuthorizationCode redeems an authorization code for tokens. The
// code is consumed before any further checking so a failed exchange still
// burns it.
func (s *TokenService) ExchangeAuthorizationCode(ctx context.Context, req ExchangeRequest) (*TokenResponse, error) {
	log := slogx.FromContext(ctx)

	if !s.limiter.allow(req.ClientUsername) {
		log.Warn("token endpoint rate limit exceeded", "client", req.ClientUsername)
		return nil, ErrRateLimited
	}

	row, err := s.tokens.Get(ctx, store.TypeCode, req.Code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errInvalidGrant
		}
		return nil, fmt.Errorf("service: load authorization code: %w", err)
	}
	if err := s.tokens.Remove(ctx, store.TypeCode, req.Code); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("service: consume authorization code: %w", err)
	}

	record, err := domain.ParseTokenRecord(row.Payload)
	if err != nil {
		return nil, fmt.Errorf("service: parse code record: %w", err)
	}

	if record.ClientUsername != req.ClientUsername {
		log.Warn("authorization code presented by a different client",
			"issued_to", record.ClientUsername, "presented_by", req.ClientUsername)
		return nil, errInvalidGrant
	}
	if record.RedirectURI != "" && req.RedirectURI != record.RedirectURI {
		return nil, errInvalidGrant
	}

	if err := verifyPKCE(record.PKCSInfo, req.CodeVerifier); err != nil {
		return nil, err
	}
	if err := s.authenticateClient(ctx, record.ClientType, req.ClientUsername, req.ClientSecret); err != nil {
		return nil, err
	}

	now := s.now()
	rec := record.Clone()
	rec.AuthzCode = ""
	rec.AccessToken = cryptox.MustGenerateToken(cryptox.TokenSize256)

	if s.shouldIssueRefresh(rec.EffectiveScope) {
		refresh := cryptox.MustGenerateToken(cryptox.TokenSize256)
		rec.RefreshToken = refresh
		if rec.FirstRefreshRollingToken == "" {
			rec.FirstRefreshRollingToken = refresh
		}
	}

	if err := s.persistTokens(ctx, rec, now); err != nil {
		return nil, err
	}

	log.Info("authorization code exchanged",
		"client", req.ClientUsername,
		"refresh_issued", rec.RefreshToken != "")
	return s.buildResponse(rec), nil
}

// RefreshRequest carries the refresh_token grant parameters. Scopes may
// narrow the original grant; an empty list keeps it unchanged.
type RefreshRequest struct {
	ClientUsername string
	ClientSecret   string
	RefreshToken   string
	Scopes         []string
}

// RefreshAccessToken rolls a refresh token: a new access token is minted,
// the ID token is re-signed when present, and the refresh token itself
// rotates while keeping the lineage marker of the first token in the chain.
func (s *TokenService) RefreshAccessToken(ctx context.Context, req RefreshRequest) (*TokenResponse, error) {
	log := slogx.FromContext(ctx)

	if !s.limiter.allow(req.ClientUsername) {
		log.Warn("token endpoint rate limit exceeded", "client", req.ClientUsername)
		return nil, ErrRateLimited
	}

	row, err := s.tokens.Get(ctx, store.TypeRefresh, req.RefreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errInvalidGrant
		}
		return nil, fmt.Errorf("service: load refresh token: %w", err)
	}

	record, err := domain.ParseTokenRecord(row.Payload)
	if err != nil {
		return nil, fmt.Errorf("service: parse refresh record: %w", err)
	}

	if record.ClientUsername != req.ClientUsername {
		log.Warn("refresh token presented by a different client",
			"issued_to", record.ClientUsername, "presented_by", req.ClientUsername)
		return nil, errInvalidGrant
	}
	if err := s.authenticateClient(ctx, record.ClientType, req.ClientUsername, req.ClientSecret); err != nil {
		return nil, err
	}

	rec := record.Clone()

	cleaned, filters := claims.ExtractFilters(ctx, req.Scopes)
	if len(cleaned) > 0 {
		narrowed, err := narrowScopes(ctx, cleaned, rec.EffectiveScope)
		if err != nil {
			return nil, err
		}
		rec.EffectiveScope = narrowed
	}
	if len(filters) > 0 {
		rec.AttributeValueFilters = claims.MergeFilters(rec.AttributeValueFilters, filters)
	}

	now := s.now()
	rec.AccessToken = cryptox.MustGenerateToken(cryptox.TokenSize256)

	if rec.OpenidInfo != "" {
		signed, err := s.resignIDToken(rec, now)
		if err != nil {
			return nil, err
		}
		rec.OpenidInfo = signed
	}

	newRefresh := cryptox.MustGenerateToken(cryptox.TokenSize256)
	rec.RefreshToken = newRefresh

	if err := s.persistTokens(ctx, rec, now); err != nil {
		return nil, err
	}
	if err := s.tokens.Remove(ctx, store.TypeRefresh, req.RefreshToken); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("service: retire refresh token: %w", err)
	}

	log.Info("refresh token rolled", "client", req.ClientUsername)
	return s.buildResponse(rec), nil
}

// narrowScopes checks the requested subset against the original grant.
// Exact names must appear verbatim; a pattern request must be contained in
// an originally granted pattern.
func narrowScopes(ctx context.Context, requested, granted []string) ([]string, error) {
	var out []string
	for _, req := range requested {
		if slices.Contains(granted, req) {
			out = append(out, req)
			continue
		}
		covered := false
		for _, g := range granted {
			if scope.IsSubsetOfPattern(ctx, req, g) {
				covered = true
				break
			}
		}
		if !covered {
			return nil, &domain.ErrorResponse{
				Code:        "invalid_scope",
				Description: fmt.Sprintf("the scope %q exceeds the original grant", req),
			}
		}
		out = append(out, req)
	}
	return out, nil
}

// resignIDToken issues a fresh ID token for a rolled access token. The
// nonce survives from the original token; timestamps, jti and at_hash are
// new.
func (s *TokenService) resignIDToken(rec *domain.TokenRecord, now time.Time) (string, error) {
	idClaims := jwt.MapClaims{
		"iss": rec.IssuerURI,
		"sub": rec.Subject,
		"aud": rec.Audience,
		"exp": now.Add(s.cfg.IDTokenValidity).Unix(),
		"iat": now.Unix(),
		"jti": idx.New().String(),
	}

	token, _, err := jwt.NewParser().ParseUnverified(rec.OpenidInfo, jwt.MapClaims{})
	if err == nil {
		if prev, ok := token.Claims.(jwt.MapClaims); ok {
			if nonce, ok := prev["nonce"].(string); ok && nonce != "" {
				idClaims["nonce"] = nonce
			}
		}
	}

	hash, err := s.signer.TokenHash(rec.AccessToken)
	if err != nil {
		return "", &domain.SigningError{Err: err}
	}
	idClaims["at_hash"] = hash

	signed, err := s.signer.Sign(idClaims)
	if err != nil {
		return "", &domain.SigningError{Err: err}
	}
	return signed, nil
}

// authenticateClient verifies the presented client secret for confidential
// clients. Public clients carry no secret and rely on PKCE.
func (s *TokenService) authenticateClient(ctx context.Context, clientType domain.ClientType, username, secret string) error {
	if clientType != domain.ClientConfidential {
		return nil
	}

	hash, err := s.secrets(ctx, username)
	if err != nil {
		return fmt.Errorf("service: resolve client secret: %w", err)
	}
	if hash == "" {
		return errInvalidClient
	}
	if err := cryptox.VerifySecret(secret, hash); err != nil {
		if errors.Is(err, cryptox.ErrSecretMismatch) {
			return errInvalidClient
		}
		return fmt.Errorf("service: verify client secret: %w", err)
	}
	return nil
}

// verifyPKCE checks the code verifier against the challenge stored with the
// code. A missing method means plain.
func verifyPKCE(info *domain.PKCSInfo, verifier string) error {
	if info == nil || info.CodeChallenge == "" {
		return nil
	}
	if verifier == "" {
		return errInvalidGrant
	}

	var derived string
	switch info.CodeChallengeMethod {
	case "S256":
		sum := sha256.Sum256([]byte(verifier))
		derived = base64.RawURLEncoding.EncodeToString(sum[:])
	case "", "plain":
		derived = verifier
	default:
		return errInvalidGrant
	}

	if subtle.ConstantTimeCompare([]byte(derived), []byte(info.CodeChallenge)) != 1 {
		return errInvalidGrant
	}
	return nil
}

// shouldIssueRefresh applies the configured refresh token policy.
func (s *TokenService) shouldIssueRefresh(effectiveScope []string) bool {
	switch s.cfg.RefreshTokenPolicy {
	case config.RefreshAlways:
		return true
	case config.RefreshOfflineScopeBased:
		return slices.Contains(effectiveScope, scope.OfflineAccess)
	default:
		return false
	}
}

// persistTokens writes the access and, when present, refresh token rows
// sharing the record's payload.
func (s *TokenService) persistTokens(ctx context.Context, rec *domain.TokenRecord, now time.Time) error {
	payload, err := rec.Marshal()
	if err != nil {
		return fmt.Errorf("service: marshal token record: %w", err)
	}

	err = s.tokens.Put(ctx, store.Token{
		Type:      store.TypeAccess,
		Value:     rec.AccessToken,
		Owner:     rec.Subject,
		Payload:   payload,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.AccessTokenValidity),
	})
	if err != nil {
		return fmt.Errorf("service: store access token: %w", err)
	}

	if rec.RefreshToken != "" {
		var expiresAt time.Time
		if s.cfg.RefreshTokenValidity > 0 {
			expiresAt = now.Add(s.cfg.RefreshTokenValidity)
		}
		err = s.tokens.Put(ctx, store.Token{
			Type:      store.TypeRefresh,
			Value:     rec.RefreshToken,
			Owner:     rec.Subject,
			Payload:   payload,
			IssuedAt:  now,
			ExpiresAt: expiresAt,
		})
		if err != nil {
			return fmt.Errorf("service: store refresh token: %w", err)
		}
	}
	return nil
}

func (s *TokenService) buildResponse(rec *domain.TokenRecord) *TokenResponse {
	return &TokenResponse{
		AccessToken:  rec.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    config.Seconds(s.cfg.AccessTokenValidity),
		RefreshToken: rec.RefreshToken,
		IDToken:      rec.OpenidInfo,
		Scope:        strings.Join(rec.EffectiveScope, " "),
	}
}
