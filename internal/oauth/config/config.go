package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/solsticeid/solstice/internal/oauth/domain"
	"github.com/solsticeid/solstice/pkg/jwtx"
)

// RefreshTokenIssuePolicy controls when the token endpoint issues refresh
// tokens.
type RefreshTokenIssuePolicy string

const (
	RefreshNever             RefreshTokenIssuePolicy = "NEVER"
	RefreshAlways            RefreshTokenIssuePolicy = "ALWAYS"
	RefreshOfflineScopeBased RefreshTokenIssuePolicy = "OFFLINE_SCOPE_BASED"
)

// Config is the read-only configuration surface the protocol core consumes.
// It is constructed once per endpoint at deploy time and validated before
// anything is served from it.
type Config struct {
	Issuer string // Required: issuer URI for tokens

	SigningAlgorithm  string // JWS algorithm (RS256..RS512, ES256..ES512, HS256..HS512)
	SigningCredential []byte // PEM private key for RS*/ES*
	SigningKeyID      string // Optional kid header, usually the credential name
	SigningSecret     string // Shared secret for HS*

	CodeTokenValidity    time.Duration // authorization code lifetime
	AccessTokenValidity  time.Duration // access token lifetime
	IDTokenValidity      time.Duration // id token lifetime
	RefreshTokenValidity time.Duration // refresh token lifetime
	// MaxExtendedValidity caps client-requested access token lifetime
	// extension; zero disables extension.
	MaxExtendedValidity time.Duration

	RefreshTokenPolicy RefreshTokenIssuePolicy

	// Scopes holds the explicitly configured scope definitions. System
	// scopes missing from this list are added by the catalog with computed
	// defaults.
	Scopes []domain.ScopeDefinition

	ClientsGroup string // group clients must be members of
	UsersGroup   string // default group users are resolved against

	// AllowWildcardReturnURI enables glob matching of registered redirect
	// URIs instead of exact comparison.
	AllowWildcardReturnURI bool
}

// Load reads the scalar configuration surface from the environment in the
// usual OAUTH_* variables. Scope definitions and credentials are provided
// programmatically by the deployment layer.
func Load() Config {
	return Config{
		Issuer:               os.Getenv("OAUTH_ISSUER"),
		SigningAlgorithm:     getEnvOrDefault("OAUTH_SIGNING_ALGORITHM", "RS256"),
		SigningKeyID:         os.Getenv("OAUTH_SIGNING_KEY_ID"),
		SigningSecret:        os.Getenv("OAUTH_SIGNING_SECRET"),
		CodeTokenValidity:    getEnvDurationOrDefault("OAUTH_CODE_VALIDITY", 10*time.Minute),
		AccessTokenValidity:  getEnvDurationOrDefault("OAUTH_ACCESS_VALIDITY", time.Hour),
		IDTokenValidity:      getEnvDurationOrDefault("OAUTH_ID_TOKEN_VALIDITY", time.Hour),
		RefreshTokenValidity: getEnvDurationOrDefault("OAUTH_REFRESH_VALIDITY", 30*24*time.Hour),
		MaxExtendedValidity:  getEnvDurationOrDefault("OAUTH_MAX_EXTENDED_VALIDITY", 0),
		RefreshTokenPolicy: RefreshTokenIssuePolicy(
			getEnvOrDefault("OAUTH_REFRESH_POLICY", string(RefreshOfflineScopeBased)),
		),
		ClientsGroup:           getEnvOrDefault("OAUTH_CLIENTS_GROUP", "/oauth-clients"),
		UsersGroup:             getEnvOrDefault("OAUTH_USERS_GROUP", "/"),
		AllowWildcardReturnURI: getEnvOrDefault("OAUTH_ALLOW_WILDCARD_RETURN_URI", "false") == "true",
	}
}

// Validate checks the configuration is internally consistent and the signing
// credential actually fits the chosen algorithm. Every failure is a
// ConfigurationError: the endpoint must not activate on top of it.
func (c *Config) Validate() error {
	if c.Issuer == "" {
		return domain.Configf("issuer must be set")
	}
	if c.CodeTokenValidity <= 0 || c.AccessTokenValidity <= 0 || c.IDTokenValidity <= 0 {
		return domain.Configf("token validity periods must be positive")
	}

	switch c.RefreshTokenPolicy {
	case RefreshNever, RefreshAlways, RefreshOfflineScopeBased:
	default:
		return domain.Configf("unknown refresh token policy %q", c.RefreshTokenPolicy)
	}
	if c.RefreshTokenPolicy != RefreshNever && c.RefreshTokenValidity <= 0 {
		return domain.Configf("refresh token validity must be positive under policy %s", c.RefreshTokenPolicy)
	}

	seen := make(map[string]bool)
	for _, def := range c.Scopes {
		if def.Name == "" {
			return domain.Configf("scope definition with empty name")
		}
		if seen[def.Name] {
			return domain.Configf("duplicate scope definition %q", def.Name)
		}
		seen[def.Name] = true

		if c.RefreshTokenPolicy == RefreshOfflineScopeBased &&
			def.Name == "offline_access" && !def.Enabled {
			return domain.Configf(
				"offline_access scope is disabled while refresh policy is %s", RefreshOfflineScopeBased)
		}
	}

	if _, err := c.BuildSigner(); err != nil {
		return err
	}
	return nil
}

// BuildSigner constructs the token signer for this configuration. Key and
// algorithm compatibility problems surface here, at deploy time.
func (c *Config) BuildSigner() (jwtx.Signer, error) {
	signer, err := jwtx.NewSigner(c.SigningAlgorithm, c.SigningKeyID, c.SigningCredential, c.SigningSecret)
	if err != nil {
		return nil, &domain.ConfigurationError{
			Reason: fmt.Sprintf("signing credential unusable for %s", c.SigningAlgorithm),
			Err:    err,
		}
	}
	return signer, nil
}

// Seconds converts a validity period to the whole-second form stored in
// token records.
func Seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Fall back to integer seconds, the wire form used by the config files
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
