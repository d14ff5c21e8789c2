package domain

import (
	"encoding/json"
	"slices"
)

// PKCSInfo carries the PKCE challenge recorded with an authorization code.
type PKCSInfo struct {
	CodeChallenge       string `json:"codeChallenge,omitempty"`
	CodeChallengeMethod string `json:"codeChallengeMethod,omitempty"`
}

// TokenRecord is the internal server-side state persisted under each issued
// code, access and refresh token value. The JSON field names are a
// compatibility surface: records written by older versions must keep
// parsing, so every field is optional on deserialization.
type TokenRecord struct {
	UserInfo                 string            `json:"userInfo,omitempty"`
	OpenidInfo               string            `json:"openidInfo,omitempty"`
	AuthzCode                string            `json:"authzCode,omitempty"`
	AccessToken              string            `json:"accessToken,omitempty"`
	RefreshToken             string            `json:"refreshToken,omitempty"`
	FirstRefreshRollingToken string            `json:"firstRefreshRollingToken,omitempty"`
	EffectiveScope           []string          `json:"effectiveScope,omitempty"`
	RequestedScope           []string          `json:"requestedScope,omitempty"`
	ClientEntityID           int64             `json:"clientEntityId,omitempty"`
	RedirectURI              string            `json:"redirectUri,omitempty"`
	Subject                  string            `json:"subject,omitempty"`
	ClientName               string            `json:"clientName,omitempty"`
	ClientUsername           string            `json:"clientUsername,omitempty"`
	MaxExtendedValidity      int64             `json:"maxExtendedValidity,omitempty"`
	TokenValidity            int64             `json:"tokenValidity,omitempty"`
	ResponseType             string            `json:"responseType,omitempty"`
	Audience                 []string          `json:"audience,omitempty"`
	IssuerURI                string            `json:"issuerUri,omitempty"`
	ClientType               ClientType        `json:"clientType,omitempty"`
	PKCSInfo                 *PKCSInfo         `json:"pkcsInfo,omitempty"`
	AttributeValueFilters    []ClaimFilterSpec `json:"attributeValueFilters,omitempty"`
}

// Marshal serializes the record as the persisted token payload.
func (r *TokenRecord) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// ParseTokenRecord deserializes a persisted payload. Absent fields stay at
// their zero values.
func ParseTokenRecord(payload []byte) (*TokenRecord, error) {
	var r TokenRecord
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Clone copy-constructs the record for token rotation, preserving lineage
// fields while letting the caller replace the rotated values.
func (r *TokenRecord) Clone() *TokenRecord {
	cp := *r
	cp.EffectiveScope = slices.Clone(r.EffectiveScope)
	cp.RequestedScope = slices.Clone(r.RequestedScope)
	cp.Audience = slices.Clone(r.Audience)
	if r.PKCSInfo != nil {
		pk := *r.PKCSInfo
		cp.PKCSInfo = &pk
	}
	cp.AttributeValueFilters = make([]ClaimFilterSpec, len(r.AttributeValueFilters))
	for i, f := range r.AttributeValueFilters {
		cp.AttributeValueFilters[i] = ClaimFilterSpec{
			Attribute: f.Attribute,
			Values:    slices.Clone(f.Values),
		}
	}
	if len(r.AttributeValueFilters) == 0 {
		cp.AttributeValueFilters = nil
	}
	return &cp
}
