package domain

import (
	"fmt"
	"slices"
	"strings"
)

// GrantFlow identifies the OAuth2 grant flow selected for a request.
type GrantFlow string

const (
	FlowAuthorizationCode     GrantFlow = "authorizationCode"
	FlowImplicit              GrantFlow = "implicit"
	FlowOpenIDHybrid          GrantFlow = "openidHybrid"
	FlowResourceOwnerPassword GrantFlow = "resourceOwnerPassword"
	FlowClientCredentials     GrantFlow = "clientCredentials"
)

// ParseGrantFlow maps an attribute value to a GrantFlow.
func ParseGrantFlow(s string) (GrantFlow, error) {
	switch GrantFlow(strings.TrimSpace(s)) {
	case FlowAuthorizationCode:
		return FlowAuthorizationCode, nil
	case FlowImplicit:
		return FlowImplicit, nil
	case FlowOpenIDHybrid:
		return FlowOpenIDHybrid, nil
	case FlowResourceOwnerPassword:
		return FlowResourceOwnerPassword, nil
	case FlowClientCredentials:
		return FlowClientCredentials, nil
	default:
		return "", fmt.Errorf("unknown grant flow %q", s)
	}
}

// ClientType distinguishes confidential from public OAuth clients.
type ClientType string

const (
	ClientConfidential ClientType = "CONFIDENTIAL"
	ClientPublic       ClientType = "PUBLIC"
)

// Response type values from RFC 6749 / OIDC Core.
const (
	ResponseTypeCode    = "code"
	ResponseTypeToken   = "token"
	ResponseTypeIDToken = "id_token"
)

// ResponseType is the parsed set of response type values from a request.
type ResponseType []string

// ParseResponseType splits the space-delimited wire form.
func ParseResponseType(s string) ResponseType {
	return ResponseType(strings.Fields(s))
}

func (rt ResponseType) Contains(value string) bool {
	return slices.Contains(rt, value)
}

// Only reports whether the response type consists of exactly the one value.
func (rt ResponseType) Only(value string) bool {
	return len(rt) == 1 && rt[0] == value
}

// String returns the space-delimited wire form.
func (rt ResponseType) String() string {
	return strings.Join(rt, " ")
}
