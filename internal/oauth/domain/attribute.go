package domain

import "slices"

// AttributeSyntax tags the value syntax of a resolved attribute. The claim
// mapping layer only exposes attributes whose syntax has a registered
// converter; anything else is silently excluded from claims.
type AttributeSyntax string

const (
	SyntaxString          AttributeSyntax = "string"
	SyntaxInteger         AttributeSyntax = "integer"
	SyntaxFloat           AttributeSyntax = "floatingPoint"
	SyntaxEnum            AttributeSyntax = "enumeration"
	SyntaxVerifiableEmail AttributeSyntax = "verifiableEmail"
	SyntaxImage           AttributeSyntax = "image"
)

// Attribute is a resolved user or client attribute handed to the core by the
// external attribute-resolution engine.
type Attribute struct {
	Name   string
	Syntax AttributeSyntax
	Values []string
}

// WithValues returns a copy carrying the given values.
func (a Attribute) WithValues(values []string) Attribute {
	cp := a
	cp.Values = values
	return cp
}

// Names of the system attributes the validator reads from a client's
// resolved attribute map.
const (
	AttrAllowedGrantFlows = "sys:oauth:allowedGrantFlows"
	AttrAllowedReturnURI  = "sys:oauth:allowedReturnURI"
	AttrAllowedScopes     = "sys:oauth:allowedScopes"
	AttrClientName        = "sys:oauth:clientName"
	AttrClientLogo        = "sys:oauth:clientLogo"
	AttrClientType        = "sys:oauth:clientType"
	AttrPerClientGroup    = "sys:oauth:groupForClient"
)

// ClientRecord is the read-only view of an OAuth client computed per request
// from the external attribute-resolution collaborator. It is never cached
// across requests.
type ClientRecord struct {
	Username   string
	EntityID   int64
	Groups     []string
	Attributes map[string]Attribute
}

func (c ClientRecord) attr(name string) (Attribute, bool) {
	a, ok := c.Attributes[name]
	return a, ok
}

func (c ClientRecord) firstValue(name string) string {
	if a, ok := c.attr(name); ok && len(a.Values) > 0 {
		return a.Values[0]
	}
	return ""
}

// Name returns the client's display name, falling back to the username.
func (c ClientRecord) Name() string {
	if name := c.firstValue(AttrClientName); name != "" {
		return name
	}
	return c.Username
}

// Logo returns the raw client logo bytes, if configured.
func (c ClientRecord) Logo() []byte {
	if v := c.firstValue(AttrClientLogo); v != "" {
		return []byte(v)
	}
	return nil
}

// Group returns the per-client users group override, or "" when the server
// wide group applies.
func (c ClientRecord) Group() string {
	return c.firstValue(AttrPerClientGroup)
}

// AllowedReturnURIs returns the registered redirect URIs in declaration
// order.
func (c ClientRecord) AllowedReturnURIs() []string {
	if a, ok := c.attr(AttrAllowedReturnURI); ok {
		return slices.Clone(a.Values)
	}
	return nil
}

// Type returns the declared client type, defaulting to confidential.
func (c ClientRecord) Type() ClientType {
	if v := c.firstValue(AttrClientType); ClientType(v) == ClientPublic {
		return ClientPublic
	}
	return ClientConfidential
}

// MemberOf reports whether the client is a member of the given group path.
func (c ClientRecord) MemberOf(group string) bool {
	return slices.Contains(c.Groups, group)
}
