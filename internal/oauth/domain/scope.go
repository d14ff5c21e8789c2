package domain

import "slices"

// ScopeDefinition describes a single scope the server knows about, either
// configured explicitly or contributed by the system scope set. Immutable
// value object; updates produce a new instance.
type ScopeDefinition struct {
	Name        string
	Description string
	// Attributes lists, in order, the attribute names this scope exposes.
	Attributes []string
	Enabled    bool
	// Pattern marks Name as a regular expression rather than a literal.
	Pattern bool
}

// WithEnabled returns a copy with the enabled flag replaced.
func (d ScopeDefinition) WithEnabled(enabled bool) ScopeDefinition {
	cp := d
	cp.Enabled = enabled
	cp.Attributes = slices.Clone(d.Attributes)
	return cp
}

// RequestedScope pairs a scope string from the request with the catalog
// definition that satisfied it. Produced once per validated request and
// consumed only within that request's lifetime.
type RequestedScope struct {
	Scope      string
	Definition ScopeDefinition
	// Wildcard records that the scope string was itself a pattern and was
	// granted via subset containment against a pattern definition.
	Wildcard bool
}

// ClaimFilterSpec narrows which values of an attribute may be disclosed.
// Parsed from claim_filter: pseudo-scopes; values are a set, order is
// irrelevant.
type ClaimFilterSpec struct {
	Attribute string   `json:"attribute"`
	Values    []string `json:"values"`
}

// Allows reports whether v is in the spec's allowed value set.
func (s ClaimFilterSpec) Allows(v string) bool {
	return slices.Contains(s.Values, v)
}
