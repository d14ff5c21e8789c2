// Package claims narrows resolved attributes according to claim_filter
// pseudo-scopes and converts attributes into OAuth/OIDC claims.
package claims

import (
	"context"
	"slices"
	"strings"

	"github.com/solsticeid/solstice/internal/oauth/domain"
	"github.com/solsticeid/solstice/pkg/slogx"
)

// FilterPrefix marks a scope entry as a claim value filter rather than a
// real scope: claim_filter:<attribute>:<value>.
const FilterPrefix = "claim_filter:"

// ExtractFilters strips claim_filter: pseudo-scopes from the requested scope
// list and parses them into filter specs. Malformed entries are dropped with
// a diagnostic, never an error; multiple filters naming the same attribute
// accumulate into one spec with a value set.
func ExtractFilters(ctx context.Context, requestedScopes []string) ([]string, []domain.ClaimFilterSpec) {
	log := slogx.FromContext(ctx)

	cleaned := make([]string, 0, len(requestedScopes))
	var specs []domain.ClaimFilterSpec
	index := make(map[string]int)

	for _, s := range requestedScopes {
		if !strings.HasPrefix(s, FilterPrefix) {
			cleaned = append(cleaned, s)
			continue
		}

		rest := s[len(FilterPrefix):]
		name, value, ok := strings.Cut(rest, ":")
		if !ok || name == "" {
			log.Info("dropping malformed claim filter from scope", "scope", s)
			continue
		}

		if i, seen := index[name]; seen {
			if !specs[i].Allows(value) {
				specs[i].Values = append(specs[i].Values, value)
			}
			continue
		}
		index[name] = len(specs)
		specs = append(specs, domain.ClaimFilterSpec{Attribute: name, Values: []string{value}})
	}

	return cleaned, specs
}

// ApplyFilters narrows attribute values to those each matching filter spec
// allows. Attributes without a matching spec pass through unchanged; an
// attribute whose value list empties out is dropped entirely rather than
// emitted empty. Applying the same specs twice yields the same result.
func ApplyFilters(specs []domain.ClaimFilterSpec, attrs []domain.Attribute) []domain.Attribute {
	if len(specs) == 0 {
		return attrs
	}

	byAttr := make(map[string]domain.ClaimFilterSpec, len(specs))
	for _, spec := range specs {
		byAttr[spec.Attribute] = spec
	}

	out := make([]domain.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		spec, ok := byAttr[attr.Name]
		if !ok {
			out = append(out, attr)
			continue
		}

		var kept []string
		for _, v := range attr.Values {
			if spec.Allows(v) {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			continue
		}
		out = append(out, attr.WithValues(kept))
	}
	return out
}

// MergeFilters combines two filtering stages. A later-stage spec fully
// replaces an earlier-stage spec naming the same attribute; there is no
// value-set union. Plain last-write-wins, nothing more.
func MergeFilters(first, second []domain.ClaimFilterSpec) []domain.ClaimFilterSpec {
	merged := make([]domain.ClaimFilterSpec, 0, len(first)+len(second))
	index := make(map[string]int)

	for _, spec := range first {
		index[spec.Attribute] = len(merged)
		merged = append(merged, cloneSpec(spec))
	}
	for _, spec := range second {
		if i, ok := index[spec.Attribute]; ok {
			merged[i] = cloneSpec(spec)
			continue
		}
		index[spec.Attribute] = len(merged)
		merged = append(merged, cloneSpec(spec))
	}
	return merged
}

func cloneSpec(s domain.ClaimFilterSpec) domain.ClaimFilterSpec {
	return domain.ClaimFilterSpec{Attribute: s.Attribute, Values: slices.Clone(s.Values)}
}
