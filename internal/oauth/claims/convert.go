package claims

import (
	"encoding/base64"
	"encoding/json"
	"strconv"

	"github.com/solsticeid/solstice/internal/oauth/domain"
)

// converter turns one attribute value into a claim value. Returning false
// drops the value.
type converter func(value string) (any, bool)

// converters is the closed registry of attribute syntaxes that have an OAuth
// claim representation. Attributes with any other syntax are silently
// excluded from claims.
var converters = map[domain.AttributeSyntax]converter{
	domain.SyntaxString:          convertString,
	domain.SyntaxEnum:            convertString,
	domain.SyntaxInteger:         convertInteger,
	domain.SyntaxFloat:           convertFloat,
	domain.SyntaxVerifiableEmail: convertVerifiableEmail,
	domain.SyntaxImage:           convertImage,
}

// Handled reports whether the attribute's syntax has a claim representation.
func Handled(attr domain.Attribute) bool {
	_, ok := converters[attr.Syntax]
	return ok
}

// BuildUserInfo constructs the user-info claim set for the given subject.
// Multi-valued attributes become a JSON array, single-valued attributes a
// scalar, zero-valued attributes contribute no claim.
func BuildUserInfo(subject string, attrs []domain.Attribute) map[string]any {
	userInfo := map[string]any{"sub": subject}

	for _, attr := range attrs {
		conv, ok := converters[attr.Syntax]
		if !ok {
			continue
		}

		values := make([]any, 0, len(attr.Values))
		for _, raw := range attr.Values {
			if v, ok := conv(raw); ok {
				values = append(values, v)
			}
		}

		switch len(values) {
		case 0:
			// nothing usable, no claim
		case 1:
			userInfo[attr.Name] = values[0]
		default:
			userInfo[attr.Name] = values
		}
	}

	return userInfo
}

func convertString(value string) (any, bool) {
	return value, true
}

func convertInteger(value string) (any, bool) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, false
	}
	return n, true
}

func convertFloat(value string) (any, bool) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, false
	}
	return f, true
}

// convertVerifiableEmail unwraps the engine's confirmation envelope and
// exposes only the bare address.
func convertVerifiableEmail(value string) (any, bool) {
	var envelope struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal([]byte(value), &envelope); err == nil && envelope.Value != "" {
		return envelope.Value, true
	}
	// Not an envelope, assume a plain address.
	return value, true
}

func convertImage(value string) (any, bool) {
	return base64.StdEncoding.EncodeToString([]byte(value)), true
}
