package claims

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solsticeid/solstice/internal/oauth/domain"
)

func TestBuildUserInfo(t *testing.T) {
	t.Parallel()

	t.Run("always carries the subject", func(t *testing.T) {
		got := BuildUserInfo("alice", nil)
		require.Equal(t, map[string]any{"sub": "alice"}, got)
	})

	t.Run("single value becomes a scalar, multiple an array", func(t *testing.T) {
		got := BuildUserInfo("alice", []domain.Attribute{
			{Name: "name", Syntax: domain.SyntaxString, Values: []string{"Alice"}},
			{Name: "group", Syntax: domain.SyntaxString, Values: []string{"staff", "admins"}},
		})
		require.Equal(t, "Alice", got["name"])
		require.Equal(t, []any{"staff", "admins"}, got["group"])
	})

	t.Run("numeric syntaxes convert, bad values drop", func(t *testing.T) {
		got := BuildUserInfo("alice", []domain.Attribute{
			{Name: "age", Syntax: domain.SyntaxInteger, Values: []string{"42"}},
			{Name: "score", Syntax: domain.SyntaxFloat, Values: []string{"1.5"}},
			{Name: "bad", Syntax: domain.SyntaxInteger, Values: []string{"not-a-number"}},
		})
		require.Equal(t, int64(42), got["age"])
		require.Equal(t, 1.5, got["score"])
		require.NotContains(t, got, "bad")
	})

	t.Run("verifiable email unwraps the envelope", func(t *testing.T) {
		got := BuildUserInfo("alice", []domain.Attribute{
			{Name: "email", Syntax: domain.SyntaxVerifiableEmail,
				Values: []string{`{"value":"a@test","confirmationData":{"confirmed":true}}`}},
			{Name: "alt", Syntax: domain.SyntaxVerifiableEmail, Values: []string{"plain@test"}},
		})
		require.Equal(t, "a@test", got["email"])
		require.Equal(t, "plain@test", got["alt"])
	})

	t.Run("images are base64 encoded", func(t *testing.T) {
		got := BuildUserInfo("alice", []domain.Attribute{
			{Name: "photo", Syntax: domain.SyntaxImage, Values: []string{"\x89PNG"}},
		})
		require.Equal(t, base64.StdEncoding.EncodeToString([]byte("\x89PNG")), got["photo"])
	})

	t.Run("unhandled syntax contributes no claim", func(t *testing.T) {
		got := BuildUserInfo("alice", []domain.Attribute{
			{Name: "odd", Syntax: "customSyntax", Values: []string{"x"}},
		})
		require.NotContains(t, got, "odd")
		require.False(t, Handled(domain.Attribute{Syntax: "customSyntax"}))
	})
}
