package claims

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solsticeid/solstice/internal/oauth/domain"
)

func TestExtractFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("separates filters from real scopes", func(t *testing.T) {
		cleaned, specs := ExtractFilters(ctx, []string{
			"openid",
			"claim_filter:group:staff",
			"profile",
			"claim_filter:group:admins",
			"claim_filter:dept:eng",
		})
		require.Equal(t, []string{"openid", "profile"}, cleaned)
		require.Equal(t, []domain.ClaimFilterSpec{
			{Attribute: "group", Values: []string{"staff", "admins"}},
			{Attribute: "dept", Values: []string{"eng"}},
		}, specs)
	})

	t.Run("drops malformed filters silently", func(t *testing.T) {
		cleaned, specs := ExtractFilters(ctx, []string{
			"claim_filter:novalue",
			"claim_filter::orphan",
			"openid",
		})
		require.Equal(t, []string{"openid"}, cleaned)
		require.Empty(t, specs)
	})

	t.Run("duplicate values collapse", func(t *testing.T) {
		_, specs := ExtractFilters(ctx, []string{
			"claim_filter:group:staff",
			"claim_filter:group:staff",
		})
		require.Equal(t, []string{"staff"}, specs[0].Values)
	})

	t.Run("empty value is legal", func(t *testing.T) {
		_, specs := ExtractFilters(ctx, []string{"claim_filter:group:"})
		require.Equal(t, []domain.ClaimFilterSpec{
			{Attribute: "group", Values: []string{""}},
		}, specs)
	})
}

func TestApplyFilters(t *testing.T) {
	t.Parallel()

	attrs := []domain.Attribute{
		{Name: "group", Syntax: domain.SyntaxString, Values: []string{"staff", "admins", "guests"}},
		{Name: "email", Syntax: domain.SyntaxString, Values: []string{"a@test"}},
	}
	specs := []domain.ClaimFilterSpec{
		{Attribute: "group", Values: []string{"staff", "admins"}},
	}

	t.Run("narrows matching attributes only", func(t *testing.T) {
		got := ApplyFilters(specs, attrs)
		require.Equal(t, []domain.Attribute{
			{Name: "group", Syntax: domain.SyntaxString, Values: []string{"staff", "admins"}},
			{Name: "email", Syntax: domain.SyntaxString, Values: []string{"a@test"}},
		}, got)
	})

	t.Run("drops attributes emptied by the filter", func(t *testing.T) {
		got := ApplyFilters([]domain.ClaimFilterSpec{
			{Attribute: "group", Values: []string{"nobody"}},
		}, attrs)
		require.Len(t, got, 1)
		require.Equal(t, "email", got[0].Name)
	})

	t.Run("idempotent", func(t *testing.T) {
		once := ApplyFilters(specs, attrs)
		twice := ApplyFilters(specs, once)
		require.Equal(t, once, twice)
	})

	t.Run("no specs is a pass-through", func(t *testing.T) {
		require.Equal(t, attrs, ApplyFilters(nil, attrs))
	})
}

func TestMergeFilters(t *testing.T) {
	t.Parallel()

	first := []domain.ClaimFilterSpec{
		{Attribute: "group", Values: []string{"staff"}},
		{Attribute: "dept", Values: []string{"eng"}},
	}
	second := []domain.ClaimFilterSpec{
		{Attribute: "group", Values: []string{"admins"}},
		{Attribute: "region", Values: []string{"eu"}},
	}

	merged := MergeFilters(first, second)
	require.Equal(t, []domain.ClaimFilterSpec{
		{Attribute: "group", Values: []string{"admins"}},
		{Attribute: "dept", Values: []string{"eng"}},
		{Attribute: "region", Values: []string{"eu"}},
	}, merged)

	// The merge copies; mutating it leaves the inputs alone.
	merged[1].Values[0] = "mutated"
	require.Equal(t, "eng", first[1].Values[0])
}
