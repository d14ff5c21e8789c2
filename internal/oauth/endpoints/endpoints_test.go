package endpoints

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solsticeid/solstice/internal/oauth/domain"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.RegisterAuthzEndpoint("https://idp.test", "/oauth2/authorize"))
	require.NoError(t, r.RegisterTokenEndpoint("https://idp.test", "/oauth2/token"))

	t.Run("lookup returns registered paths", func(t *testing.T) {
		path, err := r.LookupAuthzEndpoint("https://idp.test")
		require.NoError(t, err)
		require.Equal(t, "/oauth2/authorize", path)

		path, err = r.LookupTokenEndpoint("https://idp.test")
		require.NoError(t, err)
		require.Equal(t, "/oauth2/token", path)
	})

	t.Run("duplicate registration is a configuration error", func(t *testing.T) {
		err := r.RegisterAuthzEndpoint("https://idp.test", "/elsewhere")
		var cfgErr *domain.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)

		err = r.RegisterTokenEndpoint("https://idp.test", "/elsewhere")
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("unknown issuer fails lookup", func(t *testing.T) {
		_, err := r.LookupAuthzEndpoint("https://other.test")
		require.Error(t, err)
		_, err = r.LookupTokenEndpoint("https://other.test")
		require.Error(t, err)
	})

	t.Run("issuers are independent", func(t *testing.T) {
		require.NoError(t, r.RegisterAuthzEndpoint("https://second.test", "/authorize"))
		path, err := r.LookupAuthzEndpoint("https://second.test")
		require.NoError(t, err)
		require.Equal(t, "/authorize", path)
	})
}
