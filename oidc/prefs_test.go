package oidc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchPreferences(t *testing.T) {
	t.Parallel()
	t.Run("scalar-and-list", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testNewClient(t, WithClientPrefs(map[string]interface{}{
			"token_endpoint_auth_method":   "client_secret_post",
			"id_token_signed_response_alg": []string{"ES256", "RS256"},
			"response_types":               []string{"code id_token", "code"},
			"subject_type":                 []string{"pairwise", "public"},
		}))

		require.NoError(MatchPreferences(c, nil))

		got := c.Behaviours()
		assert.Equal("client_secret_post", got["token_endpoint_auth_method"])
		// scalar-typed field takes the first supported declared value
		assert.Equal("ES256", got["id_token_signed_response_alg"])
		// list-typed field keeps declared order, filtered to supported
		assert.Equal([]string{"code id_token", "code"}, got["response_types"])
		assert.Equal("pairwise", got["subject_type"])
	})

	t.Run("provider-silent-defaults", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testNewClient(t, WithClientPrefs(map[string]interface{}{
			"token_endpoint_auth_method":   "private_key_jwt",
			"id_token_signed_response_alg": "ES512",
			"default_acr_values":           []string{"loa-2"},
		}))
		info := map[string]interface{}{"issuer": testIssuer}

		require.NoError(MatchPreferences(c, info))

		got := c.Behaviours()
		assert.Equal("client_secret_basic", got["token_endpoint_auth_method"])
		assert.Equal("RS256", got["id_token_signed_response_alg"])
		// list-typed capability with no default resolves to an empty list
		assert.Equal([]string{}, got["default_acr_values"])
	})

	t.Run("unmatched-is-configuration-error", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testNewClient(t, WithClientPrefs(map[string]interface{}{
			"token_endpoint_auth_method": "tls_client_auth",
		}))

		err := MatchPreferences(c, nil)
		require.Error(err)
		assert.True(errors.Is(err, ErrConfiguration))
		assert.Contains(err.Error(), "token_endpoint_auth_method")
	})

	t.Run("unknown-pref-copied-verbatim", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testNewClient(t, WithClientPrefs(map[string]interface{}{
			"client_name":     []string{"My RP"},
			"contacts":        []string{"ops@rp.example.com"},
			"custom_metadata": "anything",
		}))

		require.NoError(MatchPreferences(c, nil))

		got := c.Behaviours()
		// one-element list collapses for a scalar-typed schema field
		assert.Equal("My RP", got["client_name"])
		// list-typed schema field keeps the list
		assert.Equal([]string{"ops@rp.example.com"}, got["contacts"])
		assert.Equal("anything", got["custom_metadata"])
	})

	t.Run("idempotent", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testNewClient(t, WithClientPrefs(map[string]interface{}{
			"token_endpoint_auth_method": "client_secret_basic",
			"response_types":             []string{"code"},
		}))

		require.NoError(MatchPreferences(c, nil))
		first := c.Behaviours()
		require.NoError(MatchPreferences(c, nil))
		assert.Equal(first, c.Behaviours())
	})

	t.Run("nil-client", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		err := MatchPreferences(nil, nil)
		require.Error(err)
		assert.True(errors.Is(err, ErrNilParameter))
	})
}
