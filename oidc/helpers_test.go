package oidc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testIssuer       = "https://provider.example.com"
	testClientId     = "test-rp"
	testClientSecret = ClientSecret("fido-dog-pound-pack-forever-and-ever-2024")
	testRedirectUri  = "https://rp.example.com/callback"
)

// testProviderInfo returns a minimal provider configuration document.
func testProviderInfo() map[string]interface{} {
	return map[string]interface{}{
		"issuer":                 testIssuer,
		"authorization_endpoint": testIssuer + "/authorize",
		"token_endpoint":         testIssuer + "/token",
		"userinfo_endpoint":      testIssuer + "/userinfo",
		"registration_endpoint":  testIssuer + "/register",
		"end_session_endpoint":   testIssuer + "/logout",
		"jwks_uri":               testIssuer + "/jwks",
		"response_types_supported": []interface{}{
			"code", "id_token", "code id_token",
		},
		"grant_types_supported": []interface{}{
			"authorization_code", "implicit", "refresh_token",
		},
		"token_endpoint_auth_methods_supported": []interface{}{
			"client_secret_basic", "client_secret_post", "private_key_jwt",
		},
		"id_token_signing_alg_values_supported": []interface{}{
			"RS256", "ES256",
		},
		"subject_types_supported": []interface{}{"public", "pairwise"},
	}
}

// testNewClient builds a client with a discovered provider, ready for
// request construction.
func testNewClient(t *testing.T, opt ...Option) *Client {
	t.Helper()
	require := require.New(t)
	cfg, err := NewConfig(testIssuer, testClientId, testClientSecret, []string{testRedirectUri}, opt...)
	require.NoError(err)
	c, err := NewClient(cfg, opt...)
	require.NoError(err)
	c.setProviderInfo(testProviderInfo())
	return c
}
