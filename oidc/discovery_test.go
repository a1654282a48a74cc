package oidc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderInfoService_RequestParameters(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	c := testNewClient(t)
	svc := NewProviderInfoService()

	req, err := svc.RequestParameters(c, nil)
	require.NoError(err)
	assert.Equal("GET", req.Method)
	assert.Equal(testIssuer+"/.well-known/openid-configuration", req.URL)
}

func TestProviderInfoService_ProcessResponse(t *testing.T) {
	t.Parallel()
	svc := NewProviderInfoService()

	t.Run("stores-and-matches", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testNewClient(t, WithClientPrefs(map[string]interface{}{
			"token_endpoint_auth_method": "client_secret_post",
		}))
		c.setProviderInfo(nil)

		require.NoError(svc.ProcessResponse(c, "", testProviderInfo()))

		assert.Equal(testIssuer+"/token", func() string {
			e, err := c.Endpoint("token_endpoint")
			require.NoError(err)
			return e
		}())
		assert.Equal("client_secret_post", c.BehaviourString("token_endpoint_auth_method"))
	})

	t.Run("trailing-slash-tolerated", func(t *testing.T) {
		require := require.New(t)
		c := testNewClient(t)
		info := testProviderInfo()
		info["issuer"] = testIssuer + "/"
		require.NoError(svc.ProcessResponse(c, "", info))
	})

	t.Run("issuer-mismatch", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testNewClient(t)
		info := testProviderInfo()
		info["issuer"] = "https://evil.example.com"

		err := svc.ProcessResponse(c, "", info)
		require.Error(err)
		assert.True(errors.Is(err, ErrInvalidIssuer))
	})

	t.Run("incomplete-document", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testNewClient(t)
		err := svc.ProcessResponse(c, "", map[string]interface{}{
			"issuer": testIssuer,
		})
		require.Error(err)
		assert.True(errors.Is(err, ErrMissingRequiredAttribute))
	})
}
