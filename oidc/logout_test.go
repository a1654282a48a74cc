package oidc

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSeedToken(t *testing.T, c *Client, state, idToken string) {
	t.Helper()
	require.New(t).NoError(c.Sessions().Update(state, &Session{Token: &Token{
		AccessToken: "at-1",
		IdToken:     IdToken(idToken),
		Expiry:      time.Now().Add(time.Hour),
	}}))
}

func TestCheckSessionService_Construct(t *testing.T) {
	t.Parallel()
	svc := NewCheckSessionService()

	t.Run("id-token-from-state", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testNewClient(t)
		testSeedToken(t, c, "st-1", "idt-1")

		rec, err := svc.Construct(c, nil, WithState("st-1"))
		require.NoError(err)
		assert.Equal("idt-1", rec.GetString("id_token"))
	})

	t.Run("id-token-from-any-session", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testNewClient(t)
		testSeedToken(t, c, "st-other", "idt-2")

		rec, err := svc.Construct(c, nil)
		require.NoError(err)
		assert.Equal("idt-2", rec.GetString("id_token"))
	})

	t.Run("no-id-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testNewClient(t)
		_, err := svc.Construct(c, nil)
		require.Error(err)
		assert.True(errors.Is(err, ErrMissingIdToken))
	})
}

func TestCheckIDService_Construct(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	c := testNewClient(t)
	testSeedToken(t, c, "st-1", "idt-1")
	svc := NewCheckIDService()

	rec, err := svc.Construct(c, nil, WithState("st-1"))
	require.NoError(err)
	assert.Equal("idt-1", rec.GetString("id_token"))
}

func TestEndSessionService(t *testing.T) {
	t.Parallel()
	svc := NewEndSessionService()

	t.Run("construct-defaults", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testNewClient(t, WithPostLogoutRedirectUris([]string{"https://rp.example.com/loggedout"}))
		testSeedToken(t, c, "st-1", "idt-1")

		rec, err := svc.Construct(c, nil, WithState("st-1"))
		require.NoError(err)
		assert.Equal("idt-1", rec.GetString("id_token_hint"))
		assert.Equal("https://rp.example.com/loggedout", rec.GetString("post_logout_redirect_uri"))
		assert.Equal("st-1", rec.GetString("state"))
	})

	t.Run("request-parameters", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testNewClient(t)
		testSeedToken(t, c, "st-1", "idt-1")

		req, err := svc.RequestParameters(c, nil, WithState("st-1"))
		require.NoError(err)
		assert.Equal("GET", req.Method)
		assert.Contains(req.URL, testIssuer+"/logout?")
		assert.Contains(req.URL, "id_token_hint=idt-1")
	})

	t.Run("no-id-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testNewClient(t)
		_, err := svc.Construct(c, nil)
		require.Error(err)
		assert.True(errors.Is(err, ErrMissingIdToken))
	})
}
