package oidc

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNewToken(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	tk, err := NewToken("idt-1", &oauth2.Token{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		Expiry:       time.Now().Add(time.Hour),
	}, WithScopes("openid", "email"))
	require.NoError(err)
	assert.Equal(IdToken("idt-1"), tk.IdToken)
	assert.Equal(AccessToken("at-1"), tk.AccessToken)
	assert.Equal([]string{"openid", "email"}, tk.Scopes)
	assert.True(tk.Valid())
	assert.False(tk.Expired())

	_, err = NewToken("", nil)
	require.Error(err)
	assert.True(errors.Is(err, ErrInvalidParameter))
}

func TestToken_Expired(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	assert.True((&Token{AccessToken: "at", Expiry: time.Now().Add(-time.Minute)}).Expired())
	assert.True((&Token{AccessToken: "at", Expiry: time.Now().Add(5 * time.Second)}).Expired())
	assert.False((&Token{AccessToken: "at", Expiry: time.Now().Add(time.Minute)}).Expired())
	// zero expiry means no expiry
	assert.False((&Token{AccessToken: "at"}).Expired())

	var nilToken *Token
	assert.False(nilToken.Valid())
	assert.False((&Token{}).Valid())
}

func TestTokenRedaction(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	assert.Equal(RedactedAccessToken, AccessToken("secret").String())
	assert.Equal(RedactedRefreshToken, RefreshToken("secret").String())
	assert.Equal(RedactedIdToken, IdToken("secret").String())
	assert.Equal(RedactedClientSecret, ClientSecret("secret").String())

	got, err := json.Marshal(map[string]interface{}{
		"access_token":  AccessToken("secret"),
		"client_secret": ClientSecret("secret"),
	})
	require.NoError(err)
	assert.NotContains(string(got), "secret")
}
