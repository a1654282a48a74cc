package oidc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalClaims(t *testing.T) {
	t.Parallel()

	t.Run("unmarshals", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		rec := NewRecord()
		rec.Set("iss", testIssuer)
		rec.Set("sub", "alice")
		rec.Set("nonce", "n-1")
		raw, err := unsecuredJWT(rec)
		require.NoError(err)

		var claims map[string]interface{}
		require.NoError(UnmarshalClaims(raw, &claims))
		assert.Equal(testIssuer, claims["iss"])
		assert.Equal("alice", claims["sub"])
		assert.Equal("n-1", claims["nonce"])
	})

	t.Run("not-a-jwt", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		var claims map[string]interface{}
		err := UnmarshalClaims("just-one-part", &claims)
		require.Error(err)
		assert.True(errors.Is(err, ErrInvalidParameter))
	})
}
