package oidc

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtectRequestObject(t *testing.T) {
	t.Parallel()

	rec := func() *Record {
		r := NewRecord()
		r.Set("response_type", "code")
		r.Set("client_id", testClientId)
		return r
	}

	t.Run("unsigned", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		obj, err := ProtectRequestObject(rec(), nil, "none")
		require.NoError(err)

		parts := strings.Split(obj, ".")
		require.Len(parts, 3)
		assert.Empty(parts[2])

		header, err := base64.RawURLEncoding.DecodeString(parts[0])
		require.NoError(err)
		assert.Contains(string(header), `"alg":"none"`)

		payload, err := base64.RawURLEncoding.DecodeString(parts[1])
		require.NoError(err)
		var claims map[string]interface{}
		require.NoError(json.Unmarshal(payload, &claims))
		assert.Equal(testClientId, claims["client_id"])
	})

	t.Run("signed", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, priv := TestGenerateRSAKeys(t, "sig-1")
		kr := NewKeyring()
		kr.Add("", priv)

		obj, err := ProtectRequestObject(rec(), kr, "RS256")
		require.NoError(err)
		claims, err := kr.VerifySignature(obj, "")
		require.NoError(err)
		assert.Equal(testClientId, claims["client_id"])
	})

	t.Run("signed-no-key", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, err := ProtectRequestObject(rec(), NewKeyring(), "RS256")
		require.Error(err)
		assert.True(errors.Is(err, ErrNotFound))
	})

	t.Run("encrypted", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		pub, _ := TestGenerateRSAKeys(t, "enc-1")
		pub.Use = "enc"
		kr := NewKeyring()
		kr.Add(testIssuer, pub)

		obj, err := ProtectRequestObject(rec(), kr, "none",
			WithEncryption("RSA-OAEP", "A128CBC-HS256"),
			WithTarget(testIssuer),
		)
		require.NoError(err)
		// compact JWE has five parts
		assert.Len(strings.Split(obj, "."), 5)
	})

	t.Run("encrypted-missing-enc", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, err := ProtectRequestObject(rec(), NewKeyring(), "none",
			WithEncryption("RSA-OAEP", ""),
			WithTarget(testIssuer),
		)
		require.Error(err)
		assert.True(errors.Is(err, ErrMissingRequiredAttribute))
	})

	t.Run("encrypted-missing-target", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, err := ProtectRequestObject(rec(), NewKeyring(), "none",
			WithEncryption("RSA-OAEP", "A128CBC-HS256"),
		)
		require.Error(err)
		assert.True(errors.Is(err, ErrMissingRequiredAttribute))
	})

	t.Run("nil-record", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, err := ProtectRequestObject(nil, nil, "none")
		require.Error(err)
		assert.True(errors.Is(err, ErrNilParameter))
	})
}

func TestConstructRequestUri(t *testing.T) {
	t.Parallel()

	t.Run("fresh-name", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		dir := t.TempDir()
		filename, webname, err := constructRequestUri(dir, "https://rp.example.com/requests/")
		require.NoError(err)
		assert.Equal(dir, filepath.Dir(filename))
		assert.True(strings.HasSuffix(filename, ".jwt"))
		assert.Equal("https://rp.example.com/requests/"+filepath.Base(filename), webname)
	})

	t.Run("collision-retried", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		dir := t.TempDir()
		first, _, err := constructRequestUri(dir, "https://rp.example.com/requests")
		require.NoError(err)
		require.NoError(os.WriteFile(first, []byte("taken"), 0o644))

		second, _, err := constructRequestUri(dir, "https://rp.example.com/requests")
		require.NoError(err)
		assert.NotEqual(first, second)
	})

	t.Run("not-configured", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, _, err := constructRequestUri("", "")
		require.Error(err)
		assert.True(errors.Is(err, ErrConfiguration))
	})
}
