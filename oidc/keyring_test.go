package oidc

import (
	"errors"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyring_SigningKeys(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	_, rsaPriv := TestGenerateRSAKeys(t, "rsa-1")
	_, ecPriv := TestGenerateECKeys(t, "ec-1")
	kr := NewKeyring()
	kr.Add("", rsaPriv, ecPriv)

	got, err := kr.SigningKeys("RS256")
	require.NoError(err)
	require.Len(got, 1)
	assert.Equal("rsa-1", got[0].KeyID)

	got, err = kr.SigningKeys("ES256")
	require.NoError(err)
	require.Len(got, 1)
	assert.Equal("ec-1", got[0].KeyID)

	got, err = kr.SigningKeys("RS256", WithKeyId("rsa-1"))
	require.NoError(err)
	assert.Len(got, 1)

	_, err = kr.SigningKeys("RS256", WithKeyId("rsa-2"))
	require.Error(err)
	assert.True(errors.Is(err, ErrNotFound))

	_, err = kr.SigningKeys("EdDSA")
	require.Error(err)
	assert.True(errors.Is(err, ErrNotFound))
}

func TestKeyring_EncryptionKeys(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	pub, _ := TestGenerateRSAKeys(t, "enc-1")
	pub.Use = "enc"
	kr := NewKeyring()
	kr.Add(testIssuer, pub)

	got, err := kr.EncryptionKeys("RSA-OAEP", testIssuer)
	require.NoError(err)
	require.Len(got, 1)
	assert.Equal("enc-1", got[0].KeyID)

	_, err = kr.EncryptionKeys("RSA-OAEP", "")
	require.Error(err)
	assert.True(errors.Is(err, ErrInvalidParameter))

	_, err = kr.EncryptionKeys("RSA-OAEP", "https://other.example.com")
	require.Error(err)
	assert.True(errors.Is(err, ErrNotFound))
}

func TestKeyring_VerifySignature(t *testing.T) {
	t.Parallel()
	const owner = "https://provider.example.com"
	pub, priv := TestGenerateRSAKeys(t, "sig-1")

	t.Run("verifies", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		kr := NewKeyring()
		kr.Add(owner, pub)

		raw := TestSignJWT(t, priv, "RS256", jwt.Claims{
			Issuer:   owner,
			Subject:  "alice",
			IssuedAt: jwt.NewNumericDate(time.Now()),
		}, nil)
		claims, err := kr.VerifySignature(raw, owner)
		require.NoError(err)
		assert.Equal("alice", claims["sub"])
	})

	t.Run("private-key-verifies-too", func(t *testing.T) {
		require := require.New(t)
		kr := NewKeyring()
		kr.Add(owner, priv)

		raw := TestSignJWT(t, priv, "RS256", jwt.Claims{Subject: "alice"}, nil)
		_, err := kr.VerifySignature(raw, owner)
		require.NoError(err)
	})

	t.Run("default-test-claims", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		kr := NewKeyring()
		kr.Add(owner, pub)

		raw := testDefaultJWT(t, priv, "RS256", "n-1", map[string]interface{}{"email": "alice@example.com"})
		claims, err := kr.VerifySignature(raw, owner)
		require.NoError(err)
		assert.Equal("n-1", claims["nonce"])
		assert.Equal("alice@example.com", claims["email"])
	})

	t.Run("wrong-key", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		otherPub, _ := TestGenerateRSAKeys(t, "sig-2")
		kr := NewKeyring()
		kr.Add(owner, otherPub)

		raw := TestSignJWT(t, priv, "RS256", jwt.Claims{Subject: "alice"}, nil)
		_, err := kr.VerifySignature(raw, owner)
		require.Error(err)
		assert.True(errors.Is(err, ErrInvalidParameter))
	})

	t.Run("unknown-owner", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		kr := NewKeyring()
		raw := TestSignJWT(t, priv, "RS256", jwt.Claims{Subject: "alice"}, nil)
		_, err := kr.VerifySignature(raw, "https://nobody.example.com")
		require.Error(err)
		assert.True(errors.Is(err, ErrNotFound))
	})
}

func TestAlgKeyType(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	tests := map[string]string{
		"RS256":        "RSA",
		"PS384":        "RSA",
		"RSA-OAEP-256": "RSA",
		"ES256":        "EC",
		"ECDH-ES":      "EC",
		"HS512":        "oct",
		"A128KW":       "oct",
		"dir":          "oct",
		"EdDSA":        "OKP",
		"none":         "",
		"":             "",
	}
	for alg, want := range tests {
		assert.Equalf(want, AlgKeyType(alg), "alg %q", alg)
	}
}
