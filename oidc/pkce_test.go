package oidc

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodeVerifier(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		opts       []Option
		wantLen    int
		wantMethod ChallengeMethod
		wantIsErr  error
	}{
		{
			name:       "defaults",
			wantLen:    DefaultVerifierLength,
			wantMethod: S256,
		},
		{
			name:       "with-length",
			opts:       []Option{WithVerifierLength(MinVerifierLength)},
			wantLen:    MinVerifierLength,
			wantMethod: S256,
		},
		{
			name:       "with-method",
			opts:       []Option{WithChallengeMethod(S384)},
			wantLen:    DefaultVerifierLength,
			wantMethod: S384,
		},
		{
			name:      "too-short",
			opts:      []Option{WithVerifierLength(MinVerifierLength - 1)},
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "too-long",
			opts:      []Option{WithVerifierLength(MaxVerifierLength + 1)},
			wantIsErr: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewCodeVerifier(tt.opts...)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.Len(got.Verifier(), tt.wantLen)
			assert.Equal(tt.wantMethod, got.Method())
			assert.NotEmpty(got.Challenge())
		})
	}
}

func TestCreateCodeChallenge(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	want := base64.RawURLEncoding.EncodeToString(func() []byte {
		h := sha256.Sum256([]byte(verifier))
		return h[:]
	}())
	got, err := CreateCodeChallenge(S256, verifier)
	require.NoError(err)
	assert.Equal(want, got)

	_, err = CreateCodeChallenge(ChallengeMethod("plain"), verifier)
	require.Error(err)
	assert.True(errors.Is(err, ErrUnsupportedChallengeMethod))
}

func TestClient_AddCodeChallenge(t *testing.T) {
	t.Parallel()
	t.Run("not-configured", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testNewClient(t)
		_, err := c.AddCodeChallenge("st-1")
		require.Error(err)
		assert.True(errors.Is(err, ErrConfiguration))
	})
	t.Run("configured", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testNewClient(t, WithCodeChallenge(&CodeChallengeConfig{Method: S256}))

		args, err := c.AddCodeChallenge("st-1")
		require.NoError(err)
		assert.NotEmpty(args["code_challenge"])
		assert.Equal(string(S256), args["code_challenge_method"])

		verifier, err := c.CodeVerifier("st-1")
		require.NoError(err)
		want, err := CreateCodeChallenge(S256, verifier)
		require.NoError(err)
		assert.Equal(want, args["code_challenge"])
	})
	t.Run("no-stored-verifier", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testNewClient(t, WithCodeChallenge(&CodeChallengeConfig{Method: S256}))
		require.NoError(c.Sessions().Update("st-other", &Session{Nonce: "n-1"}))
		_, err := c.CodeVerifier("st-other")
		require.Error(err)
		assert.True(errors.Is(err, ErrMissingParameter))

		_, err = c.CodeVerifier("st-unknown")
		require.Error(err)
		assert.True(errors.Is(err, ErrNotFound))
	})
}
