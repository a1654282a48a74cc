package oidc

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_Get(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	store := NewSessionStore()

	_, err := store.Get("unknown")
	require.Error(err)
	assert.True(errors.Is(err, ErrNotFound))

	rec := NewRecord()
	rec.Set("client_id", "abc")
	require.NoError(store.Put("st-1", &Session{Request: rec}))

	got, err := store.Get("st-1")
	require.NoError(err)
	assert.Equal("abc", got.Request.GetString("client_id"))
}

func TestSessionStore_Update(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	store := NewSessionStore()

	// implicit creation
	require.NoError(store.Update("st-1", &Session{Nonce: "n-1"}))

	rec := NewRecord()
	rec.Set("scope", []string{"openid"})
	require.NoError(store.Update("st-1", &Session{Request: rec}))

	got, err := store.Get("st-1")
	require.NoError(err)
	assert.Equal("n-1", got.Nonce)
	assert.Equal([]string{"openid"}, got.Request.GetStrings("scope"))

	// partial update leaves the other fields alone
	require.NoError(store.Update("st-1", &Session{CodeVerifier: "v"}))
	got, err = store.Get("st-1")
	require.NoError(err)
	assert.Equal("n-1", got.Nonce)
	assert.Equal("v", got.CodeVerifier)
}

func TestSessionStore_GetToken(t *testing.T) {
	t.Parallel()
	valid := &Token{
		AccessToken: "at-valid",
		Expiry:      time.Now().Add(time.Hour),
		Scopes:      []string{"openid", "email"},
	}
	expired := &Token{
		AccessToken: "at-expired",
		Expiry:      time.Now().Add(-time.Hour),
		Scopes:      []string{"openid"},
	}

	tests := []struct {
		name      string
		seed      func(store *SessionStore)
		opts      []Option
		wantToken string
		wantIsErr error
	}{
		{
			name: "any-valid",
			seed: func(store *SessionStore) {
				_ = store.Update("st-1", &Session{Token: valid})
			},
			wantToken: "at-valid",
		},
		{
			name: "by-scope",
			seed: func(store *SessionStore) {
				_ = store.Update("st-1", &Session{Token: valid})
			},
			opts:      []Option{WithScope("email")},
			wantToken: "at-valid",
		},
		{
			name: "scope-from-issued-request",
			seed: func(store *SessionStore) {
				rec := NewRecord()
				rec.Set("scope", []string{"openid", "profile"})
				tk := &Token{AccessToken: "at-req", Expiry: time.Now().Add(time.Hour)}
				_ = store.Update("st-1", &Session{Request: rec, Token: tk})
			},
			opts:      []Option{WithScope("profile")},
			wantToken: "at-req",
		},
		{
			name: "expired-skipped",
			seed: func(store *SessionStore) {
				_ = store.Update("st-1", &Session{Token: expired})
			},
			wantIsErr: ErrNotFound,
		},
		{
			name: "scope-not-granted",
			seed: func(store *SessionStore) {
				_ = store.Update("st-1", &Session{Token: valid})
			},
			opts:      []Option{WithScope("admin")},
			wantIsErr: ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			store := NewSessionStore()
			tt.seed(store)
			got, err := store.GetToken(tt.opts...)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.Equal(tt.wantToken, string(got.AccessToken))
		})
	}
}

func TestSessionStore_IdToken(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	store := NewSessionStore()

	_, err := store.IdToken()
	require.Error(err)
	assert.True(errors.Is(err, ErrNotFound))

	// expired session still yields its id_token as a fallback
	require.NoError(store.Update("st-old", &Session{Token: &Token{
		AccessToken: "at",
		IdToken:     "idt-old",
		Expiry:      time.Now().Add(-time.Hour),
	}}))
	got, err := store.IdToken()
	require.NoError(err)
	assert.Equal(IdToken("idt-old"), got)

	// a valid session wins
	require.NoError(store.Update("st-new", &Session{Token: &Token{
		AccessToken: "at",
		IdToken:     "idt-new",
		Expiry:      time.Now().Add(time.Hour),
	}}))
	got, err = store.IdToken()
	require.NoError(err)
	assert.Equal(IdToken("idt-new"), got)
}
