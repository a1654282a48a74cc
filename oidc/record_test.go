package oidc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Encode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		set  func(r *Record)
		want string
	}{
		{
			name: "insertion-order",
			set: func(r *Record) {
				r.Set("response_type", "code")
				r.Set("client_id", "abc")
				r.Set("state", "xyz")
			},
			want: "response_type=code&client_id=abc&state=xyz",
		},
		{
			name: "list-space-joined",
			set: func(r *Record) {
				r.Set("scope", []string{"openid", "email"})
			},
			want: "scope=openid+email",
		},
		{
			name: "reset-keeps-position",
			set: func(r *Record) {
				r.Set("a", "1")
				r.Set("b", "2")
				r.Set("a", "3")
			},
			want: "a=3&b=2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			r := NewRecord()
			tt.set(r)
			assert.Equal(tt.want, r.Encode())
		})
	}
}

func TestRecord_MarshalJSON(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	r := NewRecord()
	r.Set("redirect_uris", []string{"https://rp.example.com/callback"})
	r.Set("client_name", "example")
	got, err := r.MarshalJSON()
	require.NoError(err)
	assert.Equal(`{"redirect_uris":["https://rp.example.com/callback"],"client_name":"example"}`, string(got))
}

func TestRecord_GetStrings(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	r := NewRecord()
	r.Set("scalar", "code")
	r.Set("list", []string{"code", "id_token"})
	r.Set("mixed", []interface{}{"code", "id_token"})

	assert.Equal([]string{"code"}, r.GetStrings("scalar"))
	assert.Equal([]string{"code", "id_token"}, r.GetStrings("list"))
	assert.Equal([]string{"code", "id_token"}, r.GetStrings("mixed"))
	assert.Nil(r.GetStrings("missing"))
}

func TestRecord_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		set       func(r *Record)
		schema    Schema
		wantIsErr error
	}{
		{
			name: "valid",
			set: func(r *Record) {
				r.Set("grant_type", "authorization_code")
				r.Set("code", "c")
				r.Set("redirect_uri", testRedirectUri)
			},
			schema: accessTokenSchema,
		},
		{
			name: "missing-required",
			set: func(r *Record) {
				r.Set("grant_type", "authorization_code")
			},
			schema:    accessTokenSchema,
			wantIsErr: ErrMissingRequiredAttribute,
		},
		{
			name:   "empty-schema",
			set:    func(r *Record) {},
			schema: Schema{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			r := NewRecord()
			tt.set(r)
			err := r.Validate(tt.schema)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
		})
	}
}

func TestRecord_Clone(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	r := NewRecord()
	r.Set("client_id", "abc")
	cp := r.Clone()
	cp.Set("client_id", "other")
	cp.Set("extra", "1")
	assert.Equal("abc", r.GetString("client_id"))
	assert.False(r.Has("extra"))
}
