package oidc

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

const expirySkew = 10 * time.Second

// AccessToken is an oauth access_token
type AccessToken string

// RedactedAccessToken is the redacted string or json for an oauth access_token
const RedactedAccessToken = "[REDACTED: access_token]"

// String will redact the token
func (t AccessToken) String() string {
	return RedactedAccessToken
}

// MarshalJSON will redact the token
func (t AccessToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedAccessToken)
}

// RefreshToken is an oauth refresh_token
type RefreshToken string

// RedactedRefreshToken is the redacted string or json for an oauth refresh_token
const RedactedRefreshToken = "[REDACTED: refresh_token]"

// String will redact the token
func (t RefreshToken) String() string {
	return RedactedRefreshToken
}

// MarshalJSON will redact the token
func (t RefreshToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedRefreshToken)
}

// Token represents the tokens issued for one request state: an oauth2
// access_token/refresh_token pair and an optional oidc id_token. Scopes
// records the scopes the token was granted for, which is used when a stored
// token is looked up by scope.
type Token struct {
	RefreshToken RefreshToken
	AccessToken  AccessToken
	IdToken      IdToken
	Expiry       time.Time
	Scopes       []string
}

// NewToken creates a Token from an optional id_token and an oauth2 token.
// Supported options: WithScopes
func NewToken(idToken IdToken, t *oauth2.Token, opt ...Option) (*Token, error) {
	const op = "oidc.NewToken"
	opts := getTokenOpts(opt...)
	if idToken == "" && t == nil {
		return nil, fmt.Errorf("%s: neither id_token nor oauth2 token provided: %w", op, ErrInvalidParameter)
	}
	tk := &Token{
		IdToken: idToken,
		Scopes:  opts.withScopes,
	}
	if t != nil {
		tk.AccessToken = AccessToken(t.AccessToken)
		tk.RefreshToken = RefreshToken(t.RefreshToken)
		tk.Expiry = t.Expiry
	}
	return tk, nil
}

// Expired returns true if the token's access token is expired, allowing for
// a small clock skew.
func (t *Token) Expired() bool {
	if t.Expiry.IsZero() {
		return false
	}
	return t.Expiry.Round(0).Before(time.Now().Add(expirySkew))
}

// Valid returns true if the token has a non-empty, unexpired access token.
func (t *Token) Valid() bool {
	if t == nil {
		return false
	}
	if t.AccessToken == "" {
		return false
	}
	return !t.Expired()
}

// tokenOptions is the set of available options for NewToken
type tokenOptions struct {
	withScopes []string
}

// tokenDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func tokenDefaults() tokenOptions {
	return tokenOptions{}
}

// getTokenOpts gets the defaults and applies the opt overrides passed in.
func getTokenOpts(opt ...Option) tokenOptions {
	opts := tokenDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScopes provides the scopes a token was granted for.
//
// Valid for: NewToken
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if v, ok := o.(*tokenOptions); ok {
			v.withScopes = scopes
		}
	}
}
