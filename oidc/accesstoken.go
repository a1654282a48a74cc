package oidc

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/oidcware/rp/oidc/internal/strutils"
)

// AccessTokenService exchanges an authorization code for tokens at the
// provider's token endpoint.
type AccessTokenService struct {
	baseService
}

// NewAccessTokenService creates an AccessToken service.
func NewAccessTokenService() *AccessTokenService {
	return &AccessTokenService{baseService{
		kind:               ServiceAccessToken,
		endpointName:       "token_endpoint",
		httpMethod:         http.MethodPost,
		bodyType:           bodyURLEncoded,
		defaultAuthnMethod: AuthnClientSecretBasic,
		schema:             accessTokenSchema,
	}}
}

// Construct builds the token request for the flow identified by state,
// pulling the authorization code from the stored authorization response
// when the caller didn't supply one. When PKCE is configured the stored
// code verifier for the state is attached.
//
// Supported options: WithState
func (s *AccessTokenService) Construct(client *Client, requestArgs map[string]interface{}, opt ...Option) (*Record, error) {
	const op = "AccessTokenService.Construct"
	if client == nil {
		return nil, fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	opts := getReqOpts(opt...)
	rec := argsToRecord(requestArgs)

	state := opts.withState
	if state == "" {
		state = rec.GetString("state")
		rec.Del("state")
	}
	if state == "" {
		return nil, fmt.Errorf("%s: state: %w", op, ErrMissingParameter)
	}

	if !rec.Has("grant_type") {
		rec.Set("grant_type", "authorization_code")
	}
	if !rec.Has("code") {
		session, err := client.Sessions().Get(state)
		if err != nil {
			return nil, fmt.Errorf("%s: no authorization response for state %q: %w", op, state, err)
		}
		if code, ok := session.Response["code"].(string); ok {
			rec.Set("code", code)
		}
	}
	if !rec.Has("redirect_uri") {
		rec.Set("redirect_uri", client.Config().RedirectUris[0])
	}
	if !rec.Has("client_id") {
		rec.Set("client_id", client.ClientId())
	}
	if client.Config().CodeChallenge != nil && !rec.Has("code_verifier") {
		verifier, err := client.CodeVerifier(state)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		rec.Set("code_verifier", verifier)
	}

	if err := rec.Validate(s.schema); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

// RequestParameters renders the token request, applying the client
// authentication method from WithAuthnMethod, the registered
// token_endpoint_auth_method, or client_secret_basic.
func (s *AccessTokenService) RequestParameters(client *Client, requestArgs map[string]interface{}, opt ...Option) (*HTTPRequest, error) {
	const op = "AccessTokenService.RequestParameters"
	rec, err := s.Construct(client, requestArgs, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req, err := s.render(client, rec, s.authnMethod(client, opt...))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return req, nil
}

// ProcessResponse verifies the response id_token's nonce against the nonce
// stored for the state and records the issued tokens. A mismatch between a
// stored nonce and an id_token nonce is tampering; the absence of either
// side is tolerated.
func (s *AccessTokenService) ProcessResponse(client *Client, state string, response map[string]interface{}) error {
	const op = "AccessTokenService.ProcessResponse"
	if client == nil {
		return fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	if err := verifyNonce(client, state, response); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tk, err := tokenFromResponse(response)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := client.Sessions().Update(state, &Session{
		Response: response,
		Token:    tk,
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RefreshAccessTokenService refreshes tokens at the provider's token
// endpoint. Beyond defaulting the grant type and pulling the stored
// refresh token, it is the plain oauth2 refresh flow.
type RefreshAccessTokenService struct {
	baseService
}

// NewRefreshAccessTokenService creates a RefreshAccessToken service.
func NewRefreshAccessTokenService() *RefreshAccessTokenService {
	return &RefreshAccessTokenService{baseService{
		kind:               ServiceRefreshAccessToken,
		endpointName:       "token_endpoint",
		httpMethod:         http.MethodPost,
		bodyType:           bodyURLEncoded,
		defaultAuthnMethod: AuthnClientSecretBasic,
		schema:             refreshTokenSchema,
	}}
}

// Construct builds the refresh request, defaulting the refresh token from
// the state's stored token.
//
// Supported options: WithState, WithScope
func (s *RefreshAccessTokenService) Construct(client *Client, requestArgs map[string]interface{}, opt ...Option) (*Record, error) {
	const op = "RefreshAccessTokenService.Construct"
	if client == nil {
		return nil, fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	opts := getReqOpts(opt...)
	rec := argsToRecord(requestArgs)

	if !rec.Has("grant_type") {
		rec.Set("grant_type", "refresh_token")
	}
	if len(opts.withScope) > 0 && !rec.Has("scope") {
		rec.Set("scope", opts.withScope)
	}
	if !rec.Has("refresh_token") && opts.withState != "" {
		session, err := client.Sessions().Get(opts.withState)
		if err == nil && session.Token != nil && session.Token.RefreshToken != "" {
			rec.Set("refresh_token", string(session.Token.RefreshToken))
		}
	}

	if err := rec.Validate(s.schema); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

func (s *RefreshAccessTokenService) RequestParameters(client *Client, requestArgs map[string]interface{}, opt ...Option) (*HTTPRequest, error) {
	const op = "RefreshAccessTokenService.RequestParameters"
	rec, err := s.Construct(client, requestArgs, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req, err := s.render(client, rec, s.authnMethod(client, opt...))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return req, nil
}

// ProcessResponse records the refreshed tokens for the state.
func (s *RefreshAccessTokenService) ProcessResponse(client *Client, state string, response map[string]interface{}) error {
	const op = "RefreshAccessTokenService.ProcessResponse"
	if client == nil {
		return fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	tk, err := tokenFromResponse(response)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := client.Sessions().Update(state, &Session{
		Response: response,
		Token:    tk,
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// verifyNonce compares the nonce stored for the state with the nonce
// claimed by the response's id_token. Only a disagreement between two
// present values is an error.
func verifyNonce(client *Client, state string, response map[string]interface{}) error {
	const op = "oidc.verifyNonce"
	rawIdToken, ok := response["id_token"].(string)
	if !ok || rawIdToken == "" {
		return nil
	}
	var claims map[string]interface{}
	if err := UnmarshalClaims(rawIdToken, &claims); err != nil {
		return fmt.Errorf("%s: unable to parse id_token claims: %w", op, err)
	}
	tokenNonce, ok := claims["nonce"].(string)
	if !ok || tokenNonce == "" {
		return nil
	}
	session, err := client.Sessions().Get(state)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if session.Nonce != "" && session.Nonce != tokenNonce {
		return fmt.Errorf("%s: id_token nonce does not match the nonce sent with the authorization request: %w", op, ErrInvalidNonce)
	}
	return nil
}

// tokenFromResponse assembles a Token from a parsed token endpoint
// response.
func tokenFromResponse(response map[string]interface{}) (*Token, error) {
	const op = "oidc.tokenFromResponse"
	t := &oauth2.Token{}
	if v, ok := response["access_token"].(string); ok {
		t.AccessToken = v
	}
	if v, ok := response["refresh_token"].(string); ok {
		t.RefreshToken = v
	}
	switch v := response["expires_in"].(type) {
	case float64:
		t.Expiry = time.Now().Add(time.Duration(v) * time.Second)
	case int:
		t.Expiry = time.Now().Add(time.Duration(v) * time.Second)
	}
	var idToken IdToken
	if v, ok := response["id_token"].(string); ok {
		idToken = IdToken(v)
	}

	var scopes []string
	switch v := response["scope"].(type) {
	case string:
		scopes = strings.Fields(v)
	case []string:
		scopes = v
	case []interface{}:
		for _, e := range v {
			if s, ok := e.(string); ok {
				scopes = append(scopes, s)
			}
		}
	}
	if len(scopes) > 0 {
		scopes = strutils.RemoveDuplicatesStable(scopes, false)
	}

	tk, err := NewToken(idToken, t, WithScopes(scopes...))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tk, nil
}
