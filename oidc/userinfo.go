package oidc

import (
	"fmt"
	"net/http"
)

// UserInfoService fetches claims about the authenticated end user from
// the provider's userinfo endpoint.
type UserInfoService struct {
	baseService
}

// NewUserInfoService creates a UserInfo service.
func NewUserInfoService() *UserInfoService {
	return &UserInfoService{baseService{
		kind:               ServiceUserInfo,
		endpointName:       "userinfo_endpoint",
		httpMethod:         http.MethodGet,
		defaultAuthnMethod: AuthnBearerHeader,
		schema:             userinfoSchema,
	}}
}

// Construct builds the userinfo request. When the caller supplies no
// access token one is looked up from the session store: the token stored
// for WithState, or failing that any valid stored token granted for the
// openid scope. Having none is ErrMissingParameter.
//
// Supported options: WithState
func (s *UserInfoService) Construct(client *Client, requestArgs map[string]interface{}, opt ...Option) (*Record, error) {
	const op = "UserInfoService.Construct"
	if client == nil {
		return nil, fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	opts := getReqOpts(opt...)
	rec := argsToRecord(requestArgs)

	if !rec.Has("access_token") {
		token := storedAccessToken(client, opts.withState)
		if token == "" {
			return nil, fmt.Errorf("%s: no access token available: %w", op, ErrMissingParameter)
		}
		rec.Set("access_token", token)
	}

	if err := rec.Validate(s.schema); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

// RequestParameters renders the userinfo request; the default bearer
// header authentication moves the access token out of the parameters.
func (s *UserInfoService) RequestParameters(client *Client, requestArgs map[string]interface{}, opt ...Option) (*HTTPRequest, error) {
	const op = "UserInfoService.RequestParameters"
	rec, err := s.Construct(client, requestArgs, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	method := getReqOpts(opt...).withAuthnMethod
	if method == "" {
		method = s.defaultAuthnMethod
	}
	req, err := s.render(client, rec, method)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return req, nil
}

// ProcessResponse resolves the response's aggregated and distributed
// claims in place.
func (s *UserInfoService) ProcessResponse(client *Client, state string, response map[string]interface{}) error {
	const op = "UserInfoService.ProcessResponse"
	if client == nil {
		return fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	if err := ResolveClaims(client, response); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// storedAccessToken finds an access token for a userinfo call: the token
// stored for the given state, else any valid token granted the openid
// scope.
func storedAccessToken(client *Client, state string) string {
	if state != "" {
		if session, err := client.Sessions().Get(state); err == nil {
			if session.Token.Valid() {
				return string(session.Token.AccessToken)
			}
		}
	}
	if t, err := client.Sessions().GetToken(WithScope("openid")); err == nil {
		return string(t.AccessToken)
	}
	return ""
}
