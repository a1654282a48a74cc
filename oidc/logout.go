package oidc

import (
	"fmt"
	"net/http"
)

// CheckSessionService builds requests against the provider's session
// status endpoint, carrying the id_token issued for a state.
type CheckSessionService struct {
	baseService
}

// NewCheckSessionService creates a CheckSession service.
func NewCheckSessionService() *CheckSessionService {
	return &CheckSessionService{baseService{
		kind:         ServiceCheckSession,
		endpointName: "check_session_iframe",
		httpMethod:   http.MethodGet,
		schema:       checkSessionSchema,
	}}
}

// Construct builds the check_session request, defaulting the id_token from
// the state's stored token or any stored id_token.
//
// Supported options: WithState
func (s *CheckSessionService) Construct(client *Client, requestArgs map[string]interface{}, opt ...Option) (*Record, error) {
	const op = "CheckSessionService.Construct"
	if client == nil {
		return nil, fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	opts := getReqOpts(opt...)
	rec := argsToRecord(requestArgs)
	prop := opts.withIdTokenProp
	if prop == "" {
		prop = "id_token"
	}
	if err := setIdToken(client, rec, prop, opts.withState); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := rec.Validate(s.schema); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

func (s *CheckSessionService) RequestParameters(client *Client, requestArgs map[string]interface{}, opt ...Option) (*HTTPRequest, error) {
	const op = "CheckSessionService.RequestParameters"
	rec, err := s.Construct(client, requestArgs, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req, err := s.render(client, rec, getReqOpts(opt...).withAuthnMethod)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return req, nil
}

// ProcessResponse stores the session status response under its state.
func (s *CheckSessionService) ProcessResponse(client *Client, state string, response map[string]interface{}) error {
	const op = "CheckSessionService.ProcessResponse"
	if client == nil {
		return fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	if state == "" {
		return nil
	}
	if err := client.Sessions().Update(state, &Session{Response: response}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CheckIDService builds requests against a provider's check_id endpoint,
// which echoes back the claims of a submitted id_token.
type CheckIDService struct {
	baseService
}

// NewCheckIDService creates a CheckID service.
func NewCheckIDService() *CheckIDService {
	return &CheckIDService{baseService{
		kind:         ServiceCheckID,
		endpointName: "check_id_endpoint",
		httpMethod:   http.MethodGet,
		schema:       checkIDSchema,
	}}
}

// Construct builds the check_id request, defaulting the id_token the same
// way CheckSession does.
//
// Supported options: WithState
func (s *CheckIDService) Construct(client *Client, requestArgs map[string]interface{}, opt ...Option) (*Record, error) {
	const op = "CheckIDService.Construct"
	if client == nil {
		return nil, fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	rec := argsToRecord(requestArgs)
	if err := setIdToken(client, rec, "id_token", getReqOpts(opt...).withState); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := rec.Validate(s.schema); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

func (s *CheckIDService) RequestParameters(client *Client, requestArgs map[string]interface{}, opt ...Option) (*HTTPRequest, error) {
	const op = "CheckIDService.RequestParameters"
	rec, err := s.Construct(client, requestArgs, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req, err := s.render(client, rec, getReqOpts(opt...).withAuthnMethod)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return req, nil
}

func (s *CheckIDService) ProcessResponse(client *Client, state string, response map[string]interface{}) error {
	const op = "CheckIDService.ProcessResponse"
	if client == nil {
		return fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	if state == "" {
		return nil
	}
	if err := client.Sessions().Update(state, &Session{Response: response}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// EndSessionService builds RP-initiated logout requests.
type EndSessionService struct {
	baseService
}

// NewEndSessionService creates an EndSession service.
func NewEndSessionService() *EndSessionService {
	return &EndSessionService{baseService{
		kind:         ServiceEndSession,
		endpointName: "end_session_endpoint",
		httpMethod:   http.MethodGet,
		schema:       endSessionSchema,
	}}
}

// Construct builds the end_session request: the id_token_hint defaults
// from the stored id_token and post_logout_redirect_uri from the client
// configuration.
//
// Supported options: WithState
func (s *EndSessionService) Construct(client *Client, requestArgs map[string]interface{}, opt ...Option) (*Record, error) {
	const op = "EndSessionService.Construct"
	if client == nil {
		return nil, fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	opts := getReqOpts(opt...)
	rec := argsToRecord(requestArgs)

	prop := opts.withIdTokenProp
	if prop == "" {
		prop = "id_token_hint"
	}
	if err := setIdToken(client, rec, prop, opts.withState); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !rec.Has("post_logout_redirect_uri") {
		if uris := client.Config().PostLogoutRedirectUris; len(uris) > 0 {
			rec.Set("post_logout_redirect_uri", uris[0])
		}
	}
	if opts.withState != "" && !rec.Has("state") {
		rec.Set("state", opts.withState)
	}

	if err := rec.Validate(s.schema); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

func (s *EndSessionService) RequestParameters(client *Client, requestArgs map[string]interface{}, opt ...Option) (*HTTPRequest, error) {
	const op = "EndSessionService.RequestParameters"
	rec, err := s.Construct(client, requestArgs, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req, err := s.render(client, rec, getReqOpts(opt...).withAuthnMethod)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return req, nil
}

func (s *EndSessionService) ProcessResponse(client *Client, state string, response map[string]interface{}) error {
	const op = "EndSessionService.ProcessResponse"
	if client == nil {
		return fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	if state == "" {
		return nil
	}
	if err := client.Sessions().Update(state, &Session{Response: response}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// setIdToken fills the named record property with an id_token: the one
// stored for the given state, else any stored id_token. Having none is
// ErrMissingIdToken.
func setIdToken(client *Client, rec *Record, prop, state string) error {
	const op = "oidc.setIdToken"
	if rec.Has(prop) {
		return nil
	}
	if state != "" {
		if session, err := client.Sessions().Get(state); err == nil {
			if session.Token != nil && session.Token.IdToken != "" {
				rec.Set(prop, string(session.Token.IdToken))
				return nil
			}
		}
	}
	idt, err := client.IdToken()
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrMissingIdToken)
	}
	rec.Set(prop, string(idt))
	return nil
}
