package oidc

import (
	"fmt"
	"net/http"
	"os"
)

// RegistrationService performs dynamic client registration and applies the
// provider's issued credentials to the client.
type RegistrationService struct {
	baseService
}

// NewRegistrationService creates a Registration service.
func NewRegistrationService() *RegistrationService {
	return &RegistrationService{baseService{
		kind:         ServiceRegistration,
		endpointName: "registration_endpoint",
		httpMethod:   http.MethodPost,
		bodyType:     bodyJSON,
		schema:       registrationSchema,
	}}
}

// Construct builds the registration request: caller args win, then the
// client's negotiated behaviour, in the canonical metadata parameter
// order. The redirect_uris fall back to the client configuration and are
// required. When the provider requires request_uri registration a
// request_uri is minted and included.
func (s *RegistrationService) Construct(client *Client, requestArgs map[string]interface{}, opt ...Option) (*Record, error) {
	const op = "RegistrationService.Construct"
	if client == nil {
		return nil, fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	rec := NewRecord()

	client.mu.Lock()
	behaviour := copyMap(client.behaviour)
	client.mu.Unlock()

	for _, name := range registrationParamOrder {
		if v, ok := requestArgs[name]; ok {
			rec.Set(name, v)
			continue
		}
		if v, ok := behaviour[name]; ok {
			rec.Set(name, v)
		}
	}
	// Args outside the canonical order are still carried.
	for _, name := range argsToRecord(requestArgs).Keys() {
		if !rec.Has(name) {
			rec.Set(name, requestArgs[name])
		}
	}

	if !rec.Has("redirect_uris") {
		if uris := client.Config().RedirectUris; len(uris) > 0 {
			rec.Set("redirect_uris", uris)
		}
	}
	if !rec.Has("post_logout_redirect_uris") {
		if uris := client.Config().PostLogoutRedirectUris; len(uris) > 0 {
			rec.Set("post_logout_redirect_uris", uris)
		}
	}
	if requires, _ := client.ProviderInfo()["require_request_uri_registration"].(bool); requires && !rec.Has("request_uris") {
		filename, webname, err := constructRequestUri(client.Config().RequestsDir, client.Config().RequestsBaseUrl)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		// Reserve the name so a later request object lands at the
		// registered location.
		if err := os.WriteFile(filename, nil, 0o644); err != nil {
			return nil, fmt.Errorf("%s: unable to reserve request_uri: %w", op, err)
		}
		rec.Set("request_uris", []string{webname})
	}

	if err := rec.Validate(s.schema); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

// RequestParameters renders the registration request as a JSON POST. An
// initial registration is unauthenticated; updates carry the registration
// access token when one is held.
func (s *RegistrationService) RequestParameters(client *Client, requestArgs map[string]interface{}, opt ...Option) (*HTTPRequest, error) {
	const op = "RegistrationService.RequestParameters"
	rec, err := s.Construct(client, requestArgs, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req, err := s.render(client, rec, getReqOpts(opt...).withAuthnMethod)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rat := client.RegistrationAccessToken(); rat != "" {
		req.Headers.Set("Authorization", "Bearer "+string(rat))
	}
	return req, nil
}

// ProcessResponse applies the provider's registration response to the
// client: the issued client_id is required; client_secret and its expiry,
// the registration access token, and returned metadata are stored, and
// token_endpoint_auth_method defaults to client_secret_basic in the stored
// response, and in behaviour when no side named one.
func (s *RegistrationService) ProcessResponse(client *Client, state string, response map[string]interface{}) error {
	const op = "RegistrationService.ProcessResponse"
	if client == nil {
		return fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}

	clientId, ok := response["client_id"].(string)
	if !ok || clientId == "" {
		return fmt.Errorf("%s: registration response has no client_id: %w", op, ErrMissingRequiredAttribute)
	}

	client.mu.Lock()
	defer client.mu.Unlock()

	stored := copyMap(response)
	if _, ok := stored["token_endpoint_auth_method"]; !ok {
		stored["token_endpoint_auth_method"] = AuthnClientSecretBasic
	}
	client.registrationResponse = stored
	client.clientId = clientId
	if secret, ok := response["client_secret"].(string); ok {
		client.clientSecret = ClientSecret(secret)
		if exp, ok := response["client_secret_expires_at"].(float64); ok {
			client.clientSecretExpiresAt = int64(exp)
		}
	}
	if rat, ok := response["registration_access_token"].(string); ok {
		client.registrationAccessToken = AccessToken(rat)
	}

	for name := range registrationSchema {
		switch name {
		case "client_id", "client_secret":
			continue
		}
		if v, ok := response[name]; ok {
			client.behaviour[name] = v
		}
	}
	if _, ok := client.behaviour["token_endpoint_auth_method"]; !ok {
		client.behaviour["token_endpoint_auth_method"] = AuthnClientSecretBasic
	}
	return nil
}
