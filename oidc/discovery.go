package oidc

import (
	"fmt"
	"net/http"
	"strings"
)

// wellKnownPath is where a provider publishes its configuration document.
const wellKnownPath = "/.well-known/openid-configuration"

// ProviderInfoService fetches and applies a provider's published
// configuration document.
type ProviderInfoService struct {
	baseService
}

// NewProviderInfoService creates a ProviderInfoDiscovery service.
func NewProviderInfoService() *ProviderInfoService {
	return &ProviderInfoService{baseService{
		kind:       ServiceProviderInfoDiscovery,
		httpMethod: http.MethodGet,
	}}
}

// Construct returns an empty record: discovery requests carry no
// parameters.
func (s *ProviderInfoService) Construct(client *Client, requestArgs map[string]interface{}, opt ...Option) (*Record, error) {
	const op = "ProviderInfoService.Construct"
	if client == nil {
		return nil, fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	return NewRecord(), nil
}

// RequestParameters returns the GET request for the issuer's well-known
// configuration document.
func (s *ProviderInfoService) RequestParameters(client *Client, requestArgs map[string]interface{}, opt ...Option) (*HTTPRequest, error) {
	const op = "ProviderInfoService.RequestParameters"
	if client == nil {
		return nil, fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	issuer := client.Config().Issuer
	if issuer == "" {
		return nil, fmt.Errorf("%s: issuer: %w", op, ErrMissingParameter)
	}
	return &HTTPRequest{
		URL:     strings.TrimSuffix(issuer, "/") + wellKnownPath,
		Method:  http.MethodGet,
		Headers: http.Header{},
	}, nil
}

// ProcessResponse validates the configuration document, verifies the
// issuer it claims matches the issuer the client was configured with,
// stores it as the client's provider info and resolves the client's
// preferences against it.
func (s *ProviderInfoService) ProcessResponse(client *Client, state string, response map[string]interface{}) error {
	const op = "ProviderInfoService.ProcessResponse"
	if client == nil {
		return fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	rec := argsToRecord(response)
	if err := rec.Validate(providerSchema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if want := client.Config().Issuer; want != "" {
		got, _ := response["issuer"].(string)
		if strings.TrimSuffix(got, "/") != strings.TrimSuffix(want, "/") {
			return fmt.Errorf("%s: provider issuer %q does not match configured issuer %q: %w", op, got, want, ErrInvalidIssuer)
		}
	}
	client.setProviderInfo(response)
	if err := MatchPreferences(client, response); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
