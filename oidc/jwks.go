package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-jose/go-jose/v4"
)

// LoadProviderKeys fetches the provider's JSON Web Key Set from the
// discovered jwks_uri and adds its keys to the keyring under the issuer,
// so id_tokens and aggregated claim sources signed by the provider can be
// verified. Discovery must have run first.
func (c *Client) LoadProviderKeys(ctx context.Context) error {
	const op = "Client.LoadProviderKeys"
	if ctx == nil {
		return fmt.Errorf("%s: context is nil: %w", op, ErrNilParameter)
	}
	jwksURL, err := c.Endpoint("jwks_uri")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	httpClient, err := c.config.HttpClient()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: unable to fetch JWKS: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: JWKS endpoint returned %s: %w", op, resp.Status, ErrInvalidParameter)
	}

	var keySet jose.JSONWebKeySet
	if err := json.Unmarshal(body, &keySet); err != nil {
		return fmt.Errorf("%s: unable to parse JWKS document: %w", op, err)
	}
	if len(keySet.Keys) == 0 {
		return fmt.Errorf("%s: JWKS document has no keys: %w", op, ErrNotFound)
	}
	c.keyring.Add(c.config.Issuer, keySet.Keys...)
	return nil
}
