package oidc

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-multierror"
)

// ResolveClaims resolves the aggregated and distributed claims of a
// userinfo (or id_token) claim set in place: aggregated claim sources are
// verified against the keyring and folded into the top-level claims;
// distributed claim sources are fetched from their endpoints. Individual
// source failures are accumulated; the claims that could be resolved are
// still applied.
//
// Supported options: WithTokenCallback, WithHTTPClient
func ResolveClaims(client *Client, claims map[string]interface{}, opt ...Option) error {
	const op = "oidc.ResolveClaims"
	if client == nil {
		return fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if err := UnpackAggregatedClaims(client, claims); err != nil {
		result = multierror.Append(result, err)
	}
	if err := FetchDistributedClaims(client, claims, opt...); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// UnpackAggregatedClaims verifies each aggregated claim source (a signed
// JWT embedded in _claim_sources) against the keyring and lifts its claims
// to the top level. A source whose claim set disagrees with what
// _claim_names announced is logged and still applied in full.
func UnpackAggregatedClaims(client *Client, claims map[string]interface{}) error {
	const op = "oidc.UnpackAggregatedClaims"
	if client == nil {
		return fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	names, sources, ok := claimRefs(claims)
	if !ok {
		return nil
	}

	var result *multierror.Error
	for srcName, src := range sources {
		raw, ok := src["JWT"].(string)
		if !ok || raw == "" {
			continue
		}
		owner := issuerOf(raw)
		verified, err := client.Keyring().VerifySignature(raw, owner)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: source %q: %w", op, srcName, err))
			continue
		}
		applySourceClaims(client, claims, names, srcName, verified)
		delete(sources, srcName)
	}
	pruneClaimRefs(claims, names, sources)
	return result.ErrorOrNil()
}

// FetchDistributedClaims fetches each distributed claim source (an
// endpoint reference in _claim_sources) and lifts the returned claims to
// the top level. The request is authorized by the source's own
// access_token, by a token from WithTokenCallback, or not at all.
//
// Supported options: WithTokenCallback, WithHTTPClient
func FetchDistributedClaims(client *Client, claims map[string]interface{}, opt ...Option) error {
	const op = "oidc.FetchDistributedClaims"
	if client == nil {
		return fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	names, sources, ok := claimRefs(claims)
	if !ok {
		return nil
	}
	opts := getReqOpts(opt...)

	httpClient := opts.withHTTPClient
	if httpClient == nil {
		c, err := client.Config().HttpClient()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		httpClient = c
	}

	var result *multierror.Error
	for srcName, src := range sources {
		endpoint, ok := src["endpoint"].(string)
		if !ok || endpoint == "" {
			continue
		}
		token, _ := src["access_token"].(string)
		if token == "" && opts.withTokenCallback != nil {
			var err error
			token, err = opts.withTokenCallback(endpoint)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: source %q: %w", op, srcName, err))
				continue
			}
		}
		fetched, err := fetchClaimSource(httpClient, endpoint, token)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: source %q: %w", op, srcName, err))
			continue
		}
		applySourceClaims(client, claims, names, srcName, fetched)
		delete(sources, srcName)
	}
	pruneClaimRefs(claims, names, sources)
	return result.ErrorOrNil()
}

// claimRefs pulls the _claim_names and _claim_sources maps out of a claim
// set.
func claimRefs(claims map[string]interface{}) (map[string]interface{}, map[string]map[string]interface{}, bool) {
	names, ok := claims["_claim_names"].(map[string]interface{})
	if !ok {
		return nil, nil, false
	}
	rawSources, ok := claims["_claim_sources"].(map[string]interface{})
	if !ok {
		return nil, nil, false
	}
	sources := map[string]map[string]interface{}{}
	for name, raw := range rawSources {
		if src, ok := raw.(map[string]interface{}); ok {
			sources[name] = src
		}
	}
	return names, sources, true
}

// applySourceClaims folds every claim a resolved source returned into the
// top level. The _claim_names announcement is advisory: a disagreement
// between it and the source's actual claims is logged, never filtered on.
func applySourceClaims(client *Client, claims, names map[string]interface{}, srcName string, resolved map[string]interface{}) {
	announced := map[string]bool{}
	for claimName, ref := range names {
		if ref != srcName {
			continue
		}
		announced[claimName] = true
		if _, ok := resolved[claimName]; !ok {
			client.log.Warn("announced claim missing from its claim source", "claim", claimName, "source", srcName)
		}
		delete(names, claimName)
	}
	for claimName, v := range resolved {
		if !announced[claimName] {
			client.log.Warn("claim source returned a claim it was not announced for", "claim", claimName, "source", srcName)
		}
		claims[claimName] = v
	}
}

// pruneClaimRefs drops the bookkeeping entries once every source has been
// resolved.
func pruneClaimRefs(claims, names map[string]interface{}, sources map[string]map[string]interface{}) {
	remaining := map[string]interface{}{}
	for name, src := range sources {
		remaining[name] = src
	}
	if len(names) == 0 && len(remaining) == 0 {
		delete(claims, "_claim_names")
		delete(claims, "_claim_sources")
		return
	}
	claims["_claim_names"] = names
	claims["_claim_sources"] = remaining
}

// issuerOf returns the unverified iss claim of a compact JWT, or "".
func issuerOf(raw string) string {
	var unverified map[string]interface{}
	if err := UnmarshalClaims(raw, &unverified); err != nil {
		return ""
	}
	iss, _ := unverified["iss"].(string)
	return iss
}

// fetchClaimSource performs the claim source GET, optionally bearing the
// given token.
func fetchClaimSource(httpClient *http.Client, endpoint, token string) (map[string]interface{}, error) {
	const op = "oidc.fetchClaimSource"
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: claim source returned %s: %w", op, resp.Status, ErrInvalidParameter)
	}
	var fetched map[string]interface{}
	if err := json.Unmarshal(body, &fetched); err != nil {
		return nil, fmt.Errorf("%s: unable to parse claim source response: %w", op, err)
	}
	return fetched, nil
}
