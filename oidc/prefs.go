package oidc

import (
	"fmt"

	"github.com/oidcware/rp/oidc/internal/strutils"
)

// preferenceToProvider maps each client preference name to the provider
// capability list advertising support for it.
var preferenceToProvider = map[string]string{
	"request_object_signing_alg":      "request_object_signing_alg_values_supported",
	"request_object_encryption_alg":   "request_object_encryption_alg_values_supported",
	"request_object_encryption_enc":   "request_object_encryption_enc_values_supported",
	"userinfo_signed_response_alg":    "userinfo_signing_alg_values_supported",
	"userinfo_encrypted_response_alg": "userinfo_encryption_alg_values_supported",
	"userinfo_encrypted_response_enc": "userinfo_encryption_enc_values_supported",
	"id_token_signed_response_alg":    "id_token_signing_alg_values_supported",
	"id_token_encrypted_response_alg": "id_token_encryption_alg_values_supported",
	"id_token_encrypted_response_enc": "id_token_encryption_enc_values_supported",
	"default_acr_values":              "acr_values_supported",
	"subject_type":                    "subject_types_supported",
	"token_endpoint_auth_method":      "token_endpoint_auth_methods_supported",
	"token_endpoint_auth_signing_alg": "token_endpoint_auth_signing_alg_values_supported",
	"response_types":                  "response_types_supported",
	"grant_types":                     "grant_types_supported",
}

// providerDefaults holds the values assumed for a preference when the
// provider's configuration does not advertise the corresponding capability
// list.
var providerDefaults = map[string]interface{}{
	"token_endpoint_auth_method":   "client_secret_basic",
	"id_token_signed_response_alg": "RS256",
}

// MatchPreferences reconciles the client's declared preferences against the
// provider's advertised capabilities into the client's behaviour set. For
// each known preference/capability pair the resolution pipeline is:
//
//  1. preference not declared: skip.
//  2. capability list absent from providerInfo: hardcoded default if one
//     exists, else an empty list (list-typed capability) or nil.
//  3. declared scalar: kept only when the provider's list contains it.
//  4. declared list: filtered to provider-supported members in declared
//     order (list-typed schema field), or the first provider-supported
//     value (scalar-typed schema field).
//
// A declared preference left unresolved fails with ErrConfiguration naming
// it. Declared preferences outside the known table are copied into
// behaviour verbatim, collapsing a one-element list to its scalar when the
// registration schema types the field as a scalar.
//
// Matching is idempotent: running it twice against the same providerInfo
// yields an identical behaviour set. When providerInfo is nil the client's
// stored provider info is used.
func MatchPreferences(c *Client, providerInfo map[string]interface{}) error {
	const op = "oidc.MatchPreferences"
	if c == nil {
		return fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	if providerInfo == nil {
		providerInfo = c.ProviderInfo()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for pref, prov := range preferenceToProvider {
		declared, ok := c.clientPrefs[pref]
		if !ok {
			continue
		}

		supportedRaw, ok := providerInfo[prov]
		if !ok {
			switch def, ok := providerDefaults[pref]; {
			case ok:
				c.behaviour[pref] = def
			case providerSchema[prov].List:
				c.behaviour[pref] = []string{}
			default:
				c.behaviour[pref] = nil
			}
			continue
		}
		supported := toStringList(supportedRaw)

		switch v := declared.(type) {
		case string:
			if strutils.StrListContains(supported, v) {
				c.behaviour[pref] = v
			}
		default:
			vals := toStringList(declared)
			if registrationSchema[pref].List {
				filtered := strutils.StrListIntersect(vals, supported)
				if filtered == nil {
					filtered = []string{}
				}
				c.behaviour[pref] = filtered
			} else {
				for _, val := range vals {
					if strutils.StrListContains(supported, val) {
						c.behaviour[pref] = val
						break
					}
				}
			}
		}

		if _, ok := c.behaviour[pref]; !ok {
			return fmt.Errorf("%s: provider could not match preference %q: %w", op, pref, ErrConfiguration)
		}
	}

	// Preferences outside the known table are copied through verbatim.
	for key, val := range c.clientPrefs {
		if _, ok := c.behaviour[key]; ok {
			continue
		}
		if _, known := preferenceToProvider[key]; known {
			continue
		}
		if spec, ok := registrationSchema[key]; ok && !spec.List {
			switch t := val.(type) {
			case []string:
				if len(t) > 0 {
					val = t[0]
				}
			case []interface{}:
				if len(t) > 0 {
					val = t[0]
				}
			}
		}
		c.behaviour[key] = val
	}
	return nil
}
