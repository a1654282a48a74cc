package oidc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Record is an ordered mapping of request parameter name to value. Keys are
// unique; setting an existing key overwrites its value but preserves its
// position, so a Record always serializes deterministically for URL encoding
// and signing.
type Record struct {
	keys []string
	vals map[string]interface{}
}

// NewRecord creates an empty Record.
func NewRecord() *Record {
	return &Record{
		vals: map[string]interface{}{},
	}
}

// Set adds or overwrites the named parameter.
func (r *Record) Set(name string, value interface{}) {
	if _, ok := r.vals[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.vals[name] = value
}

// Get returns the named parameter's value and whether it is present.
func (r *Record) Get(name string) (interface{}, bool) {
	v, ok := r.vals[name]
	return v, ok
}

// GetString returns the named parameter as a string. A missing or non-string
// parameter returns "".
func (r *Record) GetString(name string) string {
	if v, ok := r.vals[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetStrings returns the named parameter as a list of strings, converting a
// scalar string into a single-element list. A missing parameter returns nil.
func (r *Record) GetStrings(name string) []string {
	v, ok := r.vals[name]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Has returns true if the named parameter is present.
func (r *Record) Has(name string) bool {
	_, ok := r.vals[name]
	return ok
}

// Del removes the named parameter.
func (r *Record) Del(name string) {
	if _, ok := r.vals[name]; !ok {
		return
	}
	delete(r.vals, name)
	for i, k := range r.keys {
		if k == name {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the parameter names in insertion order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of parameters.
func (r *Record) Len() int {
	return len(r.keys)
}

// Map returns the parameters as a plain map.
func (r *Record) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(r.vals))
	for k, v := range r.vals {
		out[k] = v
	}
	return out
}

// Clone returns a copy of the Record. Values are copied shallowly except for
// string lists, which are copied.
func (r *Record) Clone() *Record {
	out := NewRecord()
	for _, k := range r.keys {
		v := r.vals[k]
		if l, ok := v.([]string); ok {
			c := make([]string, len(l))
			copy(c, l)
			v = c
		}
		out.Set(k, v)
	}
	return out
}

// Encode url-encodes the parameters in insertion order. List values are
// space-joined (the oauth2 convention for scope and response_type).
func (r *Record) Encode() string {
	var b strings.Builder
	for i, k := range r.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(encodeValue(r.vals[k])))
	}
	return b.String()
}

func encodeValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		return strings.Join(t, " ")
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// MarshalJSON marshals the parameters as a JSON object with keys in
// insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.vals[k])
		if err != nil {
			return nil, err
		}
		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Validate checks the Record against the given message schema, verifying
// every required parameter is present.
func (r *Record) Validate(s Schema) error {
	const op = "Record.Validate"
	for name, spec := range s {
		if !spec.Required {
			continue
		}
		if !r.Has(name) {
			return fmt.Errorf("%s: %q: %w", op, name, ErrMissingRequiredAttribute)
		}
	}
	return nil
}

// ParamSpec describes the expected shape of one message parameter.
type ParamSpec struct {
	Required bool
	List     bool
}

// Schema is the externally defined parameter schema for one message kind.
type Schema map[string]ParamSpec

// Message schemas for the request kinds this package constructs. These mirror
// the parameter sets defined by OpenID Connect Core, Discovery and Dynamic
// Registration.
var (
	authorizationSchema = Schema{
		"response_type":         {Required: true},
		"client_id":             {Required: true},
		"redirect_uri":          {},
		"scope":                 {List: true},
		"state":                 {},
		"nonce":                 {},
		"prompt":                {List: true},
		"display":               {},
		"acr_values":            {List: true},
		"ui_locales":            {List: true},
		"claims_locales":        {List: true},
		"request":               {},
		"request_uri":           {},
		"code_challenge":        {},
		"code_challenge_method": {},
	}

	accessTokenSchema = Schema{
		"grant_type":            {Required: true},
		"code":                  {Required: true},
		"redirect_uri":          {Required: true},
		"client_id":             {},
		"client_secret":         {},
		"code_verifier":         {},
		"client_assertion":      {},
		"client_assertion_type": {},
	}

	refreshTokenSchema = Schema{
		"grant_type":    {Required: true},
		"refresh_token": {Required: true},
		"scope":         {List: true},
	}

	userinfoSchema = Schema{
		"access_token": {},
	}

	checkSessionSchema = Schema{
		"id_token": {Required: true},
	}

	checkIDSchema = Schema{
		"id_token": {Required: true},
	}

	endSessionSchema = Schema{
		"id_token_hint":            {Required: true},
		"post_logout_redirect_uri": {},
		"state":                    {},
	}

	registrationSchema = Schema{
		"redirect_uris":                   {Required: true, List: true},
		"response_types":                  {List: true},
		"grant_types":                     {List: true},
		"application_type":                {},
		"contacts":                        {List: true},
		"client_name":                     {},
		"logo_uri":                        {},
		"client_uri":                      {},
		"policy_uri":                      {},
		"tos_uri":                         {},
		"jwks_uri":                        {},
		"sector_identifier_uri":           {},
		"subject_type":                    {},
		"id_token_signed_response_alg":    {},
		"id_token_encrypted_response_alg": {},
		"id_token_encrypted_response_enc": {},
		"userinfo_signed_response_alg":    {},
		"userinfo_encrypted_response_alg": {},
		"userinfo_encrypted_response_enc": {},
		"request_object_signing_alg":      {},
		"request_object_encryption_alg":   {},
		"request_object_encryption_enc":   {},
		"token_endpoint_auth_method":      {},
		"token_endpoint_auth_signing_alg": {},
		"default_max_age":                 {},
		"require_auth_time":               {},
		"default_acr_values":              {List: true},
		"initiate_login_uri":              {},
		"request_uris":                    {List: true},
		"post_logout_redirect_uris":       {List: true},
	}

	// registrationParamOrder fixes the construction order for registration
	// requests, which keeps the serialized request deterministic.
	registrationParamOrder = []string{
		"redirect_uris",
		"response_types",
		"grant_types",
		"application_type",
		"contacts",
		"client_name",
		"logo_uri",
		"client_uri",
		"policy_uri",
		"tos_uri",
		"jwks_uri",
		"sector_identifier_uri",
		"subject_type",
		"id_token_signed_response_alg",
		"id_token_encrypted_response_alg",
		"id_token_encrypted_response_enc",
		"userinfo_signed_response_alg",
		"userinfo_encrypted_response_alg",
		"userinfo_encrypted_response_enc",
		"request_object_signing_alg",
		"request_object_encryption_alg",
		"request_object_encryption_enc",
		"token_endpoint_auth_method",
		"token_endpoint_auth_signing_alg",
		"default_max_age",
		"require_auth_time",
		"default_acr_values",
		"initiate_login_uri",
		"request_uris",
		"post_logout_redirect_uris",
	}

	// providerSchema types the provider configuration fields consulted by
	// the preference matcher when a capability list is absent.
	providerSchema = Schema{
		"issuer":                 {Required: true},
		"authorization_endpoint": {Required: true},
		"token_endpoint":         {},
		"userinfo_endpoint":      {},
		"jwks_uri":               {Required: true},
		"registration_endpoint":  {},
		"end_session_endpoint":   {},
		"check_session_iframe":   {},

		"request_object_signing_alg_values_supported":    {List: true},
		"request_object_encryption_alg_values_supported": {List: true},
		"request_object_encryption_enc_values_supported": {List: true},
		"userinfo_signing_alg_values_supported":          {List: true},
		"userinfo_encryption_alg_values_supported":       {List: true},
		"userinfo_encryption_enc_values_supported":       {List: true},
		"id_token_signing_alg_values_supported":          {List: true},
		"id_token_encryption_alg_values_supported":       {List: true},
		"id_token_encryption_enc_values_supported":       {List: true},
		"acr_values_supported":                           {List: true},
		"subject_types_supported":                        {List: true},
		"token_endpoint_auth_methods_supported":          {List: true},
		"token_endpoint_auth_signing_alg_values_supported": {List: true},
		"response_types_supported":                         {List: true},
		"grant_types_supported":                            {List: true},
		"scopes_supported":                                 {List: true},
		"claims_supported":                                 {List: true},
	}
)
