package oidc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"golang.org/x/text/language"

	"github.com/oidcware/rp/oidc/clientassertion"
)

// Request kind identifiers, used to look up services in the factory.
const (
	ServiceAuthorization         = "authorization"
	ServiceAccessToken           = "access_token"
	ServiceRefreshAccessToken    = "refresh_access_token"
	ServiceProviderInfoDiscovery = "provider_info"
	ServiceRegistration          = "registration"
	ServiceUserInfo              = "userinfo"
	ServiceCheckSession          = "check_session"
	ServiceCheckID               = "check_id"
	ServiceEndSession            = "end_session"
)

// Client authentication method names.
const (
	AuthnNone              = "none"
	AuthnClientSecretBasic = "client_secret_basic"
	AuthnClientSecretPost  = "client_secret_post"
	AuthnClientSecretJWT   = "client_secret_jwt"
	AuthnPrivateKeyJWT     = "private_key_jwt"
	AuthnBearerHeader      = "bearer_header"
	AuthnBearerBody        = "bearer_body"
)

// RequestMode selects how a protected authorization request object is
// transmitted: inline under the "request" parameter, or by reference under
// "request_uri".
type RequestMode string

const (
	RequestModeInline    RequestMode = "request"
	RequestModeReference RequestMode = "request_uri"
)

// HTTPRequest is the rendered form of a constructed request, ready for an
// external HTTP transport: the target URL, the HTTP binding, an optional
// body, and any headers injected by the client authentication method.
type HTTPRequest struct {
	URL     string
	Method  string
	Body    string
	Headers http.Header
}

// Service is the contract every request kind implements. Construct builds
// the validated request record from client/session state; RequestParameters
// layers the HTTP binding and client-authentication injection atop
// Construct; ProcessResponse applies the kind's post-parse bookkeeping to
// the parsed response.
type Service interface {
	Kind() string
	Construct(client *Client, requestArgs map[string]interface{}, opt ...Option) (*Record, error)
	RequestParameters(client *Client, requestArgs map[string]interface{}, opt ...Option) (*HTTPRequest, error)
	ProcessResponse(client *Client, state string, response map[string]interface{}) error
}

const (
	bodyNone       = ""
	bodyURLEncoded = "urlencoded"
	bodyJSON       = "json"
)

// baseService carries the per-kind constants shared by every service and
// implements the transport rendering common to all of them.
type baseService struct {
	kind               string
	endpointName       string
	httpMethod         string
	bodyType           string
	defaultAuthnMethod string
	schema             Schema
}

// Kind returns the request kind identifier.
func (s *baseService) Kind() string { return s.kind }

// endpoint resolves this service's provider endpoint.
func (s *baseService) endpoint(client *Client) (string, error) {
	const op = "service.endpoint"
	if s.endpointName == "" {
		return "", fmt.Errorf("%s: no endpoint defined for %q: %w", op, s.kind, ErrMissingEndpoint)
	}
	return client.Endpoint(s.endpointName)
}

// authnMethod resolves the client authentication method for a request:
// an explicit WithAuthnMethod opt wins, then the method registered with the
// provider, then this service's default.
func (s *baseService) authnMethod(client *Client, opt ...Option) string {
	opts := getReqOpts(opt...)
	if opts.withAuthnMethod != "" {
		return opts.withAuthnMethod
	}
	if m := client.BehaviourString("token_endpoint_auth_method"); m != "" {
		return m
	}
	return s.defaultAuthnMethod
}

// render binds the record to an HTTPRequest per this service's HTTP method
// and body type, applying the given client authentication method first so
// methods that inject parameters (client_secret_post, bearer_body) are
// reflected in the serialized body.
func (s *baseService) render(client *Client, rec *Record, authnMethod string) (*HTTPRequest, error) {
	const op = "service.render"
	endpoint, err := s.endpoint(client)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req := &HTTPRequest{
		URL:     endpoint,
		Method:  s.httpMethod,
		Headers: http.Header{},
	}
	if err := applyAuthnMethod(authnMethod, client, rec, req, endpoint); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	switch {
	case s.httpMethod == http.MethodGet:
		if rec.Len() > 0 {
			req.URL = endpoint + "?" + rec.Encode()
		}
	case s.bodyType == bodyJSON:
		body, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to marshal body: %w", op, err)
		}
		req.Body = string(body)
		req.Headers.Set("Content-Type", "application/json")
	default:
		req.Body = rec.Encode()
		req.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, nil
}

// applyAuthnMethod injects the named client authentication into the record
// and headers. An unknown method fails with ErrUnsupportedAuthnMethod.
func applyAuthnMethod(name string, client *Client, rec *Record, req *HTTPRequest, endpoint string) error {
	const op = "oidc.applyAuthnMethod"
	switch name {
	case "", AuthnNone:
		return nil

	case AuthnClientSecretBasic:
		// RFC 6749 2.3.1: credentials are form-urlencoded before base64.
		creds := url.QueryEscape(client.ClientId()) + ":" + url.QueryEscape(string(client.ClientSecret()))
		req.Headers.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
		return nil

	case AuthnClientSecretPost:
		rec.Set("client_id", client.ClientId())
		rec.Set("client_secret", string(client.ClientSecret()))
		return nil

	case AuthnBearerHeader:
		token := rec.GetString("access_token")
		if token == "" {
			return fmt.Errorf("%s: no access_token for bearer header: %w", op, ErrMissingParameter)
		}
		rec.Del("access_token")
		req.Headers.Set("Authorization", "Bearer "+token)
		return nil

	case AuthnBearerBody:
		if rec.GetString("access_token") == "" {
			return fmt.Errorf("%s: no access_token for bearer body: %w", op, ErrMissingParameter)
		}
		return nil

	case AuthnClientSecretJWT, AuthnPrivateKeyJWT:
		assertion, err := newClientAssertion(name, client, endpoint)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		rec.Set("client_assertion", assertion)
		rec.Set("client_assertion_type", clientassertion.JWTTypeParam)
		return nil

	default:
		return fmt.Errorf("%s: %q: %w", op, name, ErrUnsupportedAuthnMethod)
	}
}

// newClientAssertion builds the signed client_assertion JWT for the
// client_secret_jwt and private_key_jwt authentication methods. The signing
// algorithm comes from the negotiated token_endpoint_auth_signing_alg when
// present.
func newClientAssertion(method string, client *Client, endpoint string) (string, error) {
	const op = "oidc.newClientAssertion"
	alg := client.BehaviourString("token_endpoint_auth_signing_alg")
	var opts []clientassertion.Option
	switch method {
	case AuthnClientSecretJWT:
		if alg == "" {
			alg = "HS256"
		}
		opts = append(opts, clientassertion.WithClientSecret(string(client.ClientSecret()), alg))
	case AuthnPrivateKeyJWT:
		if alg == "" {
			alg = "RS256"
		}
		keys, err := client.Keyring().SigningKeys(alg)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		opts = append(opts, clientassertion.WithSigningKey(alg, keys[0]))
	}
	j, err := clientassertion.NewJWT(client.ClientId(), []string{endpoint}, opts...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	raw, err := j.Serialize()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return raw, nil
}

// argsToRecord copies caller-supplied request args into a fresh Record in a
// deterministic order.
func argsToRecord(requestArgs map[string]interface{}) *Record {
	rec := NewRecord()
	if len(requestArgs) == 0 {
		return rec
	}
	keys := make([]string, 0, len(requestArgs))
	for k := range requestArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rec.Set(k, requestArgs[k])
	}
	return rec
}

// reqOptions is the set of available options shared by the request services
type reqOptions struct {
	withState           string
	withResponseType    string
	withScope           string
	withAuthnMethod     string
	withRequestMode     RequestMode
	withSigningAlg      string
	withKeyId           string
	withKeys            []jose.JSONWebKey
	withEncryptionAlg   string
	withEncryptionEnc   string
	withEncryptionKeyId string
	withTarget          string
	withIdTokenProp     string
	withUILocales       []language.Tag
	withTokenCallback   func(endpoint string) (string, error)
	withHTTPClient      *http.Client
}

// reqDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func reqDefaults() reqOptions {
	return reqOptions{}
}

// getReqOpts gets the defaults and applies the opt overrides passed in.
func getReqOpts(opt ...Option) reqOptions {
	opts := reqDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithState ties the call to the session stored under the given state key.
func WithState(state string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withState = state
		}
	}
}

// WithResponseType sets the authorization response_type when no request args
// carry one.
func WithResponseType(rt string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withResponseType = rt
		}
	}
}

// WithAuthnMethod overrides the client authentication method applied when
// rendering the request.
func WithAuthnMethod(method string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withAuthnMethod = method
		}
	}
}

// WithRequestMode asks the Authorization service to wrap the request as a
// protected request object, transmitted inline (RequestModeInline) or by
// reference (RequestModeReference).
func WithRequestMode(mode RequestMode) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withRequestMode = mode
		}
	}
}

// WithSigningAlg overrides the request-object signing algorithm, trumping
// the negotiated behaviour.
func WithSigningAlg(alg string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withSigningAlg = alg
		}
	}
}

// WithKeys provides explicit signing keys, bypassing the keyring lookup.
func WithKeys(keys ...jose.JSONWebKey) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withKeys = keys
		}
	}
}

// WithEncryption asks for the protected request object to be encrypted with
// the given key management algorithm and content encryption.
func WithEncryption(alg, enc string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withEncryptionAlg = alg
			o.withEncryptionEnc = enc
		}
	}
}

// WithEncryptionKeyId selects the target's encryption key by key id.
func WithEncryptionKeyId(kid string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withEncryptionKeyId = kid
		}
	}
}

// WithTarget names the audience whose keys encrypt the request object.
func WithTarget(target string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withTarget = target
		}
	}
}

// WithIdTokenProp overrides the request parameter the id_token is injected
// under for the session-management services.
func WithIdTokenProp(prop string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withIdTokenProp = prop
		}
	}
}

// WithUILocales sets the end-user's preferred display languages for the
// authorization request.
func WithUILocales(locales ...language.Tag) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withUILocales = locales
		}
	}
}

// WithTokenCallback supplies a resolver from a distributed-claim endpoint to
// the bearer token used to fetch it.
func WithTokenCallback(fn func(endpoint string) (string, error)) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withTokenCallback = fn
		}
	}
}

// WithHTTPClient overrides the HTTP client used for distributed-claim
// fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withHTTPClient = c
		}
	}
}

// joinLocales renders language tags the way oidc request parameters expect:
// space-separated.
func joinLocales(locales []language.Tag) string {
	out := make([]string, len(locales))
	for i, l := range locales {
		out[i] = l.String()
	}
	return strings.Join(out, " ")
}
