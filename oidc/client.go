package oidc

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Client is the long-lived state for one configured relying party: its
// static Config, the provider info discovered for its issuer, the behaviour
// negotiated from its declared preferences, its registration response, and
// handles to its key registry and session store.
//
// Per-state session data is written through the SessionStore, where writes
// for distinct states never conflict. The shared fields mutated by
// ProviderInfoDiscovery and Registration (provider info, behaviour,
// registration response, client id/secret) are serialized by a per-client
// lock since they are one-time bootstrap operations.
type Client struct {
	config *Config

	mu sync.Mutex

	// clientId and clientSecret start from the config and may be overwritten
	// by dynamic registration.
	clientId                string
	clientSecret            ClientSecret
	clientSecretExpiresAt   int64
	registrationAccessToken AccessToken

	providerInfo         map[string]interface{}
	registrationResponse map[string]interface{}
	behaviour            map[string]interface{}
	clientPrefs          map[string]interface{}

	keyring  *Keyring
	sessions *SessionStore
	log      hclog.Logger
}

// NewClient creates a Client for the given config.
// Supported options: WithClientPrefs, WithKeyring
func NewClient(c *Config, opt ...Option) (*Client, error) {
	const op = "oidc.NewClient"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getClientOpts(opt...)
	keyring := opts.withKeyring
	if keyring == nil {
		keyring = NewKeyring()
	}
	logger := c.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Client{
		config:       c,
		clientId:     c.ClientId,
		clientSecret: c.ClientSecret,
		behaviour:    map[string]interface{}{},
		clientPrefs:  opts.withClientPrefs,
		keyring:      keyring,
		sessions:     NewSessionStore(),
		log:          logger,
	}, nil
}

// Config returns the client's static configuration.
func (c *Client) Config() *Config { return c.config }

// Sessions returns the client's session store. Every service constructed
// for the client shares it.
func (c *Client) Sessions() *SessionStore { return c.sessions }

// Keyring returns the client's key registry.
func (c *Client) Keyring() *Keyring { return c.keyring }

// ClientId returns the effective client id, which dynamic registration may
// have overwritten.
func (c *Client) ClientId() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientId
}

// ClientSecret returns the effective client secret.
func (c *Client) ClientSecret() ClientSecret {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientSecret
}

// RegistrationAccessToken returns the access token issued by dynamic
// registration, if any.
func (c *Client) RegistrationAccessToken() AccessToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registrationAccessToken
}

// ProviderInfo returns a copy of the discovered provider configuration, or
// nil before discovery.
func (c *Client) ProviderInfo() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMap(c.providerInfo)
}

// setProviderInfo replaces the client's provider configuration.
func (c *Client) setProviderInfo(info map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providerInfo = copyMap(info)
}

// RegistrationResponse returns a copy of the stored registration response,
// or nil before registration.
func (c *Client) RegistrationResponse() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMap(c.registrationResponse)
}

// Behaviour returns the negotiated value for the named protocol option.
func (c *Client) Behaviour(name string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.behaviour[name]
	return v, ok
}

// BehaviourString returns the negotiated value for the named protocol
// option as a string, or "" when unset or not a scalar.
func (c *Client) BehaviourString(name string) string {
	v, ok := c.Behaviour(name)
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// Behaviours returns a copy of the full negotiated behaviour set.
func (c *Client) Behaviours() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMap(c.behaviour)
}

// Endpoint resolves the named provider endpoint from the discovered
// provider info.
func (c *Client) Endpoint(name string) (string, error) {
	const op = "Client.Endpoint"
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.providerInfo[name]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s, nil
		}
	}
	return "", fmt.Errorf("%s: provider info has no %q: %w", op, name, ErrMissingEndpoint)
}

// IdToken returns a stored id_token for the client, preferring one whose
// access token is still valid. None available fails with ErrNotFound.
func (c *Client) IdToken() (IdToken, error) {
	return c.sessions.IdToken()
}

// registeredRequestUris returns the request_uris from the registration
// response, if any.
func (c *Client) registeredRequestUris() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return toStringList(c.registrationResponse["request_uris"])
}

// filenameFromWebname maps a public request-object URL back to its file
// path under the configured requests directory.
func (c *Client) filenameFromWebname(webname string) (string, error) {
	const op = "Client.filenameFromWebname"
	base := c.config.RequestsBaseUrl
	if base == "" || !strings.HasPrefix(webname, base) {
		return "", fmt.Errorf("%s: %q is not under the requests base url %q: %w", op, webname, base, ErrInvalidParameter)
	}
	name := strings.TrimPrefix(strings.TrimPrefix(webname, base), "/")
	return filepath.Join(c.config.RequestsDir, name), nil
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// toStringList coerces a scalar string, []string or decoded-JSON []interface{}
// into a []string. Anything else returns nil.
func toStringList(v interface{}) []string {
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

// clientOptions is the set of available options for NewClient
type clientOptions struct {
	withClientPrefs map[string]interface{}
	withKeyring     *Keyring
}

// clientDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func clientDefaults() clientOptions {
	return clientOptions{
		withClientPrefs: map[string]interface{}{},
	}
}

// getClientOpts gets the defaults and applies the opt overrides passed in.
func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithClientPrefs declares the client's protocol preferences, which provider
// discovery reconciles into the client's behaviour set.
func WithClientPrefs(prefs map[string]interface{}) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withClientPrefs = prefs
		}
	}
}

// WithKeyring provides the client's key registry.
func WithKeyring(k *Keyring) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withKeyring = k
		}
	}
}
