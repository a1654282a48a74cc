package oidc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/oidcware/rp/oidc/internal/strutils"
)

// ClientSecret is an oauth client secret
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + RedactedClientSecret + `"`), nil
}

// CodeChallengeConfig configures PKCE (RFC 7636) for the client. A nil
// CodeChallengeConfig on the Config disables PKCE.
type CodeChallengeConfig struct {
	// Length of the generated code verifier. Defaults to
	// DefaultVerifierLength.
	Length int

	// Method is the challenge transform. Defaults to S256.
	Method ChallengeMethod
}

// Config represents the static configuration for one relying party.
type Config struct {
	// ClientId is the relying party id
	ClientId string

	// ClientSecret is the relying party secret
	ClientSecret ClientSecret

	// Issuer is a case-sensitive URL string using the https scheme that
	// contains scheme, host, and optionally, port number and path components
	// and no query or fragment components.
	Issuer string

	// RedirectUris is the ordered list of the client's registered redirect
	// URIs. The first entry is used as the default redirect_uri for
	// authorization requests. Required.
	RedirectUris []string

	// PostLogoutRedirectUris is copied into registration requests when set.
	PostLogoutRedirectUris []string

	// CodeChallenge enables PKCE when non-nil.
	CodeChallenge *CodeChallengeConfig

	// RequestsDir is the local directory where by-reference request objects
	// are written.
	RequestsDir string

	// RequestsBaseUrl is the public URL prefix under which files written to
	// RequestsDir are served.
	RequestsBaseUrl string

	// ProviderCA is an optional CA cert to use when sending requests to the
	// provider.
	ProviderCA string

	// Logger is an optional logger
	Logger hclog.Logger
}

// NewConfig composes a new relying-party config.
// Supported options:
//
//	WithLogger
//	WithProviderCA
//	WithPostLogoutRedirectUris
//	WithCodeChallenge
//	WithRequestsStore
func NewConfig(issuer string, clientId string, clientSecret ClientSecret, redirectUris []string, opt ...Option) (*Config, error) {
	const op = "oidc.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Issuer:                 issuer,
		ClientId:               clientId,
		ClientSecret:           clientSecret,
		RedirectUris:           redirectUris,
		PostLogoutRedirectUris: opts.withPostLogoutRedirectUris,
		CodeChallenge:          opts.withCodeChallenge,
		RequestsDir:            opts.withRequestsDir,
		RequestsBaseUrl:        opts.withRequestsBaseUrl,
		ProviderCA:             opts.withProviderCA,
		Logger:                 opts.withLogger,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid relying party config: %w", op, err)
	}
	return c, nil
}

// Validate the client configuration, accumulating every problem found.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	var retErr *multierror.Error
	if c.ClientId == "" {
		retErr = multierror.Append(retErr, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter))
	}
	if c.Issuer == "" {
		retErr = multierror.Append(retErr, fmt.Errorf("%s: issuer is empty: %w", op, ErrInvalidParameter))
	} else {
		u, err := url.Parse(c.Issuer)
		switch {
		case err != nil:
			retErr = multierror.Append(retErr, fmt.Errorf("%s: issuer %s is invalid: %w", op, c.Issuer, err))
		case !strutils.StrListContains([]string{"https", "http"}, u.Scheme):
			retErr = multierror.Append(retErr, fmt.Errorf("%s: issuer %s schema is not http or https: %w", op, c.Issuer, ErrInvalidParameter))
		}
	}
	if len(c.RedirectUris) == 0 {
		retErr = multierror.Append(retErr, fmt.Errorf("%s: redirect_uris: %w", op, ErrMissingRequiredAttribute))
	}
	if c.CodeChallenge != nil {
		if _, ok := challengeHash[c.CodeChallenge.Method]; c.CodeChallenge.Method != "" && !ok {
			retErr = multierror.Append(retErr, fmt.Errorf("%s: PKCE transform method %q: %w", op, c.CodeChallenge.Method, ErrUnsupportedChallengeMethod))
		}
	}
	return retErr.ErrorOrNil()
}

// HttpClient is a helper function that creates a new http client for
// requests to the configured provider.
func (c *Config) HttpClient() (*http.Client, error) {
	const op = "Config.HttpClient"
	tr := cleanhttp.DefaultPooledTransport()
	if c.ProviderCA != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(c.ProviderCA)); !ok {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs: certPool,
		}
	}
	return &http.Client{
		Transport: tr,
	}, nil
}

// HttpClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func HttpClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}

// configOptions is the set of available options
type configOptions struct {
	withPostLogoutRedirectUris []string
	withCodeChallenge          *CodeChallengeConfig
	withRequestsDir            string
	withRequestsBaseUrl        string
	withProviderCA             string
	withLogger                 hclog.Logger
}

// configDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func configDefaults() configOptions {
	return configOptions{}
}

// getConfigOpts gets the defaults and applies the opt overrides passed in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithPostLogoutRedirectUris provides the optional post-logout redirect URIs
// copied into registration requests.
func WithPostLogoutRedirectUris(uris []string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withPostLogoutRedirectUris = uris
		}
	}
}

// WithCodeChallenge enables PKCE for the client's authorization and token
// requests.
func WithCodeChallenge(c *CodeChallengeConfig) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withCodeChallenge = c
		}
	}
}

// WithRequestsStore configures where by-reference request objects are
// written (a local directory) and the public URL prefix they are served
// under.
func WithRequestsStore(localDir, baseUrl string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withRequestsDir = localDir
			o.withRequestsBaseUrl = baseUrl
		}
	}
}

// WithProviderCA provides an optional CA cert for requests to the provider.
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withLogger = l
		}
	}
}
