package oidc

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
)

// ChallengeMethod represents a PKCE code challenge transform method.
// See: https://tools.ietf.org/html/rfc7636#section-4.2
type ChallengeMethod string

const (
	// S256 is the SHA-256 based transform, the method every client capable
	// of it must use.
	S256 ChallengeMethod = "S256"

	// S384 and S512 are stronger variants some providers accept.
	S384 ChallengeMethod = "S384"
	S512 ChallengeMethod = "S512"
)

// challengeHash maps a challenge method to its hash function.
var challengeHash = map[ChallengeMethod]func([]byte) []byte{
	S256: func(b []byte) []byte { h := sha256.Sum256(b); return h[:] },
	S384: func(b []byte) []byte { h := sha512.Sum384(b); return h[:] },
	S512: func(b []byte) []byte { h := sha512.Sum512(b); return h[:] },
}

// Verifier length bounds per RFC 7636 section 4.1.
const (
	MinVerifierLength = 43
	MaxVerifierLength = 128

	// DefaultVerifierLength is used when the client config does not set one.
	DefaultVerifierLength = 64
)

// CodeVerifier represents an OAuth PKCE code verifier and its derived
// challenge.
type CodeVerifier struct {
	verifier  string
	method    ChallengeMethod
	challenge string
}

// NewCodeVerifier creates a CodeVerifier, generating a random verifier of
// the requested length from the RFC 7636 unreserved character set and
// deriving its challenge with the requested method.
//
// Supported options: WithVerifierLength, WithChallengeMethod
func NewCodeVerifier(opt ...Option) (*CodeVerifier, error) {
	const op = "oidc.NewCodeVerifier"
	opts := getVerifierOpts(opt...)
	if opts.withLength < MinVerifierLength || opts.withLength > MaxVerifierLength {
		return nil, fmt.Errorf("%s: verifier length %d not in [%d, %d]: %w", op, opts.withLength, MinVerifierLength, MaxVerifierLength, ErrInvalidParameter)
	}
	data, err := randUnreserved(opts.withLength)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate verifier: %w", op, err)
	}
	v := &CodeVerifier{
		verifier: data,
		method:   opts.withMethod,
	}
	v.challenge, err = CreateCodeChallenge(v.method, v.verifier)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

func (v *CodeVerifier) Verifier() string        { return v.verifier }
func (v *CodeVerifier) Method() ChallengeMethod { return v.method }
func (v *CodeVerifier) Challenge() string       { return v.challenge }

// CreateCodeChallenge computes the base64url-encoded challenge for the
// verifier using the given method. An unknown method fails with
// ErrUnsupportedChallengeMethod naming the method.
func CreateCodeChallenge(m ChallengeMethod, verifier string) (string, error) {
	const op = "oidc.CreateCodeChallenge"
	hashFn, ok := challengeHash[m]
	if !ok {
		return "", fmt.Errorf("%s: PKCE transform method %q: %w", op, m, ErrUnsupportedChallengeMethod)
	}
	return base64.RawURLEncoding.EncodeToString(hashFn([]byte(verifier))), nil
}

// AddCodeChallenge generates a PKCE verifier per the client's code-challenge
// config, stores the verifier and method in the session store under the
// given state for retrieval at token-exchange time, and returns the
// code_challenge/code_challenge_method parameters to attach to the
// authorization request.
func (c *Client) AddCodeChallenge(state string) (map[string]string, error) {
	const op = "Client.AddCodeChallenge"
	cfg := c.config.CodeChallenge
	if cfg == nil {
		return nil, fmt.Errorf("%s: code challenge is not configured: %w", op, ErrConfiguration)
	}
	length := cfg.Length
	if length == 0 {
		length = DefaultVerifierLength
	}
	method := cfg.Method
	if method == "" {
		method = S256
	}
	v, err := NewCodeVerifier(WithVerifierLength(length), WithChallengeMethod(method))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.sessions.Update(state, &Session{
		CodeVerifier:        v.Verifier(),
		CodeChallengeMethod: v.Method(),
	}); err != nil {
		return nil, fmt.Errorf("%s: unable to store verifier: %w", op, err)
	}
	return map[string]string{
		"code_challenge":        v.Challenge(),
		"code_challenge_method": string(v.Method()),
	}, nil
}

// CodeVerifier returns the PKCE verifier stored for the given state at
// authorization time.
func (c *Client) CodeVerifier(state string) (string, error) {
	const op = "Client.CodeVerifier"
	session, err := c.sessions.Get(state)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if session.CodeVerifier == "" {
		return "", fmt.Errorf("%s: no code verifier stored for state %q: %w", op, state, ErrMissingParameter)
	}
	return session.CodeVerifier, nil
}

// verifierOptions is the set of available options for NewCodeVerifier
type verifierOptions struct {
	withLength int
	withMethod ChallengeMethod
}

// verifierDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func verifierDefaults() verifierOptions {
	return verifierOptions{
		withLength: DefaultVerifierLength,
		withMethod: S256,
	}
}

// getVerifierOpts gets the defaults and applies the opt overrides passed in.
func getVerifierOpts(opt ...Option) verifierOptions {
	opts := verifierDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithVerifierLength sets the generated verifier length.
func WithVerifierLength(n int) Option {
	return func(o interface{}) {
		if o, ok := o.(*verifierOptions); ok {
			o.withLength = n
		}
	}
}

// WithChallengeMethod sets the challenge transform method.
func WithChallengeMethod(m ChallengeMethod) Option {
	return func(o interface{}) {
		if o, ok := o.(*verifierOptions); ok {
			o.withMethod = m
		}
	}
}
