package clientassertion

import (
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// Option configures the JWT
type Option func(*JWT) error

// WithClientSecret sets a secret and algorithm to sign the JWT with.
// alg must be one of the HS algorithms, and the secret must be long
// enough for it.
func WithClientSecret(secret string, alg string) Option {
	return func(j *JWT) error {
		const op = "WithClientSecret"
		if err := HSAlgorithm(alg).Validate(secret); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		j.secret = secret
		j.alg = jose.SignatureAlgorithm(alg)
		return nil
	}
}

// WithSigningKey sets a private JSON web key to sign the JWT with.
func WithSigningKey(alg string, key jose.JSONWebKey) Option {
	return func(j *JWT) error {
		const op = "WithSigningKey"
		if key.Key == nil {
			return fmt.Errorf("%s: %w", op, ErrNilPrivateKey)
		}
		if alg == "" {
			return fmt.Errorf("%s: %w", op, ErrMissingAlgorithm)
		}
		// the signer emits the key's kid header on its own
		j.key = key
		j.alg = jose.SignatureAlgorithm(alg)
		return nil
	}
}

// WithKeyID sets the "kid" header that OIDC providers use to look up the
// public key to check the signed JWT
func WithKeyID(keyID string) Option {
	return func(j *JWT) error {
		j.headers["kid"] = keyID
		return nil
	}
}

// WithHeaders sets extra JWT headers
func WithHeaders(h map[string]string) Option {
	return func(j *JWT) error {
		for k, v := range h {
			j.headers[k] = v
		}
		return nil
	}
}
