package oidc

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/hashicorp/vault/sdk/helper/base62"
)

// NewId generates an ID with an optional prefix. The ID generated is
// suitable for a request state or nonce.
func NewId(opt ...Option) (string, error) {
	const op = "oidc.NewId"
	opts := getIdOpts(opt...)
	id, err := base62.Random(DefaultIDLength)
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w", op, ErrIdGeneratorFailed)
	}
	switch {
	case opts.withPrefix != "":
		return fmt.Sprintf("%s_%s", opts.withPrefix, id), nil
	default:
		return id, nil
	}
}

// DefaultIDLength is the default length for generated IDs, which are used for
// state, nonce and request-object file names.
const DefaultIDLength = 20

// randToken generates a random base62 token of length n.
func randToken(n int) (string, error) {
	tk, err := base62.Random(n)
	if err != nil {
		return "", fmt.Errorf("randToken: %w", ErrIdGeneratorFailed)
	}
	return tk, nil
}

// unreservedChars is the character set allowed for PKCE code verifiers.
// See: https://tools.ietf.org/html/rfc7636#section-4.1
const unreservedChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// randUnreserved generates a random string of length n drawn from the RFC
// 7636 unreserved character set.
func randUnreserved(n int) (string, error) {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(unreservedChars)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("randUnreserved: %w", ErrIdGeneratorFailed)
		}
		buf[i] = unreservedChars[idx.Int64()]
	}
	return string(buf), nil
}

// idOptions is the set of available options for NewId
type idOptions struct {
	withPrefix string
}

// idDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func idDefaults() idOptions {
	return idOptions{}
}

// getIdOpts gets the defaults and applies the opt overrides passed in.
func getIdOpts(opt ...Option) idOptions {
	opts := idDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithPrefix provides an optional prefix for a new ID
func WithPrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*idOptions); ok {
			o.withPrefix = prefix
		}
	}
}
