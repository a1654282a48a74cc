package oidc

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-jose/go-jose/v4"
)

// Keyring is a thin facade over a set of JSON web keys, resolving signing
// and encryption keys by algorithm-derived key type, optional key id, and
// owner. The empty owner holds the client's own keys; provider and
// claim-source keys are stored under their issuer identifier.
type Keyring struct {
	mu   sync.RWMutex
	keys map[string][]jose.JSONWebKey
}

// NewKeyring creates an empty Keyring.
func NewKeyring() *Keyring {
	return &Keyring{
		keys: map[string][]jose.JSONWebKey{},
	}
}

// Add stores keys for the given owner. Use the empty owner for the client's
// own keys.
func (k *Keyring) Add(owner string, keys ...jose.JSONWebKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[owner] = append(k.keys[owner], keys...)
}

// SigningKeys resolves the client's own signing keys for the given
// algorithm. The key type is derived from the algorithm; an optional key id
// narrows the result. No matching key returns ErrNotFound.
//
// Supported options: WithKeyId
func (k *Keyring) SigningKeys(alg string, opt ...Option) ([]jose.JSONWebKey, error) {
	const op = "Keyring.SigningKeys"
	opts := getKeyringOpts(opt...)
	keys := k.find("", AlgKeyType(alg), opts.withKeyId, "sig")
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s: no signing key for alg %q (kid %q): %w", op, alg, opts.withKeyId, ErrNotFound)
	}
	return keys, nil
}

// EncryptionKeys resolves the owner's encryption keys for the given key
// management algorithm. The owner (the target audience of the encrypted
// object) is mandatory. No matching key returns ErrNotFound.
//
// Supported options: WithKeyId
func (k *Keyring) EncryptionKeys(alg string, owner string, opt ...Option) ([]jose.JSONWebKey, error) {
	const op = "Keyring.EncryptionKeys"
	if owner == "" {
		return nil, fmt.Errorf("%s: owner is empty: %w", op, ErrInvalidParameter)
	}
	opts := getKeyringOpts(opt...)
	keys := k.find(owner, AlgKeyType(alg), opts.withKeyId, "enc")
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s: no encryption key for alg %q owner %q (kid %q): %w", op, alg, owner, opts.withKeyId, ErrNotFound)
	}
	return keys, nil
}

func (k *Keyring) find(owner, kty, kid, use string) []jose.JSONWebKey {
	k.mu.RLock()
	defer k.mu.RUnlock()
	var out []jose.JSONWebKey
	for _, key := range k.keys[owner] {
		if kty != "" && keyType(key.Key) != kty {
			continue
		}
		if kid != "" && key.KeyID != kid {
			continue
		}
		if key.Use != "" && use != "" && key.Use != use {
			continue
		}
		out = append(out, key)
	}
	return out
}

// VerifySignature verifies the compact JWS with the owner's keys and returns
// its decoded claims. Verification is attempted against every stored key for
// the owner; failure with all of them returns an error.
func (k *Keyring) VerifySignature(raw string, owner string) (map[string]interface{}, error) {
	const op = "Keyring.VerifySignature"
	jws, err := jose.ParseSigned(raw, supportedSignatureAlgorithms)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse token: %w", op, err)
	}
	k.mu.RLock()
	keys := make([]jose.JSONWebKey, len(k.keys[owner]))
	copy(keys, k.keys[owner])
	k.mu.RUnlock()
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s: no keys for owner %q: %w", op, owner, ErrNotFound)
	}
	for _, key := range keys {
		payload, err := jws.Verify(verificationKey(key))
		if err != nil {
			continue
		}
		var claims map[string]interface{}
		if err := json.Unmarshal(payload, &claims); err != nil {
			return nil, fmt.Errorf("%s: unable to decode token payload: %w", op, err)
		}
		return claims, nil
	}
	return nil, fmt.Errorf("%s: token signed by none of owner %q keys: %w", op, owner, ErrInvalidParameter)
}

// verificationKey favors a key's public half when a private key was stored.
func verificationKey(key jose.JSONWebKey) interface{} {
	switch t := key.Key.(type) {
	case *rsa.PrivateKey:
		return &t.PublicKey
	case *ecdsa.PrivateKey:
		return &t.PublicKey
	case ed25519.PrivateKey:
		return t.Public()
	default:
		return key.Key
	}
}

// supportedSignatureAlgorithms is the allow-list handed to the jose parser.
var supportedSignatureAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.HS256, jose.HS384, jose.HS512,
	jose.EdDSA,
}

// AlgKeyType derives the JWK key type a JOSE algorithm operates on. An
// unknown algorithm returns "".
func AlgKeyType(alg string) string {
	switch {
	case alg == "none" || alg == "":
		return ""
	case strings.HasPrefix(alg, "RS"), strings.HasPrefix(alg, "PS"),
		strings.HasPrefix(alg, "RSA"): // RSA1_5, RSA-OAEP, RSA-OAEP-256
		return "RSA"
	case strings.HasPrefix(alg, "ES"), strings.HasPrefix(alg, "ECDH-ES"):
		return "EC"
	case strings.HasPrefix(alg, "HS"), strings.HasPrefix(alg, "A"), alg == "dir":
		// HS*, A128KW/A192KW/A256KW, A*GCMKW, dir
		return "oct"
	case alg == "EdDSA":
		return "OKP"
	default:
		return ""
	}
}

func keyType(key interface{}) string {
	switch key.(type) {
	case *rsa.PrivateKey, *rsa.PublicKey:
		return "RSA"
	case *ecdsa.PrivateKey, *ecdsa.PublicKey:
		return "EC"
	case ed25519.PrivateKey, ed25519.PublicKey:
		return "OKP"
	case []byte:
		return "oct"
	default:
		return ""
	}
}

// keyringOptions is the set of available options for Keyring functions
type keyringOptions struct {
	withKeyId string
}

// keyringDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func keyringDefaults() keyringOptions {
	return keyringOptions{}
}

// getKeyringOpts gets the defaults and applies the opt overrides passed in.
func getKeyringOpts(opt ...Option) keyringOptions {
	opts := keyringDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithKeyId selects a specific key by its key id.
func WithKeyId(kid string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *keyringOptions:
			v.withKeyId = kid
		case *reqOptions:
			v.withKeyId = kid
		}
	}
}
