package oidc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// requestUriNameLen is the random-token length of request-object file names.
const requestUriNameLen = 10

// ProtectRequestObject wraps the request record as a compact request object:
// always signed (alg "none" produces an unsigned envelope), then encrypted
// when an encryption algorithm is supplied.
//
// Signing keys come from WithKeys when given, else from the keyring by the
// algorithm-derived key type and optional WithKeyId. Encryption requires
// WithEncryption (alg and enc) plus WithTarget naming the key owner; a
// missing enc or target fails with ErrMissingRequiredAttribute.
func ProtectRequestObject(rec *Record, keyring *Keyring, alg string, opt ...Option) (string, error) {
	const op = "oidc.ProtectRequestObject"
	if rec == nil {
		return "", fmt.Errorf("%s: record is nil: %w", op, ErrNilParameter)
	}
	opts := getReqOpts(opt...)

	var raw string
	switch {
	case alg == "" || alg == "none":
		var err error
		raw, err = unsecuredJWT(rec)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	default:
		keys := opts.withKeys
		if len(keys) == 0 {
			if keyring == nil {
				return "", fmt.Errorf("%s: keyring is nil: %w", op, ErrNilParameter)
			}
			var err error
			keys, err = keyring.SigningKeys(alg, WithKeyId(opts.withKeyId))
			if err != nil {
				return "", fmt.Errorf("%s: %w", op, err)
			}
		}
		signer, err := jose.NewSigner(
			jose.SigningKey{Algorithm: jose.SignatureAlgorithm(alg), Key: keys[0]},
			(&jose.SignerOptions{}).WithType("JWT"),
		)
		if err != nil {
			return "", fmt.Errorf("%s: unable to create signer: %w", op, err)
		}
		raw, err = jwt.Signed(signer).Claims(rec.Map()).Serialize()
		if err != nil {
			return "", fmt.Errorf("%s: unable to sign request object: %w", op, err)
		}
	}

	if opts.withEncryptionAlg == "" {
		return raw, nil
	}
	return encryptRequestObject(raw, keyring, opts)
}

// encryptRequestObject re-wraps the signed object as a compact JWE for the
// target owner's encryption key.
func encryptRequestObject(raw string, keyring *Keyring, opts reqOptions) (string, error) {
	const op = "oidc.encryptRequestObject"
	if opts.withEncryptionEnc == "" {
		return "", fmt.Errorf("%s: no request_object_encryption_enc specified: %w", op, ErrMissingRequiredAttribute)
	}
	if opts.withTarget == "" {
		return "", fmt.Errorf("%s: no target specified: %w", op, ErrMissingRequiredAttribute)
	}
	if keyring == nil {
		return "", fmt.Errorf("%s: keyring is nil: %w", op, ErrNilParameter)
	}
	var kidOpts []Option
	if opts.withEncryptionKeyId != "" {
		kidOpts = append(kidOpts, WithKeyId(opts.withEncryptionKeyId))
	}
	keys, err := keyring.EncryptionKeys(opts.withEncryptionAlg, opts.withTarget, kidOpts...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	encrypter, err := jose.NewEncrypter(
		jose.ContentEncryption(opts.withEncryptionEnc),
		jose.Recipient{Algorithm: jose.KeyAlgorithm(opts.withEncryptionAlg), Key: &keys[0]},
		(&jose.EncrypterOptions{}).WithContentType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("%s: unable to create encrypter: %w", op, err)
	}
	obj, err := encrypter.Encrypt([]byte(raw))
	if err != nil {
		return "", fmt.Errorf("%s: unable to encrypt request object: %w", op, err)
	}
	out, err := obj.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("%s: unable to serialize request object: %w", op, err)
	}
	return out, nil
}

// unsecuredJWT renders the record as an RFC 7519 unsecured JWT (alg "none",
// empty signature part).
func unsecuredJWT(rec *Record) (string, error) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("unsecuredJWT: unable to marshal claims: %w", err)
	}
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".", nil
}

// constructRequestUri picks a collision-free file name under localDir for a
// by-reference request object and returns both the file path and the public
// URL it will be served under. Each file is write-once; a name collision is
// retried with a fresh random name.
func constructRequestUri(localDir, basePath string) (filename string, webname string, err error) {
	const op = "oidc.constructRequestUri"
	if localDir == "" || basePath == "" {
		return "", "", fmt.Errorf("%s: requests dir or base url not configured: %w", op, ErrConfiguration)
	}
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return "", "", fmt.Errorf("%s: unable to create requests dir: %w", op, err)
	}
	for {
		tk, err := randToken(requestUriNameLen)
		if err != nil {
			return "", "", fmt.Errorf("%s: %w", op, err)
		}
		name := tk + ".jwt"
		filename = filepath.Join(localDir, name)
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			webname = strings.TrimSuffix(basePath, "/") + "/" + name
			return filename, webname, nil
		}
	}
}
