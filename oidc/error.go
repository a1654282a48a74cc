package oidc

import (
	"errors"
)

var (
	ErrInvalidParameter           = errors.New("invalid parameter")
	ErrNilParameter               = errors.New("nil parameter")
	ErrInvalidCACert              = errors.New("invalid CA certificate")
	ErrIdGeneratorFailed          = errors.New("id generation failed")
	ErrNotFound                   = errors.New("not found")
	ErrMissingRequiredAttribute   = errors.New("missing required attribute")
	ErrMissingParameter           = errors.New("missing parameter")
	ErrConfiguration              = errors.New("configuration error")
	ErrUnsupportedChallengeMethod = errors.New("unsupported challenge method")
	ErrUnsupportedAuthnMethod     = errors.New("unsupported authentication method")
	ErrInvalidNonce               = errors.New("invalid nonce")
	ErrInvalidIssuer              = errors.New("invalid issuer")
	ErrMissingIdToken             = errors.New("id_token is missing")
	ErrMissingEndpoint            = errors.New("endpoint is missing")
	ErrUnknownService             = errors.New("unknown service")
)
