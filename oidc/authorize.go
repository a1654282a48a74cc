package oidc

import (
	"fmt"
	"net/http"
	"os"
	"strings"
)

// nonceLen is the length of generated nonce values.
const nonceLen = 32

// AuthorizationService constructs oidc authorization requests.
type AuthorizationService struct {
	baseService
}

// NewAuthorizationService creates an Authorization service.
func NewAuthorizationService() *AuthorizationService {
	return &AuthorizationService{baseService{
		kind:         ServiceAuthorization,
		endpointName: "authorization_endpoint",
		httpMethod:   http.MethodGet,
		schema:       authorizationSchema,
	}}
}

// Construct builds the authorization request record. The default scope is
// ["openid"]. A nonce is generated whenever caller args carry a
// token-bearing response_type without one, when no args are supplied at
// all, or when WithResponseType names a token-bearing response type: a
// nonce is always safe to add, never wrong.
//
// When WithRequestMode is given the record is wrapped as a protected
// request object (signed per WithSigningAlg, the negotiated
// request_object_signing_alg, or "none"; optionally encrypted) and
// transmitted inline or persisted and passed by reference. When the client
// is configured for PKCE the code challenge is computed and attached before
// finalizing.
//
// Supported options: WithState, WithResponseType, WithUILocales,
// WithRequestMode, WithSigningAlg, WithKeys, WithKeyId, WithEncryption,
// WithEncryptionKeyId, WithTarget
func (s *AuthorizationService) Construct(client *Client, requestArgs map[string]interface{}, opt ...Option) (*Record, error) {
	const op = "AuthorizationService.Construct"
	if client == nil {
		return nil, fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	opts := getReqOpts(opt...)
	rec := argsToRecord(requestArgs)

	var nonce string
	needNonce := false
	switch {
	case len(requestArgs) > 0:
		if !rec.Has("nonce") && tokenBearing(strings.Join(rec.GetStrings("response_type"), " ")) {
			needNonce = true
		}
	case opts.withResponseType != "":
		needNonce = tokenBearing(opts.withResponseType)
	default:
		// Never wrong to specify a nonce.
		needNonce = true
	}
	if needNonce {
		var err error
		nonce, err = randToken(nonceLen)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to generate nonce: %w", op, err)
		}
		rec.Set("nonce", nonce)
	} else {
		nonce = rec.GetString("nonce")
	}

	if !rec.Has("response_type") {
		switch {
		case opts.withResponseType != "":
			rec.Set("response_type", opts.withResponseType)
		default:
			rec.Set("response_type", "code")
		}
	}
	if !rec.Has("scope") {
		rec.Set("scope", []string{"openid"})
	}
	if !rec.Has("client_id") {
		rec.Set("client_id", client.ClientId())
	}
	if !rec.Has("redirect_uri") {
		rec.Set("redirect_uri", client.Config().RedirectUris[0])
	}
	if len(opts.withUILocales) > 0 && !rec.Has("ui_locales") {
		rec.Set("ui_locales", joinLocales(opts.withUILocales))
	}

	state := rec.GetString("state")
	if state == "" {
		state = opts.withState
	}
	if state == "" {
		var err error
		state, err = NewId(WithPrefix("st"))
		if err != nil {
			return nil, fmt.Errorf("%s: unable to generate state: %w", op, err)
		}
	}
	rec.Set("state", state)

	if err := rec.Validate(s.schema); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if client.Config().CodeChallenge != nil && !rec.Has("code_challenge") {
		args, err := client.AddCodeChallenge(state)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		rec.Set("code_challenge", args["code_challenge"])
		rec.Set("code_challenge_method", args["code_challenge_method"])
	}

	if opts.withRequestMode != "" {
		if err := s.wrapRequestObject(client, rec, opts); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := client.Sessions().Update(state, &Session{
		Request: rec,
		Nonce:   nonce,
	}); err != nil {
		return nil, fmt.Errorf("%s: unable to store session: %w", op, err)
	}
	return rec, nil
}

// wrapRequestObject signs (and optionally encrypts) the authorization
// record and attaches it inline as "request" or by reference as
// "request_uri".
func (s *AuthorizationService) wrapRequestObject(client *Client, rec *Record, opts reqOptions) error {
	const op = "AuthorizationService.wrapRequestObject"

	// Explicit opt trumps behaviour; unsigned envelope as the last resort.
	alg := opts.withSigningAlg
	if alg == "" {
		alg = client.BehaviourString("request_object_signing_alg")
	}
	if alg == "" {
		alg = "none"
	}

	encAlg := opts.withEncryptionAlg
	if encAlg == "" {
		encAlg = client.BehaviourString("request_object_encryption_alg")
	}
	encEnc := opts.withEncryptionEnc
	if encEnc == "" {
		encEnc = client.BehaviourString("request_object_encryption_enc")
	}

	protectOpts := []Option{
		WithKeys(opts.withKeys...),
		WithKeyId(opts.withKeyId),
		WithEncryption(encAlg, encEnc),
		WithEncryptionKeyId(opts.withEncryptionKeyId),
		WithTarget(opts.withTarget),
	}
	obj, err := ProtectRequestObject(rec.Clone(), client.Keyring(), alg, protectOpts...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch opts.withRequestMode {
	case RequestModeInline:
		rec.Set("request", obj)
		return nil
	case RequestModeReference:
		var filename, webname string
		if registered := client.registeredRequestUris(); len(registered) > 0 {
			webname = registered[0]
			filename, err = client.filenameFromWebname(webname)
		} else {
			filename, webname, err = constructRequestUri(client.Config().RequestsDir, client.Config().RequestsBaseUrl)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := os.WriteFile(filename, []byte(obj), 0o644); err != nil {
			return fmt.Errorf("%s: unable to persist request object: %w", op, err)
		}
		rec.Set("request_uri", webname)
		return nil
	default:
		return fmt.Errorf("%s: request mode %q: %w", op, opts.withRequestMode, ErrInvalidParameter)
	}
}

// RequestParameters renders the constructed record as the authorization
// redirect URL. No client authentication applies to the front-channel
// request unless WithAuthnMethod asks for one.
func (s *AuthorizationService) RequestParameters(client *Client, requestArgs map[string]interface{}, opt ...Option) (*HTTPRequest, error) {
	const op = "AuthorizationService.RequestParameters"
	rec, err := s.Construct(client, requestArgs, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getReqOpts(opt...)
	req, err := s.render(client, rec, opts.withAuthnMethod)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return req, nil
}

// ProcessResponse stores the parsed authorization response under its state.
func (s *AuthorizationService) ProcessResponse(client *Client, state string, response map[string]interface{}) error {
	const op = "AuthorizationService.ProcessResponse"
	if client == nil {
		return fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	if err := client.Sessions().Update(state, &Session{Response: response}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// tokenBearing reports whether the response_type asks for a token or
// id_token directly from the authorization endpoint.
func tokenBearing(responseType string) bool {
	return strings.Contains(responseType, "token")
}
