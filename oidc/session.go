package oidc

import (
	"fmt"
	"sync"

	"github.com/oidcware/rp/oidc/internal/strutils"
)

// Session is the evolving record for one authorization attempt, keyed by its
// opaque state value. It is created when a request is constructed for the
// state and mutated as the flow progresses: request construction adds the
// PKCE verifier and nonce, response processing adds the response and tokens.
//
// The Nonce set at authorization time must equal the nonce echoed in any
// later id_token tied to the same state; a mismatch means the session has
// been tampered with.
type Session struct {
	// Request is the request record issued for this state.
	Request *Record

	// Response is the most recent parsed response for this state.
	Response map[string]interface{}

	// Token holds the tokens issued for this state, if any.
	Token *Token

	// CodeVerifier is the PKCE verifier generated at authorization time, for
	// retrieval at token-exchange time.
	CodeVerifier string

	// CodeChallengeMethod is the PKCE transform used for CodeVerifier.
	CodeChallengeMethod ChallengeMethod

	// Nonce is the nonce issued with the authorization request.
	Nonce string
}

// SessionStore maps an opaque state key to its Session. There is one logical
// store per Client, shared by every service constructed for it, so updates
// made while processing a response are visible to later requests for the
// same state. It is safe for concurrent use; writes keyed by distinct states
// never conflict.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: map[string]*Session{},
	}
}

// Put stores the session under the given state, replacing any existing
// session for that state.
func (s *SessionStore) Put(state string, session *Session) error {
	const op = "SessionStore.Put"
	if state == "" {
		return fmt.Errorf("%s: state is empty: %w", op, ErrInvalidParameter)
	}
	if session == nil {
		return fmt.Errorf("%s: session is nil: %w", op, ErrNilParameter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state] = session
	return nil
}

// Get returns a snapshot of the session stored under the given state. An
// unknown state returns ErrNotFound; reads never create a session. Use
// Update to mutate a stored session.
func (s *SessionStore) Get(state string) (*Session, error) {
	const op = "SessionStore.Get"
	if state == "" {
		return nil, fmt.Errorf("%s: state is empty: %w", op, ErrInvalidParameter)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[state]
	if !ok {
		return nil, fmt.Errorf("%s: state %q: %w", op, state, ErrNotFound)
	}
	cp := *session
	return &cp, nil
}

// Update merges the non-zero fields of partial into the session stored under
// state. Update is a write path: an unknown state creates the session
// implicitly.
func (s *SessionStore) Update(state string, partial *Session) error {
	const op = "SessionStore.Update"
	if state == "" {
		return fmt.Errorf("%s: state is empty: %w", op, ErrInvalidParameter)
	}
	if partial == nil {
		return fmt.Errorf("%s: session is nil: %w", op, ErrNilParameter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[state]
	if !ok {
		session = &Session{}
		s.sessions[state] = session
	}
	if partial.Request != nil {
		session.Request = partial.Request
	}
	if partial.Response != nil {
		session.Response = partial.Response
	}
	if partial.Token != nil {
		session.Token = partial.Token
	}
	if partial.CodeVerifier != "" {
		session.CodeVerifier = partial.CodeVerifier
	}
	if partial.CodeChallengeMethod != "" {
		session.CodeChallengeMethod = partial.CodeChallengeMethod
	}
	if partial.Nonce != "" {
		session.Nonce = partial.Nonce
	}
	return nil
}

// GetToken scans the stored sessions for a valid token matching the given
// selector. When a token response carried no scope of its own, the scopes of
// the session's issued request are consulted instead. No match returns
// ErrNotFound.
//
// Supported options: WithScope
func (s *SessionStore) GetToken(opt ...Option) (*Token, error) {
	const op = "SessionStore.GetToken"
	opts := getSessionOpts(opt...)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		t := session.Token
		if !t.Valid() {
			continue
		}
		if opts.withScope == "" {
			return t, nil
		}
		scopes := t.Scopes
		if len(scopes) == 0 && session.Request != nil {
			scopes = session.Request.GetStrings("scope")
		}
		if strutils.StrListContains(scopes, opts.withScope) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%s: no valid token for scope %q: %w", op, opts.withScope, ErrNotFound)
}

// IdToken scans the stored sessions for an id_token, preferring sessions
// whose token is still valid. No id_token returns ErrNotFound.
func (s *SessionStore) IdToken() (IdToken, error) {
	const op = "SessionStore.IdToken"
	s.mu.RLock()
	defer s.mu.RUnlock()
	var fallback IdToken
	for _, session := range s.sessions {
		if session.Token == nil || session.Token.IdToken == "" {
			continue
		}
		if session.Token.Valid() {
			return session.Token.IdToken, nil
		}
		fallback = session.Token.IdToken
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("%s: no id_token available: %w", op, ErrNotFound)
}

// sessionOptions is the set of available options for SessionStore functions
type sessionOptions struct {
	withScope string
}

// sessionDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func sessionDefaults() sessionOptions {
	return sessionOptions{}
}

// getSessionOpts gets the defaults and applies the opt overrides passed in.
func getSessionOpts(opt ...Option) sessionOptions {
	opts := sessionDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScope selects a stored token by the scope it was granted for. It is
// supported by SessionStore.GetToken and the UserInfo service.
func WithScope(scope string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *sessionOptions:
			v.withScope = scope
		case *reqOptions:
			v.withScope = scope
		}
	}
}
