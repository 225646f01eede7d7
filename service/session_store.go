package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

// SessionStore scopes access to one session for the duration of a request
type SessionStore struct {
	store     ports.Store
	tokenizer ports.Tokenizer
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewSessionStore creates a new session store
func NewSessionStore(store ports.Store, tokenizer ports.Tokenizer, opts Options) *SessionStore {
	opts = opts.withDefaults()
	return &SessionStore{
		store:     store,
		tokenizer: tokenizer,
		ttl:       opts.SessionTTL,
		now:       opts.Now,
		logger:    opts.Logger,
	}
}

// Resolve returns the live session named by token, or nil when there is none.
// Forged, altered and expired tokens resolve to nil; only storage faults
// are returned as errors.
func (s *SessionStore) Resolve(ctx context.Context, token string) (*core.Session, error) {
	if token == "" {
		return nil, nil
	}

	id, err := s.tokenizer.TokenToSessionID(token)
	if err != nil {
		s.logger.Warn("rejected session token", "err", err)
		return nil, nil
	}

	session, err := s.store.Load(ctx, id)
	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		return nil, nil
	case errors.Is(err, core.ErrStorageIntegrity):
		s.logger.Warn("discarding corrupt session slot", "session_id", id, "err", err)
		return nil, nil
	case err != nil:
		return nil, err
	}

	if !s.now().Before(session.ExpiresAt) {
		return nil, nil
	}
	return session, nil
}

// Do runs fn against the caller's session, creating a fresh one when the
// token does not resolve. The session is persisted when fn returns, whether
// or not it returned an error, if it was created or changed. A panic in fn
// unwinds before anything is written.
//
// The returned token names the session and should be handed back to the client.
func (s *SessionStore) Do(ctx context.Context, token string, fn func(*core.Session) error) (string, error) {
	session, err := s.Resolve(ctx, token)
	if err != nil {
		return "", err
	}

	created := false
	if session == nil {
		session = core.NewSession(uuid.New().String(), s.now(), s.ttl)
		created = true
	}

	return s.run(ctx, token, session, created, fn)
}

// Update is like Do but requires an existing session; it returns
// core.ErrSessionNotFound otherwise.
func (s *SessionStore) Update(ctx context.Context, token string, fn func(*core.Session) error) (string, error) {
	session, err := s.Resolve(ctx, token)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", core.ErrSessionNotFound
	}

	return s.run(ctx, token, session, false, fn)
}

func (s *SessionStore) run(ctx context.Context, token string, session *core.Session, created bool, fn func(*core.Session) error) (string, error) {
	before := session.Clone()

	fnErr := fn(session)

	if !created && session.Equal(before) {
		return token, fnErr
	}

	remaining := session.ExpiresAt.Sub(s.now())
	if err := s.store.Save(ctx, session, remaining); err != nil {
		return "", fmt.Errorf("failed to persist session: %w", err)
	}

	if created {
		newToken, err := s.tokenizer.SessionToToken(session)
		if err != nil {
			return "", fmt.Errorf("failed to issue session token: %w", err)
		}
		return newToken, fnErr
	}
	return token, fnErr
}

// Destroy removes the session named by token and returns what it held.
// Destroying an unknown or already destroyed session is a no-op.
func (s *SessionStore) Destroy(ctx context.Context, token string) (*core.Session, error) {
	session, err := s.Resolve(ctx, token)
	if err != nil || session == nil {
		return nil, err
	}

	if err := s.store.Delete(ctx, session.ID); err != nil {
		return nil, fmt.Errorf("failed to delete session: %w", err)
	}
	return session, nil
}
