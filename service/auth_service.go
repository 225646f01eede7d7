package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

const oauthStateBytes = 16

// AuthService drives the session through the authentication state machine
type AuthService struct {
	sessions *SessionStore
	nonces   *NonceIssuer
	verifier ports.Verifier
	linker   *Linker
	eventPub ports.EventPublisher

	stalenessWindow   time.Duration
	maxVerifyAttempts int
	random            io.Reader
	now               func() time.Time
	logger            *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	sessions *SessionStore,
	nonces *NonceIssuer,
	verifier ports.Verifier,
	linker *Linker,
	eventPub ports.EventPublisher,
	opts Options,
) *AuthService {
	opts = opts.withDefaults()
	if linker == nil {
		linker = NewLinker()
	}
	if eventPub == nil {
		eventPub = nopPublisher{}
	}
	return &AuthService{
		sessions:          sessions,
		nonces:            nonces,
		verifier:          verifier,
		linker:            linker,
		eventPub:          eventPub,
		stalenessWindow:   opts.StalenessWindow,
		maxVerifyAttempts: opts.MaxVerifyAttempts,
		random:            rand.Reader,
		now:               opts.Now,
		logger:            opts.Logger,
	}
}

// IssueNonce puts a fresh challenge on the caller's session
func (s *AuthService) IssueNonce(ctx context.Context, token string) (string, string, error) {
	var nonce string
	newToken, err := s.sessions.Do(ctx, token, func(session *core.Session) error {
		var err error
		nonce, err = s.nonces.Issue(session)
		return err
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to issue nonce: %w", err)
	}
	return newToken, nonce, nil
}

// Verify checks a signed challenge against the session's nonce and, on
// success, promotes the session to authenticated.
//
// Nonce mismatches and expired challenges clear the nonce so a new one must
// be issued. An invalid signature keeps it until MaxVerifyAttempts is reached.
func (s *AuthService) Verify(ctx context.Context, token string, message string, signature string) (string, core.Identity, error) {
	var (
		identity core.Identity
		verified *core.VerifiedChallenge
		sid      string
	)

	newToken, err := s.sessions.Do(ctx, token, func(session *core.Session) error {
		sid = session.ID
		if session.Nonce == "" {
			return core.ErrNonceMismatch
		}

		result, err := s.verifier.Verify(core.VerifyRequest{
			Message:       message,
			Signature:     signature,
			ExpectedNonce: session.Nonce,
		})
		if errors.Is(err, core.ErrNonceMismatch) {
			session.ClearNonce()
			return err
		}
		if s.now().Sub(session.IssuedAt) > s.stalenessWindow {
			session.ClearNonce()
			return core.ErrChallengeExpired
		}

		switch {
		case errors.Is(err, core.ErrChallengeExpired):
			session.ClearNonce()
			return err
		case err != nil:
			session.FailedAttempts++
			if session.FailedAttempts >= s.maxVerifyAttempts {
				session.ClearNonce()
			}
			return err
		}

		session.ClearNonce()
		session.Address = result.Address
		session.ChainID = result.ChainID
		session.Authenticated = true
		session.Identities = nil
		verified = result
		identity = session.Identity()
		return nil
	})
	if err != nil {
		if core.IsAuthFailure(err) {
			s.logger.Info("challenge verification failed", "session_id", sid, "reason", core.Kind(err), "err", err)
		}
		return newToken, core.Unauthenticated, err
	}

	if err := s.eventPub.PublishAuthenticated(ctx, verified.Address, sid, verified.ChainID); err != nil {
		s.logger.Warn("failed to publish authenticated event", "err", err)
	}

	return newToken, identity, nil
}

// CurrentIdentity reports who the caller is. It never fails: storage faults
// are logged and reported as unauthenticated.
func (s *AuthService) CurrentIdentity(ctx context.Context, token string) core.Identity {
	session, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		s.logger.Error("failed to resolve session", "err", err)
		return core.Unauthenticated
	}
	if session == nil {
		return core.Unauthenticated
	}
	return session.Identity()
}

// Logout destroys the caller's session. It is idempotent.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	session, err := s.sessions.Destroy(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	if session == nil {
		return nil
	}

	// Publish logout event for cross-instance notifications
	if err := s.eventPub.PublishLogout(ctx, session.Address, session.ID); err != nil {
		s.logger.Warn("failed to publish logout event", "err", err)
	}
	return nil
}

// AuthorizeURL starts an identity link: it records an OAuth state on the
// authenticated session and returns the provider consent URL.
func (s *AuthService) AuthorizeURL(ctx context.Context, token string, provider string) (string, error) {
	exchanger, err := s.linker.Exchanger(provider)
	if err != nil {
		return "", err
	}

	var url string
	_, err = s.sessions.Update(ctx, token, func(session *core.Session) error {
		if !session.IsAuthenticated() {
			return core.ErrPreconditionFailed
		}
		state, err := randomToken(s.random, oauthStateBytes)
		if err != nil {
			return err
		}
		session.OAuthState = state
		url = exchanger.AuthCodeURL(state)
		return nil
	})
	if errors.Is(err, core.ErrSessionNotFound) {
		return "", core.ErrPreconditionFailed
	}
	if err != nil {
		return "", err
	}
	return url, nil
}

// Link exchanges an authorization code and attaches the external identity to
// the authenticated session. The session must hold the state recorded by
// AuthorizeURL. Failures leave the session as it was.
func (s *AuthService) Link(ctx context.Context, token string, provider string, code string, state string) (core.Identity, error) {
	if _, err := s.linker.Exchanger(provider); err != nil {
		return core.Unauthenticated, err
	}

	var (
		identity core.Identity
		linked   *core.ExternalIdentity
		session  *core.Session
	)
	_, err := s.sessions.Update(ctx, token, func(sess *core.Session) error {
		if !sess.IsAuthenticated() {
			return core.ErrPreconditionFailed
		}
		// a callback is only accepted for a link this session started
		if sess.OAuthState == "" {
			return fmt.Errorf("%w: no link in progress", core.ErrPreconditionFailed)
		}
		if subtle.ConstantTimeCompare([]byte(sess.OAuthState), []byte(state)) != 1 {
			return fmt.Errorf("%w: state mismatch", core.ErrOAuthExchangeFailure)
		}

		ext, err := s.linker.Link(ctx, provider, code)
		if err != nil {
			return err
		}

		identities := maps.Clone(sess.Identities)
		if identities == nil {
			identities = make(map[string]core.ExternalIdentity, 1)
		}
		identities[provider] = *ext
		sess.Identities = identities
		sess.OAuthState = ""

		linked, session = ext, sess
		identity = sess.Identity()
		return nil
	})
	if errors.Is(err, core.ErrSessionNotFound) {
		return core.Unauthenticated, core.ErrPreconditionFailed
	}
	if err != nil {
		if errors.Is(err, core.ErrOAuthExchangeFailure) {
			s.logger.Info("identity link failed", "provider", provider, "err", err)
		}
		return core.Unauthenticated, err
	}

	if err := s.eventPub.PublishLinked(ctx, session.Address, session.ID, provider, linked.ID); err != nil {
		s.logger.Warn("failed to publish linked event", "err", err)
	}
	return identity, nil
}

type nopPublisher struct{}

func (nopPublisher) PublishAuthenticated(context.Context, string, string, int64) error { return nil }
func (nopPublisher) PublishLinked(context.Context, string, string, string, string) error {
	return nil
}
func (nopPublisher) PublishLogout(context.Context, string, string) error { return nil }
