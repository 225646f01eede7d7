package core

import (
	"maps"
	"time"
)

// State is the position of a session in the authentication state machine.
type State string

const (
	StateUnauthenticated State = "UNAUTHENTICATED"
	StateChallengeIssued State = "CHALLENGE_ISSUED"
	StateAuthenticated   State = "AUTHENTICATED"
	StateLinked          State = "LINKED"
	StateTerminated      State = "TERMINATED"
)

// ProviderGitHub is the provider name of the GitHub identity exchanger.
const ProviderGitHub = "github"

// ExternalIdentity is an account at an OAuth provider linked to a wallet session.
type ExternalIdentity struct {
	Provider string    `json:"provider"`
	ID       string    `json:"id"`
	Handle   string    `json:"handle"`
	LinkedAt time.Time `json:"linkedAt"`
}

// Session represents the authentication state held for one client
type Session struct {
	ID             string                      `json:"id"`
	Nonce          string                      `json:"nonce,omitempty"`
	Address        string                      `json:"address,omitempty"`
	ChainID        int64                       `json:"chainId"`
	IssuedAt       time.Time                   `json:"issuedAt"`
	Authenticated  bool                        `json:"authenticated"`
	FailedAttempts int                         `json:"failedAttempts,omitempty"`
	OAuthState     string                      `json:"oauthState,omitempty"`
	Identities     map[string]ExternalIdentity `json:"identities,omitempty"`
	CreatedAt      time.Time                   `json:"createdAt"`
	ExpiresAt      time.Time                   `json:"expiresAt"`
}

// NewSession returns an empty, unauthenticated session.
func NewSession(id string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// State derives the state machine position from the session fields.
func (s *Session) State() State {
	switch {
	case s == nil:
		return StateTerminated
	case s.Authenticated && len(s.Identities) > 0:
		return StateLinked
	case s.Authenticated:
		return StateAuthenticated
	case s.Nonce != "":
		return StateChallengeIssued
	default:
		return StateUnauthenticated
	}
}

// IsAuthenticated reports whether the session carries a verified wallet address.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Authenticated && s.Address != ""
}

// ClearNonce drops the pending challenge.
func (s *Session) ClearNonce() {
	s.Nonce = ""
	s.FailedAttempts = 0
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Identities != nil {
		out.Identities = maps.Clone(s.Identities)
	}
	return &out
}

// Equal reports whether two sessions hold the same state.
func (s *Session) Equal(o *Session) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.ID != o.ID || s.Nonce != o.Nonce || s.Address != o.Address ||
		s.ChainID != o.ChainID || !s.IssuedAt.Equal(o.IssuedAt) ||
		s.Authenticated != o.Authenticated || s.FailedAttempts != o.FailedAttempts ||
		s.OAuthState != o.OAuthState || !s.CreatedAt.Equal(o.CreatedAt) ||
		!s.ExpiresAt.Equal(o.ExpiresAt) || len(s.Identities) != len(o.Identities) {
		return false
	}
	for k, v := range s.Identities {
		w, ok := o.Identities[k]
		if !ok || w.Provider != v.Provider || w.ID != v.ID || w.Handle != v.Handle || !w.LinkedAt.Equal(v.LinkedAt) {
			return false
		}
	}
	return true
}

// Identity is the read-only view of a session exposed to callers.
// It never carries the nonce.
type Identity struct {
	Address        string            `json:"address,omitempty"`
	ChainID        int64             `json:"chainId,omitempty"`
	Authenticated  bool              `json:"authenticated"`
	GitHubIdentity *ExternalIdentity `json:"githubIdentity,omitempty"`
}

// Unauthenticated is the identity of a caller without a valid session.
var Unauthenticated = Identity{}

// Identity returns the public view of the session.
func (s *Session) Identity() Identity {
	if !s.IsAuthenticated() {
		return Unauthenticated
	}
	id := Identity{
		Address:       s.Address,
		ChainID:       s.ChainID,
		Authenticated: true,
	}
	if gh, ok := s.Identities[ProviderGitHub]; ok {
		id.GitHubIdentity = &gh
	}
	return id
}
