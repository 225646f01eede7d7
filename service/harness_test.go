package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/walletauth/adapters/store"
	"github.com/layer-3/walletauth/adapters/tokenizer"
	"github.com/layer-3/walletauth/adapters/verifier"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/testwallet"
	"github.com/stretchr/testify/require"
)

type harness struct {
	now       time.Time
	store     *store.MemoryStore
	sessions  *SessionStore
	nonces    *NonceIssuer
	auth      *AuthService
	events    *recordingPublisher
	exchanger *fakeExchanger
	wallet    *testwallet.Wallet
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		now:       time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC),
		events:    &recordingPublisher{},
		exchanger: &fakeExchanger{},
		wallet:    testwallet.New(t),
	}
	clock := func() time.Time { return h.now }

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	opts.Now = clock
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	h.store = store.NewMemoryStore(clock)
	h.sessions = NewSessionStore(h.store, tokenizer.NewJWTTokenizer(key, "walletauth", clock), opts)
	h.nonces = NewNonceIssuer(clock)
	h.auth = NewAuthService(
		h.sessions,
		h.nonces,
		verifier.NewEthVerifier(verifier.Config{
			Domain:          "example.com",
			AllowedChainIDs: []int64{1, 137},
			StalenessWindow: opts.StalenessWindow,
			ClockSkew:       time.Minute,
			Now:             clock,
		}),
		NewLinker(h.exchanger),
		h.events,
		opts,
	)
	return h
}

func (h *harness) message(nonce string, chainID int64) string {
	m := &verifier.Message{
		Domain:    "example.com",
		Address:   h.wallet.Address(),
		Statement: "Sign in to Example.",
		URI:       "https://example.com",
		Version:   verifier.MessageVersion,
		ChainID:   chainID,
		Nonce:     nonce,
		IssuedAt:  h.now,
	}
	return m.String()
}

// login runs the full challenge flow and returns the session token
func (h *harness) login(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	token, nonce, err := h.auth.IssueNonce(ctx, "")
	require.NoError(t, err)

	msg := h.message(nonce, 1)
	_, _, err = h.auth.Verify(ctx, token, msg, h.wallet.Sign(t, msg))
	require.NoError(t, err)
	return token
}

// startLink begins a GitHub link on token and returns the OAuth state
func (h *harness) startLink(t *testing.T, token string) string {
	t.Helper()
	_, err := h.auth.AuthorizeURL(context.Background(), token, core.ProviderGitHub)
	require.NoError(t, err)
	return h.session(t, token).OAuthState
}

func (h *harness) session(t *testing.T, token string) *core.Session {
	t.Helper()
	s, err := h.sessions.Resolve(context.Background(), token)
	require.NoError(t, err)
	return s
}

type recordingPublisher struct {
	mu            sync.Mutex
	authenticated []string
	linked        []string
	logouts       []string
	err           error
}

func (p *recordingPublisher) PublishAuthenticated(_ context.Context, address string, _ string, _ int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authenticated = append(p.authenticated, address)
	return p.err
}

func (p *recordingPublisher) PublishLinked(_ context.Context, _ string, _ string, provider string, externalID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.linked = append(p.linked, provider+":"+externalID)
	return p.err
}

func (p *recordingPublisher) PublishLogout(_ context.Context, address string, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logouts = append(p.logouts, address)
	return p.err
}

type fakeExchanger struct {
	calls int
	err   error
}

func (f *fakeExchanger) Provider() string { return core.ProviderGitHub }

func (f *fakeExchanger) AuthCodeURL(state string) string {
	return "https://github.com/login/oauth/authorize?state=" + state
}

func (f *fakeExchanger) ExchangeCode(_ context.Context, code string) (*core.ExternalIdentity, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if code != "good-code" {
		return nil, core.ErrOAuthExchangeFailure
	}
	return &core.ExternalIdentity{ID: "583231", Handle: "octocat"}, nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy source unavailable") }

type failingStore struct {
	*store.MemoryStore
	failDelete bool
	failSave   bool
}

func (s *failingStore) Save(ctx context.Context, session *core.Session, ttl time.Duration) error {
	if s.failSave {
		return core.ErrStoreOperationFailed
	}
	return s.MemoryStore.Save(ctx, session, ttl)
}

func (s *failingStore) Delete(ctx context.Context, id string) error {
	if s.failDelete {
		return core.ErrStoreOperationFailed
	}
	return s.MemoryStore.Delete(ctx, id)
}
