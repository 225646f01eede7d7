package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/adapters/store"
	"github.com/layer-3/walletauth/adapters/tokenizer"
	"github.com/layer-3/walletauth/adapters/verifier"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/testwallet"
	"github.com/layer-3/walletauth/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCookie = "walletauth_session"

type stubExchanger struct{}

func (stubExchanger) Provider() string { return core.ProviderGitHub }

func (stubExchanger) AuthCodeURL(state string) string {
	return "https://github.com/login/oauth/authorize?state=" + state
}

func (stubExchanger) ExchangeCode(_ context.Context, code string) (*core.ExternalIdentity, error) {
	if code != "good-code" {
		return nil, core.ErrOAuthExchangeFailure
	}
	return &core.ExternalIdentity{ID: "583231", Handle: "octocat"}, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := service.Options{Logger: logger}

	sessions := service.NewSessionStore(store.NewMemoryStore(nil), tokenizer.NewJWTTokenizer(key, "walletauth", nil), opts)
	authService := service.NewAuthService(
		sessions,
		service.NewNonceIssuer(nil),
		verifier.NewEthVerifier(verifier.Config{Domain: "example.com", ClockSkew: time.Minute}),
		service.NewLinker(stubExchanger{}),
		nil,
		opts,
	)

	return SetupRouter(authService, CookieConfig{Name: testCookie, MaxAge: 3600}, logger)
}

type client struct {
	t      *testing.T
	router *gin.Engine
	cookie *http.Cookie
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name != testCookie {
			continue
		}
		if ck.Value == "" || ck.MaxAge < 0 {
			c.cookie = nil
		} else {
			c.cookie = ck
		}
	}
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func signIn(t *testing.T, wallet *testwallet.Wallet, nonce string) map[string]string {
	m := &verifier.Message{
		Domain:    "example.com",
		Address:   wallet.Address(),
		Statement: "Sign in to Example.",
		URI:       "https://example.com",
		Version:   verifier.MessageVersion,
		ChainID:   1,
		Nonce:     nonce,
		IssuedAt:  time.Now().UTC().Truncate(time.Second),
	}
	text := m.String()
	return map[string]string{"message": text, "signature": wallet.Sign(t, text)}
}

func login(t *testing.T, c *client, wallet *testwallet.Wallet) {
	t.Helper()
	rec := c.do(http.MethodGet, "/auth/nonce", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	nonce := decode(t, rec)["nonce"].(string)

	rec = c.do(http.MethodPost, "/auth/verify", signIn(t, wallet, nonce))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSignInScenario(t *testing.T) {
	c := &client{t: t, router: newTestRouter(t)}
	wallet := testwallet.New(t)

	rec := c.do(http.MethodGet, "/auth/session", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	rec = c.do(http.MethodGet, "/auth/nonce", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, c.cookie, "nonce issue sets the session cookie")
	assert.True(t, c.cookie.HttpOnly)
	nonce := decode(t, rec)["nonce"].(string)

	rec = c.do(http.MethodPost, "/auth/verify", signIn(t, wallet, nonce))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"address":"`+wallet.LowerAddress()+`","authenticated":true}`, rec.Body.String())

	rec = c.do(http.MethodGet, "/auth/session", nil)
	body := decode(t, rec)
	assert.Equal(t, wallet.LowerAddress(), body["address"])
	assert.Equal(t, true, body["authenticated"])
	assert.NotContains(t, rec.Body.String(), nonce)

	rec = c.do(http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wallet.LowerAddress(), decode(t, rec)["address"])

	saved := c.cookie
	rec = c.do(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Nil(t, c.cookie, "logout clears the cookie")

	// an old copy of the cookie is dead as well
	c.cookie = saved
	rec = c.do(http.MethodGet, "/auth/session", nil)
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	rec = c.do(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestVerifyFailures(t *testing.T) {
	c := &client{t: t, router: newTestRouter(t)}
	wallet := testwallet.New(t)

	rec := c.do(http.MethodPost, "/auth/verify", map[string]string{"message": "only"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodGet, "/auth/nonce", nil)
	nonce := decode(t, rec)["nonce"].(string)

	req := signIn(t, wallet, nonce)
	req["signature"] = "0x1234"
	rec = c.do(http.MethodPost, "/auth/verify", req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"InvalidSignature"}`, rec.Body.String())

	rec = c.do(http.MethodPost, "/auth/verify", signIn(t, wallet, "0000000000000000"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"NonceMismatch"}`, rec.Body.String())

	// the mismatch consumed the challenge
	rec = c.do(http.MethodPost, "/auth/verify", signIn(t, wallet, nonce))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"NonceMismatch"}`, rec.Body.String())

	rec = c.do(http.MethodGet, "/auth/session", nil)
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())
}

func TestTamperedCookieIsUnauthenticated(t *testing.T) {
	c := &client{t: t, router: newTestRouter(t)}
	login(t, c, testwallet.New(t))

	value := []byte(c.cookie.Value)
	i := len(value) - 3
	if value[i] == 'A' {
		value[i] = 'B'
	} else {
		value[i] = 'A'
	}
	c.cookie = &http.Cookie{Name: testCookie, Value: string(value)}

	rec := c.do(http.MethodGet, "/auth/session", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	rec = c.do(http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerToken(t *testing.T) {
	router := newTestRouter(t)
	c := &client{t: t, router: router}
	wallet := testwallet.New(t)
	login(t, c, wallet)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+c.cookie.Value)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wallet.LowerAddress(), decode(t, rec)["address"])
}

func TestLinkEndpoints(t *testing.T) {
	c := &client{t: t, router: newTestRouter(t)}

	rec := c.do(http.MethodGet, "/auth/github/callback?code=good-code", nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.JSONEq(t, `{"error":"PreconditionFailed"}`, rec.Body.String())

	rec = c.do(http.MethodGet, "/auth/github/login", nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	login(t, c, testwallet.New(t))

	rec = c.do(http.MethodGet, "/auth/gitlab/callback?code=good-code", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodGet, "/auth/github/callback", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// a callback the session never started is refused
	rec = c.do(http.MethodGet, "/auth/github/callback?code=good-code", nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.JSONEq(t, `{"error":"PreconditionFailed"}`, rec.Body.String())
	rec = c.do(http.MethodGet, "/auth/session", nil)
	assert.NotContains(t, rec.Body.String(), "githubIdentity")

	rec = c.do(http.MethodGet, "/auth/github/login", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	rec = c.do(http.MethodGet, "/auth/github/callback?code=bad-code&state="+state, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"OAuthExchangeFailure"}`, rec.Body.String())

	rec = c.do(http.MethodGet, "/auth/github/callback?code=good-code&state=forged", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = c.do(http.MethodGet, "/auth/github/callback?code=good-code&state="+state, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/auth/session", nil)
	body := decode(t, rec)
	github, ok := body["githubIdentity"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	assert.Equal(t, "octocat", github["handle"])
	assert.Equal(t, "583231", github["id"])
}
