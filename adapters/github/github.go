package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"golang.org/x/oauth2"
	githubendpoint "golang.org/x/oauth2/github"
)

const (
	DefaultUserInfoURL = "https://api.github.com/user"

	maxUserInfoBytes = 1 << 20
)

// Config describes the GitHub OAuth application
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint and UserInfoURL default to GitHub's; they can be pointed at a
	// fake provider in tests.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
	HTTPClient  *http.Client
	Now         func() time.Time
}

// Exchanger implements ports.IdentityExchanger for GitHub
type Exchanger struct {
	oauthConfig oauth2.Config
	userInfoURL string
	httpClient  *http.Client
	now         func() time.Time
}

// NewExchanger creates a GitHub identity exchanger
func NewExchanger(cfg Config) *Exchanger {
	if cfg.Endpoint.TokenURL == "" {
		cfg.Endpoint = githubendpoint.Endpoint
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = DefaultUserInfoURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"read:user"}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Exchanger{
		oauthConfig: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     cfg.Endpoint,
		},
		userInfoURL: cfg.UserInfoURL,
		httpClient:  cfg.HTTPClient,
		now:         cfg.Now,
	}
}

var _ ports.IdentityExchanger = (*Exchanger)(nil)

// Provider returns the registry name of the exchanger
func (e *Exchanger) Provider() string { return core.ProviderGitHub }

// AuthCodeURL returns the provider consent URL carrying state
func (e *Exchanger) AuthCodeURL(state string) string {
	return e.oauthConfig.AuthCodeURL(state)
}

type userInfo struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// ExchangeCode trades an authorization code for a token and fetches the user
func (e *Exchanger) ExchangeCode(ctx context.Context, code string) (*core.ExternalIdentity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)

	token, err := e.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", core.ErrOAuthExchangeFailure, err)
	}
	if !token.Valid() {
		return nil, fmt.Errorf("%w: provider returned unusable token", core.ErrOAuthExchangeFailure)
	}

	user, err := e.fetchUser(ctx, token)
	if err != nil {
		return nil, err
	}

	return &core.ExternalIdentity{
		Provider: core.ProviderGitHub,
		ID:       strconv.FormatInt(user.ID, 10),
		Handle:   user.Login,
		LinkedAt: e.now(),
	}, nil
}

func (e *Exchanger) fetchUser(ctx context.Context, token *oauth2.Token) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", core.ErrOAuthExchangeFailure, err)
	}
	token.SetAuthHeader(req)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed getting user info: %v", core.ErrOAuthExchangeFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: user info status %d", core.ErrOAuthExchangeFailure, resp.StatusCode)
	}

	contents, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read user info: %v", core.ErrOAuthExchangeFailure, err)
	}

	var user userInfo
	if err := json.Unmarshal(contents, &user); err != nil {
		return nil, fmt.Errorf("%w: failed to parse user info: %v", core.ErrOAuthExchangeFailure, err)
	}
	if user.ID == 0 || user.Login == "" {
		return nil, fmt.Errorf("%w: user info missing id or login", core.ErrOAuthExchangeFailure)
	}
	return &user, nil
}
