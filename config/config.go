package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string `env:"WALLETAUTH_HTTP_ADDR" envDefault:":9000"`
	LogLevel string `env:"WALLETAUTH_LOG_LEVEL" envDefault:"info"`

	// Empty RedisURL selects the in-memory store and an in-process event bus.
	RedisURL string `env:"WALLETAUTH_REDIS_URL"`

	// PEM encoded EC P-256 private key signing session handles.
	// When empty an ephemeral key is generated at startup.
	SessionSigningKey string        `env:"WALLETAUTH_SESSION_SIGNING_KEY"`
	SessionIssuer     string        `env:"WALLETAUTH_SESSION_ISSUER" envDefault:"walletauth"`
	SessionTTL        time.Duration `env:"WALLETAUTH_SESSION_TTL" envDefault:"24h"`

	Domain            string        `env:"WALLETAUTH_SIWE_DOMAIN"`
	AllowedChainIDs   []int64       `env:"WALLETAUTH_SIWE_CHAIN_IDS" envSeparator:","`
	StalenessWindow   time.Duration `env:"WALLETAUTH_SIWE_STALENESS_WINDOW" envDefault:"5m"`
	ClockSkew         time.Duration `env:"WALLETAUTH_SIWE_CLOCK_SKEW" envDefault:"1m"`
	MaxVerifyAttempts int           `env:"WALLETAUTH_SIWE_MAX_VERIFY_ATTEMPTS" envDefault:"5"`

	CookieName   string `env:"WALLETAUTH_COOKIE_NAME" envDefault:"walletauth_session"`
	CookieDomain string `env:"WALLETAUTH_COOKIE_DOMAIN"`
	CookiePath   string `env:"WALLETAUTH_COOKIE_PATH" envDefault:"/"`
	CookieSecure bool   `env:"WALLETAUTH_COOKIE_SECURE" envDefault:"true"`

	GitHubClientID     string   `env:"WALLETAUTH_GITHUB_CLIENT_ID"`
	GitHubClientSecret string   `env:"WALLETAUTH_GITHUB_CLIENT_SECRET"`
	GitHubRedirectURL  string   `env:"WALLETAUTH_GITHUB_REDIRECT_URL"`
	GitHubScopes       []string `env:"WALLETAUTH_GITHUB_SCOPES" envSeparator:"," envDefault:"read:user"`
}

// Load parses Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFrom parses Config from the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot run.
func (c Config) Validate() error {
	if c.SessionTTL <= 0 {
		return fmt.Errorf("WALLETAUTH_SESSION_TTL must be positive")
	}
	if c.StalenessWindow <= 0 {
		return fmt.Errorf("WALLETAUTH_SIWE_STALENESS_WINDOW must be positive")
	}
	if c.MaxVerifyAttempts <= 0 {
		return fmt.Errorf("WALLETAUTH_SIWE_MAX_VERIFY_ATTEMPTS must be positive")
	}
	if c.CookieName == "" {
		return fmt.Errorf("WALLETAUTH_COOKIE_NAME must not be empty")
	}
	for _, id := range c.AllowedChainIDs {
		if id <= 0 {
			return fmt.Errorf("WALLETAUTH_SIWE_CHAIN_IDS contains invalid chain id %d", id)
		}
	}
	return nil
}

// GitHubEnabled reports whether GitHub identity linking is configured.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}
