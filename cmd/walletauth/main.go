package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/adapters/events"
	"github.com/layer-3/walletauth/adapters/github"
	"github.com/layer-3/walletauth/adapters/store"
	"github.com/layer-3/walletauth/adapters/tokenizer"
	"github.com/layer-3/walletauth/adapters/verifier"
	"github.com/layer-3/walletauth/config"
	"github.com/layer-3/walletauth/ports"
	"github.com/layer-3/walletauth/service"
	"github.com/layer-3/walletauth/transport/http"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := config.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	signKey, err := loadSigningKey(cfg, logger)
	if err != nil {
		return err
	}

	var (
		sessionStore ports.Store
		publisher    message.Publisher
	)
	wmLogger := watermill.NewStdLogger(false, false)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}

		// Initialize Watermill Redis publisher
		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			wmLogger,
		)
		if err != nil {
			return err
		}
		sessionStore = store.NewRedisStore(redisClient)
	} else {
		logger.Warn("no redis configured, sessions are kept in memory")
		publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		sessionStore = store.NewMemoryStore(time.Now)
	}
	defer publisher.Close()

	opts := service.Options{
		SessionTTL:        cfg.SessionTTL,
		StalenessWindow:   cfg.StalenessWindow,
		MaxVerifyAttempts: cfg.MaxVerifyAttempts,
		Logger:            logger,
	}

	var exchangers []ports.IdentityExchanger
	if cfg.GitHubEnabled() {
		exchangers = append(exchangers, github.NewExchanger(github.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubRedirectURL,
			Scopes:       cfg.GitHubScopes,
		}))
	}

	sessions := service.NewSessionStore(sessionStore, tokenizer.NewJWTTokenizer(signKey, cfg.SessionIssuer, nil), opts)
	authService := service.NewAuthService(
		sessions,
		service.NewNonceIssuer(nil),
		verifier.NewEthVerifier(verifier.Config{
			Domain:          cfg.Domain,
			AllowedChainIDs: cfg.AllowedChainIDs,
			StalenessWindow: cfg.StalenessWindow,
			ClockSkew:       cfg.ClockSkew,
		}),
		service.NewLinker(exchangers...),
		events.NewWatermillPublisher(publisher),
		opts,
	)

	gin.SetMode(gin.ReleaseMode)
	router := http.SetupRouter(authService, http.CookieConfig{
		Name:   cfg.CookieName,
		Domain: cfg.CookieDomain,
		Path:   cfg.CookiePath,
		Secure: cfg.CookieSecure,
		MaxAge: int(cfg.SessionTTL.Seconds()),
	}, logger)

	srv := &nethttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadSigningKey(cfg config.Config, logger *slog.Logger) (*ecdsa.PrivateKey, error) {
	if cfg.SessionSigningKey != "" {
		return tokenizer.ParsePrivateKey(cfg.SessionSigningKey)
	}

	// Sessions will not survive a restart or be shared between instances.
	logger.Warn("no session signing key configured, generating an ephemeral one")
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}
