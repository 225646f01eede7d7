package service

import (
	"log/slog"
	"time"
)

const (
	DefaultSessionTTL        = 24 * time.Hour
	DefaultStalenessWindow   = 5 * time.Minute
	DefaultMaxVerifyAttempts = 5
)

// Options configures the session lifecycle. Zero values fall back to defaults.
type Options struct {
	// SessionTTL is the fixed lifetime of a session slot from creation.
	SessionTTL time.Duration
	// StalenessWindow bounds the age of an issued nonce.
	StalenessWindow time.Duration
	// MaxVerifyAttempts is how many invalid signatures a nonce survives.
	MaxVerifyAttempts int

	Now    func() time.Time
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.SessionTTL <= 0 {
		o.SessionTTL = DefaultSessionTTL
	}
	if o.StalenessWindow <= 0 {
		o.StalenessWindow = DefaultStalenessWindow
	}
	if o.MaxVerifyAttempts <= 0 {
		o.MaxVerifyAttempts = DefaultMaxVerifyAttempts
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
