package ports

import (
	"context"
	"time"

	"github.com/layer-3/walletauth/core"
)

// Store persists session slots. Implementations enforce the TTL themselves
// and return core.ErrSessionNotFound for missing or expired slots.
type Store interface {
	Load(ctx context.Context, id string) (*core.Session, error)
	Save(ctx context.Context, session *core.Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}
