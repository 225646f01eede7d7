package ports

import (
	"context"

	"github.com/layer-3/walletauth/core"
)

// IdentityExchanger turns an OAuth authorization code into an external identity.
// There is one implementation per provider.
type IdentityExchanger interface {
	Provider() string
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*core.ExternalIdentity, error)
}
