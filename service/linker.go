package service

import (
	"context"
	"fmt"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

// Linker dispatches OAuth code exchanges to the registered providers
type Linker struct {
	exchangers map[string]ports.IdentityExchanger
}

// NewLinker registers exchangers by their provider name
func NewLinker(exchangers ...ports.IdentityExchanger) *Linker {
	l := &Linker{exchangers: make(map[string]ports.IdentityExchanger, len(exchangers))}
	for _, e := range exchangers {
		l.exchangers[e.Provider()] = e
	}
	return l
}

// Exchanger returns the exchanger registered for provider
func (l *Linker) Exchanger(provider string) (ports.IdentityExchanger, error) {
	e, ok := l.exchangers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownProvider, provider)
	}
	return e, nil
}

// Link exchanges code with provider and returns the external identity
func (l *Linker) Link(ctx context.Context, provider string, code string) (*core.ExternalIdentity, error) {
	e, err := l.Exchanger(provider)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, fmt.Errorf("%w: empty authorization code", core.ErrOAuthExchangeFailure)
	}

	identity, err := e.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if identity == nil || identity.ID == "" {
		return nil, fmt.Errorf("%w: provider returned no identity", core.ErrOAuthExchangeFailure)
	}
	identity.Provider = provider
	return identity, nil
}
