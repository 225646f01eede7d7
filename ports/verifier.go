package ports

import "github.com/layer-3/walletauth/core"

// Verifier checks a signed sign-in message and recovers the signer.
// It must not have side effects.
type Verifier interface {
	Verify(req core.VerifyRequest) (*core.VerifiedChallenge, error)
}
