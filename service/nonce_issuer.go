package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/layer-3/walletauth/core"
)

// nonceBytes gives 256 bits of entropy, hex encoded so the nonce stays
// alphanumeric as sign-in messages require.
const nonceBytes = 32

// NonceIssuer generates single-use challenges and binds them to a session
type NonceIssuer struct {
	random io.Reader
	now    func() time.Time
}

// NewNonceIssuer creates an issuer reading from crypto/rand
func NewNonceIssuer(now func() time.Time) *NonceIssuer {
	if now == nil {
		now = time.Now
	}
	return &NonceIssuer{random: rand.Reader, now: now}
}

// Issue puts a fresh challenge on the session. Any previous challenge,
// address and linked identity are discarded.
func (n *NonceIssuer) Issue(session *core.Session) (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := io.ReadFull(n.random, buf); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrRandomnessFailure, err)
	}
	nonce := hex.EncodeToString(buf)

	session.Nonce = nonce
	session.FailedAttempts = 0
	session.Address = ""
	session.ChainID = 0
	session.IssuedAt = n.now()
	session.Authenticated = false
	session.OAuthState = ""
	session.Identities = nil

	return nonce, nil
}

// randomToken returns a hex encoded random value, used for OAuth state
func randomToken(r io.Reader, size int) (string, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrRandomnessFailure, err)
	}
	return hex.EncodeToString(buf), nil
}
