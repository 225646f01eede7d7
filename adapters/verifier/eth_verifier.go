package verifier

import (
	"crypto/subtle"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

const (
	signatureLength = 65

	DefaultStalenessWindow = 5 * time.Minute
	DefaultClockSkew       = time.Minute
)

// Config holds the checks applied to every sign-in message
type Config struct {
	// Domain, when set, must match the message domain.
	Domain string
	// AllowedChainIDs, when non-empty, restricts the accepted chain ids.
	AllowedChainIDs []int64
	// StalenessWindow bounds how old the message issuedAt may be.
	StalenessWindow time.Duration
	// ClockSkew is how far in the future issuedAt may lie.
	ClockSkew time.Duration
	Now       func() time.Time
}

// EthVerifier verifies EIP-4361 messages signed with personal_sign (EIP-191)
type EthVerifier struct {
	cfg Config
}

// NewEthVerifier creates a new verifier
func NewEthVerifier(cfg Config) ports.Verifier {
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = DefaultStalenessWindow
	}
	if cfg.ClockSkew < 0 {
		cfg.ClockSkew = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &EthVerifier{cfg: cfg}
}

// Verify parses the message, checks nonce and freshness, then recovers the signer.
func (v *EthVerifier) Verify(req core.VerifyRequest) (*core.VerifiedChallenge, error) {
	msg, err := ParseMessage(req.Message)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidSignature, err)
	}

	if req.ExpectedNonce == "" ||
		subtle.ConstantTimeCompare([]byte(msg.Nonce), []byte(req.ExpectedNonce)) != 1 {
		return nil, core.ErrNonceMismatch
	}
	if !validNonce(msg.Nonce) {
		return nil, fmt.Errorf("nonce must be at least %d alphanumeric characters: %w", minNonceLength, core.ErrInvalidSignature)
	}

	if err := v.checkFreshness(msg); err != nil {
		return nil, err
	}

	if v.cfg.Domain != "" && !strings.EqualFold(msg.Domain, v.cfg.Domain) {
		return nil, fmt.Errorf("domain %q not accepted: %w", msg.Domain, core.ErrInvalidSignature)
	}
	if len(v.cfg.AllowedChainIDs) > 0 && !slices.Contains(v.cfg.AllowedChainIDs, msg.ChainID) {
		return nil, fmt.Errorf("chain id %d not accepted: %w", msg.ChainID, core.ErrInvalidSignature)
	}
	if req.ExpectedChainID != 0 && req.ExpectedChainID != msg.ChainID {
		return nil, fmt.Errorf("chain id mismatch: %w", core.ErrInvalidSignature)
	}

	recovered, err := RecoverAddress(req.Message, req.Signature)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(recovered, msg.Address) {
		return nil, fmt.Errorf("signer does not match message address: %w", core.ErrInvalidSignature)
	}
	if req.ExpectedAddress != "" && !strings.EqualFold(recovered, req.ExpectedAddress) {
		return nil, fmt.Errorf("address mismatch: %w", core.ErrInvalidSignature)
	}

	return &core.VerifiedChallenge{
		Address:  recovered,
		ChainID:  msg.ChainID,
		Domain:   msg.Domain,
		IssuedAt: msg.IssuedAt,
	}, nil
}

func (v *EthVerifier) checkFreshness(msg *Message) error {
	now := v.cfg.Now()

	if msg.IssuedAt.IsZero() {
		return core.ErrChallengeExpired
	}
	if now.Sub(msg.IssuedAt) > v.cfg.StalenessWindow {
		return fmt.Errorf("issued at %s: %w", msg.IssuedAt.Format(time.RFC3339), core.ErrChallengeExpired)
	}
	if msg.IssuedAt.Sub(now) > v.cfg.ClockSkew {
		return fmt.Errorf("issued in the future: %w", core.ErrChallengeExpired)
	}
	if msg.ExpirationTime != nil && !now.Before(*msg.ExpirationTime) {
		return fmt.Errorf("message expired: %w", core.ErrChallengeExpired)
	}
	if msg.NotBefore != nil && now.Add(v.cfg.ClockSkew).Before(*msg.NotBefore) {
		return fmt.Errorf("message not yet valid: %w", core.ErrChallengeExpired)
	}
	return nil
}

// RecoverAddress returns the lowercase address that produced an EIP-191
// personal_sign signature over text.
func RecoverAddress(text string, signature string) (string, error) {
	decoded, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("failed to decode signature: %w", core.ErrInvalidSignature)
	}
	if len(decoded) != signatureLength {
		return "", fmt.Errorf("signature must be %d bytes: %w", signatureLength, core.ErrInvalidSignature)
	}

	sig := make([]byte, signatureLength)
	copy(sig, decoded)
	// wallets emit V as 27/28
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return "", fmt.Errorf("invalid recovery id: %w", core.ErrInvalidSignature)
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(sig[64], r, s, true) {
		return "", fmt.Errorf("signature values out of range: %w", core.ErrInvalidSignature)
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(text)), sig)
	if err != nil {
		return "", fmt.Errorf("failed to recover public key: %w", core.ErrInvalidSignature)
	}

	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}
