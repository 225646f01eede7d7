// Package testwallet signs sign-in messages the way browser wallets do, for tests.
package testwallet

import (
	"crypto/ecdsa"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet is a throwaway secp256k1 account
type Wallet struct {
	key *ecdsa.PrivateKey
}

// New generates a wallet or fails the test
func New(t testing.TB) *Wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &Wallet{key: key}
}

// Address returns the EIP-55 checksummed address
func (w *Wallet) Address() string {
	return crypto.PubkeyToAddress(w.key.PublicKey).Hex()
}

// LowerAddress returns the address as the server normalizes it
func (w *Wallet) LowerAddress() string {
	return strings.ToLower(w.Address())
}

// Sign produces a personal_sign signature with V in {27, 28}
func (w *Wallet) Sign(t testing.TB, text string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(text)), w.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig[64] += 27
	return hexutil.Encode(sig)
}
