package core

import "time"

// VerifyRequest carries a signed challenge and the expectations it is checked against
type VerifyRequest struct {
	Message         string
	Signature       string
	ExpectedNonce   string
	ExpectedAddress string // optional
	ExpectedChainID int64  // optional, 0 means any
}

// VerifiedChallenge is the outcome of a successful signature verification
type VerifiedChallenge struct {
	Address  string // lowercase, 0x-prefixed
	ChainID  int64
	Domain   string
	IssuedAt time.Time
}
