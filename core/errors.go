package core

import "errors"

var (
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrNonceMismatch        = errors.New("nonce mismatch")
	ErrChallengeExpired     = errors.New("challenge expired")
	ErrOAuthExchangeFailure = errors.New("oauth exchange failure")
	ErrPreconditionFailed   = errors.New("precondition failed")
	ErrStorageIntegrity     = errors.New("storage integrity failure")
	ErrRandomnessFailure    = errors.New("randomness failure")
	ErrSessionNotFound      = errors.New("session not found")
	ErrUnknownProvider      = errors.New("unknown identity provider")
	ErrStoreOperationFailed = errors.New("store operation failed")
)

// IsAuthFailure reports whether err is one of the protocol failures surfaced
// to the caller as an authentication failure.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrNonceMismatch) ||
		errors.Is(err, ErrChallengeExpired)
}

// Kind returns the public name of a protocol error, or "" for anything that
// must be reported as a generic server error.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSignature):
		return "InvalidSignature"
	case errors.Is(err, ErrNonceMismatch):
		return "NonceMismatch"
	case errors.Is(err, ErrChallengeExpired):
		return "ChallengeExpired"
	case errors.Is(err, ErrOAuthExchangeFailure):
		return "OAuthExchangeFailure"
	case errors.Is(err, ErrPreconditionFailed):
		return "PreconditionFailed"
	}
	return ""
}
