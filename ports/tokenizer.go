package ports

import "github.com/layer-3/walletauth/core"

// Tokenizer converts between sessions and the opaque handle held by the client
type Tokenizer interface {
	SessionToToken(session *core.Session) (string, error)
	// TokenToSessionID returns core.ErrStorageIntegrity for any token that
	// was not produced by this tokenizer or was altered since.
	TokenToSessionID(token string) (string, error)
}
