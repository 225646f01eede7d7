package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims identify a server-side session slot. The jti is the session ID.
type SessionClaims struct {
	jwt.RegisteredClaims
}
