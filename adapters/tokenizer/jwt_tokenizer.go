package tokenizer

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

const AudienceSession = "session:handle"

// JWTTokenizer implements the Tokenizer interface using ES256 signed JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	issuer  string
	now     func() time.Time
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, issuer string, now func() time.Time) ports.Tokenizer {
	if now == nil {
		now = time.Now
	}
	return &JWTTokenizer{signKey: signKey, issuer: issuer, now: now}
}

// ParsePrivateKey decodes a PEM encoded EC private key used to sign session handles
func ParsePrivateKey(pemKey string) (*ecdsa.PrivateKey, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse session signing key: %w", err)
	}
	return key, nil
}

// SessionToToken converts a Session to a signed handle
func (j *JWTTokenizer) SessionToToken(session *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// TokenToSessionID validates a handle and returns the session ID it names
func (j *JWTTokenizer) TokenToSessionID(tokenStr string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithAudience(AudienceSession),
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrStorageIntegrity, err)
	}

	if !token.Valid {
		return "", core.ErrStorageIntegrity
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.ID == "" {
		return "", fmt.Errorf("%w: invalid claims", core.ErrStorageIntegrity)
	}

	return claims.ID, nil
}
