package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/service"
)

const (
	ctxSessionToken = "sessionToken"
	ctxIdentity     = "identity"
	ctxUserAddress  = "userAddress"
)

// SessionMiddleware extracts the session handle from the cookie, falling
// back to a Bearer authorization header for non-browser clients.
func SessionMiddleware(cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			auth := c.GetHeader("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		c.Set(ctxSessionToken, token)
		c.Next()
	}
}

// SessionToken returns the handle extracted by SessionMiddleware
func SessionToken(c *gin.Context) string {
	return c.GetString(ctxSessionToken)
}

// AuthMiddleware aborts with 401 unless the caller holds an authenticated session
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := authService.CurrentIdentity(c.Request.Context(), SessionToken(c))
		if !identity.Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		// Set the user address in the context
		c.Set(ctxUserAddress, identity.Address)
		c.Set(ctxIdentity, identity)

		c.Next()
	}
}

// CurrentIdentity returns the identity set by AuthMiddleware
func CurrentIdentity(c *gin.Context) (core.Identity, bool) {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return core.Unauthenticated, false
	}
	identity, ok := v.(core.Identity)
	return identity, ok
}

// RequestLogger logs one line per request
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("http.request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", c.ClientIP(),
		)
	}
}
