package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/service"
)

// CookieConfig controls the session cookie
type CookieConfig struct {
	Name   string
	Domain string
	Path   string
	Secure bool
	MaxAge int // seconds
}

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	cookie      CookieConfig
	logger      *slog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, cookie CookieConfig, logger *slog.Logger) *AuthHandlers {
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	return &AuthHandlers{
		authService: authService,
		cookie:      cookie,
		logger:      logger,
	}
}

type verifyRequest struct {
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// Nonce handles the challenge request
func (h *AuthHandlers) Nonce(c *gin.Context) {
	token, nonce, err := h.authService.IssueNonce(c.Request.Context(), SessionToken(c))
	if err != nil {
		h.serverError(c, "failed to issue nonce", err)
		return
	}

	h.setSessionCookie(c, token)
	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// Verify handles the signed challenge submission
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	token, identity, err := h.authService.Verify(c.Request.Context(), SessionToken(c), req.Message, req.Signature)
	h.setSessionCookie(c, token)
	if err != nil {
		if core.IsAuthFailure(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": core.Kind(err)})
			return
		}
		h.serverError(c, "failed to verify challenge", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":       identity.Address,
		"authenticated": true,
	})
}

// Session reports the current identity; it never fails
func (h *AuthHandlers) Session(c *gin.Context) {
	c.JSON(http.StatusOK, h.authService.CurrentIdentity(c.Request.Context(), SessionToken(c)))
}

// Logout handles session logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), SessionToken(c)); err != nil {
		h.serverError(c, "failed to logout", err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, h.cookie.Path, h.cookie.Domain, h.cookie.Secure, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// LinkStart redirects an authenticated caller to the provider consent page
func (h *AuthHandlers) LinkStart(c *gin.Context) {
	url, err := h.authService.AuthorizeURL(c.Request.Context(), SessionToken(c), c.Param("provider"))
	if err != nil {
		h.linkError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

// LinkCallback completes an identity link with the provider authorization code
func (h *AuthHandlers) LinkCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		code = c.PostForm("code")
	}
	state := c.Query("state")
	if state == "" {
		state = c.PostForm("state")
	}
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}

	identity, err := h.authService.Link(c.Request.Context(), SessionToken(c), c.Param("provider"), code, state)
	if err != nil {
		h.linkError(c, err)
		return
	}
	c.JSON(http.StatusOK, identity)
}

// Me returns information about the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	// Identity is set by the auth middleware
	identity, ok := CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	c.JSON(http.StatusOK, identity)
}

func (h *AuthHandlers) linkError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrUnknownProvider):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
	case errors.Is(err, core.ErrPreconditionFailed):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": core.Kind(err)})
	case errors.Is(err, core.ErrOAuthExchangeFailure):
		c.JSON(http.StatusBadGateway, gin.H{"error": core.Kind(err)})
	default:
		h.serverError(c, "failed to link identity", err)
	}
}

func (h *AuthHandlers) serverError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func (h *AuthHandlers) setSessionCookie(c *gin.Context, token string) {
	if token == "" || token == SessionToken(c) {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, token, h.cookie.MaxAge, h.cookie.Path, h.cookie.Domain, h.cookie.Secure, true)
}
