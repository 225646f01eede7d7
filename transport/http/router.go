package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, cookie CookieConfig, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger), SessionMiddleware(cookie.Name))

	// Create handlers
	handlers := NewAuthHandlers(authService, cookie, logger)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.GET("/nonce", handlers.Nonce)
		auth.POST("/verify", handlers.Verify)
		auth.GET("/session", handlers.Session)
		auth.POST("/logout", handlers.Logout)
		auth.GET("/:provider/login", handlers.LinkStart)
		auth.GET("/:provider/callback", handlers.LinkCallback)
		auth.POST("/:provider/callback", handlers.LinkCallback)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
	}

	return router
}
