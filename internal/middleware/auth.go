package middleware

import (
	"net/http"
	"strings"

	"github.com/artgrid/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// extractToken pulls the access token from the Authorization header, the
// access_token cookie, or the "token" query parameter. The cookie and query
// fallbacks exist for browser-driven requests (payment callbacks, file
// downloads) that cannot set headers. The cookie is checked before the
// query because the payment callback carries the gateway's own "token"
// parameter, which is not ours.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	if cookie, err := c.Cookie("access_token"); err == nil && cookie != "" {
		return cookie
	}

	if token := c.Query("token"); token != "" {
		return token
	}

	return ""
}

// Auth validates the access token and stores the user ID in the context
func Auth(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			c.Abort()
			return
		}

		claims, err := authService.ValidateAccessToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			c.Abort()
			return
		}

		user, err := authService.GetUserByID(userID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			c.Abort()
			return
		}

		if !user.IsActive {
			c.JSON(http.StatusForbidden, gin.H{"error": "Account is deactivated"})
			c.Abort()
			return
		}

		c.Set("userID", userID)
		c.Set("isAdmin", user.IsAdmin)
		c.Next()
	}
}

// AuthRedirect behaves like Auth but sends the browser to loginURL on any
// auth failure instead of answering JSON. Used on endpoints the user reaches
// via a top-level redirect (the payment capture callback), where a JSON 401
// would dead-end the payer.
func AuthRedirect(authService *services.AuthService, loginURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		toLogin := func() {
			c.Redirect(http.StatusFound, loginURL)
			c.Abort()
		}

		token := extractToken(c)
		if token == "" {
			toLogin()
			return
		}

		claims, err := authService.ValidateAccessToken(token)
		if err != nil {
			toLogin()
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			toLogin()
			return
		}

		user, err := authService.GetUserByID(userID)
		if err != nil || !user.IsActive {
			toLogin()
			return
		}

		c.Set("userID", userID)
		c.Set("isAdmin", user.IsAdmin)
		c.Next()
	}
}

// OptionalAuth stores the user ID in the context when a valid token is
// present, and lets the request through anonymously otherwise. Used on
// public endpoints whose response is enriched for signed-in users.
func OptionalAuth(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := authService.ValidateAccessToken(token)
		if err != nil {
			c.Next()
			return
		}

		if userID, err := uuid.Parse(claims.UserID); err == nil {
			c.Set("userID", userID)
		}
		c.Next()
	}
}

// AdminOnly requires the authenticated user to be an admin. Must run after Auth.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		isAdmin, exists := c.Get("isAdmin")
		if !exists || !isAdmin.(bool) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}
