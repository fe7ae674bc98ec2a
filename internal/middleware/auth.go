package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware handles API key authentication
type AuthMiddleware struct {
	apiKey string
	// release disables the open access granted when no key is configured.
	release bool
	// Whitelist of paths that don't require authentication
	publicPaths []string
}

// NewAuthMiddleware creates a new authentication middleware instance. With
// an empty apiKey every request is let through outside release mode and
// rejected in release mode.
func NewAuthMiddleware(apiKey string, release bool) *AuthMiddleware {
	return &AuthMiddleware{
		apiKey:  apiKey,
		release: release,
		publicPaths: []string{
			"/api/health",
		},
	}
}

// Authenticate returns a Gin middleware handler for API key authentication
func (a *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, publicPath := range a.publicPaths {
			if strings.HasPrefix(path, publicPath) {
				c.Next()
				return
			}
		}

		if a.apiKey == "" && !a.release {
			c.Next()
			return
		}

		providedKey := c.GetHeader("X-API-Key")
		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if a.apiKey == "" || subtle.ConstantTimeCompare([]byte(providedKey), []byte(a.apiKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized: Invalid or missing API key",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// IsAuthEnabled returns whether authentication is enabled
func (a *AuthMiddleware) IsAuthEnabled() bool {
	return a.apiKey != ""
}
