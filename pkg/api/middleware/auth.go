package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// AuthHeaderKey is the standard Authorization header
	AuthHeaderKey = "Authorization"
	// APIKeyHeaderKey is the custom API key header
	APIKeyHeaderKey = "X-API-Key"
	// RequestIDHeader carries the request ID
	RequestIDHeader = "X-Request-ID"
	// ContextRequestIDKey is the key used to store request ID
	ContextRequestIDKey = "request_id"
)

// TokenAuthConfig holds shared-token authentication configuration
type TokenAuthConfig struct {
	Token     string   // empty disables authentication
	SkipPaths []string // Paths that don't require authentication
}

// TokenAuthMiddleware requires the shared token, either as X-API-Key or as
// a Bearer token. The extension and the helper share it through the
// environment.
func TokenAuthMiddleware(config TokenAuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.Token == "" {
			c.Next()
			return
		}
		for _, path := range config.SkipPaths {
			if matchPath(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}

		if tokenMatches(presentedToken(c), config.Token) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "authentication required",
			"hint":  "provide Bearer token or X-API-Key header",
		})
	}
}

func presentedToken(c *gin.Context) string {
	if key := c.GetHeader(APIKeyHeaderKey); key != "" {
		return key
	}
	parts := strings.SplitN(c.GetHeader(AuthHeaderKey), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func tokenMatches(got, want string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// matchPath checks if a request path matches a pattern
// Supports wildcards: /api/* matches /api/anything
func matchPath(path, pattern string) bool {
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(path, prefix)
	}
	return path == pattern
}
