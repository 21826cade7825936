package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const headerName = "X-API-Key"

const adminContextKey = "auth.admin"

// APIKeyMiddleware validates the X-API-Key header against the operator and
// admin keys. A caller presenting the admin key is flagged in the request
// context. If both keys are empty, authentication is disabled and every
// caller is treated as admin.
func APIKeyMiddleware(apiKey, adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" && adminKey == "" {
			c.Set(adminContextKey, true)
			c.Next()
			return
		}

		provided := c.GetHeader(headerName)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}

		if adminKey != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(adminKey)) == 1 {
			c.Set(adminContextKey, true)
			c.Next()
			return
		}

		if apiKey != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) == 1 {
			c.Set(adminContextKey, false)
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "invalid API key",
		})
	}
}

// RequireAdmin aborts with 403 unless the caller authenticated with the
// admin key.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin key required",
			})
			return
		}
		c.Next()
	}
}

// IsAdmin reports whether the current request carried the admin key.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(adminContextKey)
}
