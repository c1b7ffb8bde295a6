package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "stonksnote/internal/errors"
)

// AdminAuthMiddleware guards catalog management routes with the X-API-Key
// header. An empty configured key disables the routes.
func AdminAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			AbortWithError(c, apperrors.ErrAdminNotConfigured)
			return
		}
		key := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			AbortWithError(c, apperrors.ErrInvalidAPIKey)
			return
		}
		c.Next()
	}
}
