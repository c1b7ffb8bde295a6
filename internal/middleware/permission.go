package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "stonksnote/internal/errors"
)

// PermissionChecker reports whether a user holds all of the given codes.
type PermissionChecker interface {
	HasPerm(userID string, codes ...string) (bool, error)
}

// RequirePermission lets the request through when the authenticated user
// holds every one of codes. It must run after AuthMiddleware.
func RequirePermission(checker PermissionChecker, codes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(UserIDKey)
		if userID == "" {
			AbortWithError(c, apperrors.ErrUnauthorized)
			return
		}
		ok, err := checker.HasPerm(userID, codes...)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !ok {
			AbortWithError(c, apperrors.ErrPermissionDenied)
			return
		}
		c.Next()
	}
}
