package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"geochat-service/internal/logging"
	"geochat-service/internal/repositories"
)

// RequireAdmin lets only administrators through. It must run after AuthMiddleware.
func RequireAdmin(users repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt64(UserIDKey)
		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "user no longer exists"})
				return
			}
			logging.Ctx(c.Request.Context()).Error().Err(err).Int64(logging.FieldUserID, userID).Msg("admin check failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR", "message": "internal server error"})
			return
		}

		if !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "FORBIDDEN", "message": "administrator access required"})
			return
		}
		c.Next()
	}
}
