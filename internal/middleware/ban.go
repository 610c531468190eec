package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"geochat-service/internal/logging"
	"geochat-service/internal/repositories"
)

// BanCheck rejects requests from banned users. It must run after AuthMiddleware.
func BanCheck(users repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt64(UserIDKey)
		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "user no longer exists"})
				return
			}
			logging.Ctx(c.Request.Context()).Error().Err(err).Int64(logging.FieldUserID, userID).Msg("ban check failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR", "message": "internal server error"})
			return
		}

		if user.IsBanned {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "USER_BANNED", "message": "your account has been banned"})
			return
		}
		c.Next()
	}
}
