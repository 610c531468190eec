package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"geochat-service/internal/logging"
	"geochat-service/internal/models"
	"geochat-service/internal/services"
)

const timestampLayout = "2006-01-02 15:04:05"

// respondError maps service errors onto status codes. Internal details never reach the payload.
func respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": verr.Error(), "field": verr.Field})
	case errors.Is(err, services.ErrLocationNotSet):
		c.JSON(http.StatusBadRequest, gin.H{"error": "LOCATION_NOT_SET", "message": "User location is not set"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND", "message": "resource not found"})
	case errors.Is(err, services.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "EMAIL_TAKEN", "message": "User with this email already exists"})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CREDENTIALS", "message": "Invalid credentials"})
	default:
		_ = c.Error(err)
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR", "message": "An error occurred"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": message})
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func messageJSON(m models.ChatMessage) gin.H {
	return gin.H{
		"id":         m.ID,
		"user_name":  m.UserName,
		"message":    m.Message,
		"created_at": formatTimestamp(m.CreatedAt),
	}
}
