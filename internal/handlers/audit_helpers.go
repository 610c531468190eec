package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"geochat-service/internal/logging"
	"geochat-service/internal/middleware"
)

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(logging.RequestIDKey); id != "" {
		return id
	}

	requestID := c.GetHeader(logging.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(logging.RequestIDKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *string {
	if userID := c.GetInt64(middleware.UserIDKey); userID != 0 {
		value := strconv.FormatInt(userID, 10)
		return &value
	}
	return nil
}
