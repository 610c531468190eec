package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"geochat-service/internal/auth"
	"geochat-service/internal/middleware"
	"geochat-service/internal/models"
	"geochat-service/internal/services"
)

// AuthHandler serves registration, login and logout.
type AuthHandler struct {
	auth *auth.Service
	chat *services.ChatService
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(authService *auth.Service, chat *services.ChatService) *AuthHandler {
	return &AuthHandler{auth: authService, chat: chat}
}

func userJSON(u models.User) gin.H {
	return gin.H{"id": u.ID, "name": u.Name, "email": u.Email}
}

// Register creates an account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "user": userJSON(user)})
}

// Login exchanges credentials for a token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}

	token, user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": userJSON(user)})
}

// Logout leaves the chat and deactivates the caller.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := c.GetInt64(middleware.UserIDKey)
	if err := h.chat.Leave(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
