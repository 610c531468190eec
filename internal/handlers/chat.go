package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"geochat-service/internal/middleware"
	"geochat-service/internal/services"
)

// ChatHandler exposes the global chat endpoints.
type ChatHandler struct {
	chat *services.ChatService
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Join opens the caller's chat session, or returns the session already open.
func (h *ChatHandler) Join(c *gin.Context) {
	userID := c.GetInt64(middleware.UserIDKey)

	res, err := h.chat.Join(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	if res.AlreadyJoined {
		body := messageJSON(res.Messages[0])
		body["already_joined"] = true
		c.JSON(http.StatusOK, body)
		return
	}

	if res.FirstUser {
		msgs := make([]gin.H, 0, len(res.Messages))
		for _, m := range res.Messages {
			msgs = append(msgs, messageJSON(m))
		}
		c.JSON(http.StatusCreated, gin.H{
			"messages":       msgs,
			"already_joined": false,
			"is_first_user":  true,
		})
		return
	}

	body := messageJSON(res.Messages[len(res.Messages)-1])
	body["already_joined"] = false
	body["is_first_user"] = false
	c.JSON(http.StatusCreated, body)
}

// SendMessage appends a message from the caller.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Message is required")
		return
	}

	userID := c.GetInt64(middleware.UserIDKey)
	msg, err := h.chat.Send(c.Request.Context(), userID, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, messageJSON(msg))
}

// GetMessages returns the messages inside the caller's session window.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID := c.GetInt64(middleware.UserIDKey)

	msgs, err := h.chat.Fetch(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]gin.H, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, messageJSON(m))
	}
	c.JSON(http.StatusOK, gin.H{"messages": resp, "count": len(resp)})
}
