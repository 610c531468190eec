package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"geochat-service/internal/logging"
	"geochat-service/internal/models"
	"geochat-service/internal/observability"
	"geochat-service/internal/repositories"
)

// TokenValidator resolves a bearer token to a user id.
type TokenValidator interface {
	ValidateToken(token string) (int64, error)
}

// UserFinder loads the account behind a token so banned users can be turned away.
type UserFinder interface {
	GetByID(ctx context.Context, id int64) (models.User, error)
}

// ChatWebSocketHandler streams chat events to authenticated clients.
type ChatWebSocketHandler struct {
	hub       *Hub
	validator TokenValidator
	users     UserFinder
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, validator TokenValidator, users UserFinder) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{hub: hub, validator: validator, users: users}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the client. Incoming frames are discarded.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := observability.StartSpan(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := h.validator.ValidateToken(tokenFromRequest(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	user, err := h.users.GetByID(ctx, userID)
	switch {
	case errors.Is(err, repositories.ErrUserNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "user no longer exists"})
		return
	case err != nil:
		logging.Ctx(ctx).Error().Err(err).Int64(logging.FieldUserID, userID).Msg("websocket ban check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR", "message": "internal server error"})
		return
	case user.IsBanned:
		c.JSON(http.StatusForbidden, gin.H{"error": "USER_BANNED", "message": "your account has been banned"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     observability.TraceID(ctx),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	_ = observability.PublishEvent(ctx, wsRoutingKey, wsEventType, "ws_connect", connPayload(info, "ws_connect", ""))
	logger := logging.Ctx(ctx).With().Str("conn_id", info.ConnID).Int64(logging.FieldUserID, userID).Logger()
	logger.Info().Msg("websocket connected")

	connCtx := context.WithoutCancel(ctx)
	go func() {
		var closeReason string
		defer func() {
			if h.hub.RemoveClient(conn) {
				observability.DecWSActive()
			}
			observability.IncWSEvent("ws_disconnect")
			_ = observability.PublishEvent(connCtx, wsRoutingKey, wsEventType, "ws_disconnect", connPayload(info, "ws_disconnect", closeReason))
			logger.Info().Str("reason", closeReason).Msg("websocket disconnected")
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("ws_error")
					_ = observability.PublishEvent(connCtx, wsRoutingKey, wsEventType, "ws_error", connPayload(info, "ws_error", closeReason))
				}
				return
			}
		}
	}()
}

func tokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return c.Query("token")
}
