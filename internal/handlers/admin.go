package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"geochat-service/internal/middleware"
	"geochat-service/internal/models"
	"geochat-service/internal/services"
)

// AdminHandler serves user moderation and the caller's own ban status.
type AdminHandler struct {
	moderation *services.ModerationService
}

// NewAdminHandler builds an AdminHandler.
func NewAdminHandler(moderation *services.ModerationService) *AdminHandler {
	return &AdminHandler{moderation: moderation}
}

func adminUserJSON(u models.User) gin.H {
	out := gin.H{
		"id":         u.ID,
		"name":       u.Name,
		"email":      u.Email,
		"latitude":   u.Latitude,
		"longitude":  u.Longitude,
		"is_active":  u.IsActive,
		"is_admin":   u.IsAdmin,
		"is_banned":  u.IsBanned,
		"ban_reason": u.BanReason,
		"banned_at":  nil,
		"created_at": formatTimestamp(u.CreatedAt),
	}
	if u.BannedAt != nil {
		out["banned_at"] = formatTimestamp(*u.BannedAt)
	}
	return out
}

// ListUsers returns every account.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.moderation.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, adminUserJSON(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": out, "count": len(out)})
}

// Ban blocks the user in the path. The JSON body may carry a reason.
func (h *AdminHandler) Ban(c *gin.Context) {
	targetID, ok := pathUserID(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	user, err := h.moderation.Ban(c.Request.Context(), c.GetInt64(middleware.UserIDKey), targetID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "User banned successfully",
		"user":    gin.H{"id": user.ID, "is_banned": user.IsBanned, "ban_reason": user.BanReason},
	})
}

// Unban lifts the ban on the user in the path.
func (h *AdminHandler) Unban(c *gin.Context) {
	targetID, ok := pathUserID(c)
	if !ok {
		return
	}

	user, err := h.moderation.Unban(c.Request.Context(), c.GetInt64(middleware.UserIDKey), targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "User unbanned successfully",
		"user":    gin.H{"id": user.ID, "is_banned": user.IsBanned},
	})
}

// BanStatus tells the caller whether it is banned. It must stay reachable for banned users.
func (h *AdminHandler) BanStatus(c *gin.Context) {
	user, err := h.moderation.BanStatus(c.Request.Context(), c.GetInt64(middleware.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	if !user.IsBanned {
		c.JSON(http.StatusOK, gin.H{"is_banned": false})
		return
	}

	resp := gin.H{"is_banned": true, "ban_reason": user.BanReason, "banned_at": nil}
	if user.BannedAt != nil {
		resp["banned_at"] = formatTimestamp(*user.BannedAt)
	}
	c.JSON(http.StatusOK, resp)
}

func pathUserID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid user id")
		return 0, false
	}
	return id, true
}
