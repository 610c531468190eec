package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"geochat-service/internal/geo"
	"geochat-service/internal/middleware"
	"geochat-service/internal/services"
)

// UserHandler serves location updates and proximity search.
type UserHandler struct {
	proximity *services.ProximityService
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(proximity *services.ProximityService) *UserHandler {
	return &UserHandler{proximity: proximity}
}

// UpdateLocation stores the caller's coordinates.
func (h *UserHandler) UpdateLocation(c *gin.Context) {
	var req struct {
		Latitude  *float64 `json:"latitude" binding:"required"`
		Longitude *float64 `json:"longitude" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "latitude and longitude are required")
		return
	}

	userID := c.GetInt64(middleware.UserIDKey)
	if err := h.proximity.UpdateLocation(c.Request.Context(), userID, *req.Latitude, *req.Longitude); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Location updated successfully",
		"latitude":  *req.Latitude,
		"longitude": *req.Longitude,
	})
}

// Nearby lists the users within ?radius= km of the caller, nearest first.
func (h *UserHandler) Nearby(c *gin.Context) {
	radius := h.proximity.DefaultRadiusKm()
	if raw := c.Query("radius"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			badRequest(c, "radius must be a number")
			return
		}
		radius = parsed
	}

	userID := c.GetInt64(middleware.UserIDKey)
	users, err := h.proximity.FindNearby(c.Request.Context(), userID, radius)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]gin.H, 0, len(users))
	for _, u := range users {
		resp = append(resp, gin.H{
			"id":          u.ID,
			"name":        u.Name,
			"email":       u.Email,
			"latitude":    u.Latitude,
			"longitude":   u.Longitude,
			"distance_km": geo.Round2(u.DistanceKm),
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": resp, "count": len(resp)})
}
