package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db           *gorm.DB
	activityMode string
}

// NewHealthHandler reports on db; activityMode is "direct" or "queued".
func NewHealthHandler(db *gorm.DB, activityMode string) *HealthHandler {
	return &HealthHandler{db: db, activityMode: activityMode}
}

// CheckHealth returns the health status of all subsystems
// GET /health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall, code := "healthy", http.StatusOK

	dbStatus := "ok"
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = "error: " + err.Error()
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if dbStatus != "ok" {
		overall, code = "unhealthy", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":  overall,
		"service": "issuetracker",
		"components": gin.H{
			"database":      dbStatus,
			"activity_mode": h.activityMode,
		},
	})
}
