package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/trackwell/issuetracker/internal/services"
	"github.com/trackwell/issuetracker/pkg/response"
)

type SystemLogHandler struct {
	systemLogService *services.SystemLogService
	configService    *services.SystemConfigService
}

func NewSystemLogHandler(systemLogService *services.SystemLogService, configService *services.SystemConfigService) *SystemLogHandler {
	return &SystemLogHandler{systemLogService: systemLogService, configService: configService}
}

// List returns a page of system logs
// GET /api/system-logs
func (h *SystemLogHandler) List(c *gin.Context) {
	var req services.SystemLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.systemLogService.List(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// GetRetentionDays
// GET /api/system-logs/retention
func (h *SystemLogHandler) GetRetentionDays(c *gin.Context) {
	response.Success(c, gin.H{"days": h.systemLogService.GetRetentionDays()})
}

// SetRetentionDays
// PUT /api/system-logs/retention
func (h *SystemLogHandler) SetRetentionDays(c *gin.Context) {
	var req struct {
		Days int `json:"days" binding:"required,min=1,max=3650"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "days must be between 1 and 3650")
		return
	}

	if err := h.configService.Set("log_retention_days", strconv.Itoa(req.Days)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"days": req.Days})
}

// Cleanup deletes logs past retention now
// POST /api/system-logs/cleanup
func (h *SystemLogHandler) Cleanup(c *gin.Context) {
	removed, err := h.systemLogService.CleanupOldLogs(c.Request.Context(), h.systemLogService.GetRetentionDays())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"removed": removed})
}
