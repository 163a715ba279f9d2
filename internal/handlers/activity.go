package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/trackwell/issuetracker/internal/services"
	"github.com/trackwell/issuetracker/pkg/response"
)

type ActivityHandler struct {
	activityService *services.ActivityService
}

func NewActivityHandler(activityService *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

// List returns an issue's activity; ?order=asc for oldest first
// GET /api/issues/:id/activities
func (h *ActivityHandler) List(c *gin.Context) {
	id, ok := parseIssueID(c)
	if !ok {
		return
	}

	entries, err := h.activityService.List(c.Request.Context(), id, c.DefaultQuery("order", "desc"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, entries)
}
