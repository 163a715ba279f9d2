package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/trackwell/issuetracker/internal/middleware"
	"github.com/trackwell/issuetracker/internal/services"
	"github.com/trackwell/issuetracker/pkg/response"
)

type IssueHandler struct {
	issueService *services.IssueService
}

func NewIssueHandler(issueService *services.IssueService) *IssueHandler {
	return &IssueHandler{issueService: issueService}
}

// parseIssueID reads the :id path parameter, writing a 400 when it is not a
// positive integer.
func parseIssueID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid issue id")
		return 0, false
	}
	return uint(id), true
}

// bindBody decodes the JSON body. Anonymous callers get 401 rather than a
// parse error so that authentication is always reported first.
func bindBody(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if middleware.GetIdentity(c) == nil {
			response.Unauthorized(c, "authentication required")
			return false
		}
		response.BadRequest(c, "invalid request body")
		return false
	}
	return true
}

// List returns a page of issues
// GET /api/issues
func (h *IssueHandler) List(c *gin.Context) {
	var req services.IssueListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.issueService.List(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// Get returns one issue
// GET /api/issues/:id
func (h *IssueHandler) Get(c *gin.Context) {
	id, ok := parseIssueID(c)
	if !ok {
		return
	}

	issue, err := h.issueService.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, issue)
}

// Create opens a new issue owned by the caller
// POST /api/issues
func (h *IssueHandler) Create(c *gin.Context) {
	var req services.CreateIssueInput
	if !bindBody(c, &req) {
		return
	}

	issue, err := h.issueService.Create(c.Request.Context(), middleware.GetIdentity(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, issue)
}

// Update applies a partial update
// PATCH /api/issues/:id
func (h *IssueHandler) Update(c *gin.Context) {
	id, ok := parseIssueID(c)
	if !ok {
		return
	}
	var req services.UpdateIssueInput
	if !bindBody(c, &req) {
		return
	}

	issue, err := h.issueService.Update(c.Request.Context(), middleware.GetIdentity(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, issue)
}

// Delete removes an issue with its comments and activity
// DELETE /api/issues/:id
func (h *IssueHandler) Delete(c *gin.Context) {
	id, ok := parseIssueID(c)
	if !ok {
		return
	}

	if err := h.issueService.Delete(c.Request.Context(), middleware.GetIdentity(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{})
}
