package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/trackwell/issuetracker/internal/middleware"
	"github.com/trackwell/issuetracker/internal/services"
	"github.com/trackwell/issuetracker/pkg/response"
)

type CommentHandler struct {
	commentService *services.CommentService
}

func NewCommentHandler(commentService *services.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

// List returns an issue's comments, oldest first
// GET /api/issues/:id/comments
func (h *CommentHandler) List(c *gin.Context) {
	id, ok := parseIssueID(c)
	if !ok {
		return
	}

	comments, err := h.commentService.List(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, comments)
}

// Create adds a comment
// POST /api/issues/:id/comments
func (h *CommentHandler) Create(c *gin.Context) {
	id, ok := parseIssueID(c)
	if !ok {
		return
	}
	var req services.CreateCommentInput
	if !bindBody(c, &req) {
		return
	}

	comment, err := h.commentService.Add(c.Request.Context(), middleware.GetIdentity(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}
