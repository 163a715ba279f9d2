package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/trackwell/issuetracker/internal/middleware"
	"github.com/trackwell/issuetracker/internal/services"
	"github.com/trackwell/issuetracker/pkg/response"
)

type AuthHandler struct {
	authService *services.AuthService
	users       *services.UserDirectory
}

func NewAuthHandler(authService *services.AuthService, users *services.UserDirectory) *AuthHandler {
	return &AuthHandler{authService: authService, users: users}
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email and password are required")
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// Refresh rotates the refresh token
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req services.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "refresh_token is required")
		return
	}

	resp, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// Me returns the caller's account
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.ResolveCurrentUser(c.Request.Context(), middleware.GetIdentity(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if user == nil {
		response.NotFound(c, "user not found")
		return
	}
	response.Success(c, user)
}

// Logout revokes the refresh token in the body, if any, and the access token
// used for this request
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken, middleware.GetClaims(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "logged out"})
}

// Config reports which login methods are available
// GET /api/auth/config
func (h *AuthHandler) Config(c *gin.Context) {
	response.Success(c, gin.H{"ldap_enabled": h.authService.IsLDAPEnabled()})
}
