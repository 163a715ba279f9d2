package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/trackwell/issuetracker/internal/models"
	"github.com/trackwell/issuetracker/internal/rbac"
	"github.com/trackwell/issuetracker/internal/services"
	"github.com/trackwell/issuetracker/internal/utils"
	"github.com/trackwell/issuetracker/pkg/logger"
	"github.com/trackwell/issuetracker/pkg/response"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextRole   = "role"
	ContextClaims = "claims"
)

// RevocationChecker reports whether an access token was logged out early.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Authenticate reads an optional bearer token. A valid, unrevoked token puts
// the caller's identity on the context; anything else leaves the request
// anonymous for AuthRequired or the service layer to reject.
func Authenticate(revocations RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			c.Next()
			return
		}

		if revocations != nil {
			revoked, err := revocations.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				// Without the denylist we cannot tell; treat as anonymous.
				logger.Warn().Err(err).Str("jti", claims.ID).Msg("revocation check failed")
				c.Next()
				return
			}
			if revoked {
				c.Next()
				return
			}
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// AuthRequired aborts with 401 unless Authenticate established an identity.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetIdentity(c) == nil {
			response.Unauthorized(c, "authentication required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserResolver maps the caller's identity onto the stored account.
type UserResolver interface {
	ResolveCurrentUser(ctx context.Context, id *services.Identity) (*models.User, error)
}

// AdminRequired aborts with 403 unless the caller's stored account is an
// active ADMIN. The role claim in the token is not trusted, so a demotion
// takes effect on the next request.
func AdminRequired(users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := users.ResolveCurrentUser(c.Request.Context(), GetIdentity(c))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if !rbac.CanManageUsers(services.ActorOf(user)) {
			response.Forbidden(c, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetIdentity returns the authenticated caller, or nil for anonymous requests.
func GetIdentity(c *gin.Context) *services.Identity {
	id := GetUserID(c)
	if id == "" {
		return nil
	}
	return &services.Identity{UserID: id, Email: c.GetString(ContextEmail)}
}

func GetUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

func GetRole(c *gin.Context) string {
	return c.GetString(ContextRole)
}

// GetClaims returns the parsed access token, if any.
func GetClaims(c *gin.Context) *utils.Claims {
	if v, ok := c.Get(ContextClaims); ok {
		if claims, ok := v.(*utils.Claims); ok {
			return claims
		}
	}
	return nil
}
