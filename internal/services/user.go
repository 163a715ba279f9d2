package services

import (
	"context"

	"github.com/trackwell/issuetracker/internal/models"
	"github.com/trackwell/issuetracker/internal/rbac"
	"github.com/trackwell/issuetracker/pkg/response"
)

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type UserService struct {
	store Store
	users *UserDirectory
}

func NewUserService(store Store, users *UserDirectory) *UserService {
	return &UserService{store: store, users: users}
}

// List returns every user; any authenticated account may pick assignees.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.store.ListUsers(ctx)
}

// UpdateRole changes a user's role. Only admins may do it, and an admin
// cannot demote themselves.
func (s *UserService) UpdateRole(ctx context.Context, identity *Identity, userID string, req *UpdateRoleRequest) (*models.User, error) {
	if identity == nil {
		return nil, errUnauthenticated
	}
	actor, err := s.users.ResolveCurrentUser(ctx, identity)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, errUnknownUser
	}
	if !rbac.CanManageUsers(ActorOf(actor)) {
		return nil, response.NewForbidden("admin access required")
	}

	role := rbac.ParseRole(req.Role)
	if !role.Valid() {
		return nil, response.NewValidation(map[string]string{"role": "must be one of ADMIN MEMBER VIEWER"})
	}
	if actor.ID == userID && role != rbac.RoleAdmin {
		return nil, response.NewBadRequest("cannot change your own admin role")
	}

	target, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, response.NewNotFound("user not found")
	}

	if err := s.store.UpdateUserRole(ctx, userID, string(role)); err != nil {
		return nil, err
	}
	target.Role = string(role)

	uid := actor.ID
	LogInfo("User", "UpdateRole", "changed role of "+target.Email+" to "+string(role), &uid, "", "", nil)
	return target, nil
}
