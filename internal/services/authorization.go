package services

import (
	"context"

	"github.com/trackwell/issuetracker/internal/models"
	"github.com/trackwell/issuetracker/internal/rbac"
	"github.com/trackwell/issuetracker/pkg/logger"
)

// Authorizer answers issue-level permission questions. Any lookup failure
// resolves to a denial.
type Authorizer struct {
	store Store
}

func NewAuthorizer(store Store) *Authorizer {
	return &Authorizer{store: store}
}

// ActorOf converts a stored user into an rbac subject. A nil user yields nil,
// which every predicate denies.
func ActorOf(user *models.User) *rbac.Actor {
	if user == nil {
		return nil
	}
	return &rbac.Actor{ID: user.ID, Role: rbac.ParseRole(user.Role)}
}

func (a *Authorizer) CanCreate(user *models.User) bool {
	return rbac.CanCreate(ActorOf(user))
}

func (a *Authorizer) CanEdit(ctx context.Context, user *models.User, issueID uint) bool {
	owner, ok := a.ownerOf(ctx, user, issueID)
	return ok && rbac.CanEdit(ActorOf(user), owner)
}

func (a *Authorizer) CanDelete(ctx context.Context, user *models.User, issueID uint) bool {
	owner, ok := a.ownerOf(ctx, user, issueID)
	return ok && rbac.CanDelete(ActorOf(user), owner)
}

func (a *Authorizer) ownerOf(ctx context.Context, user *models.User, issueID uint) (string, bool) {
	if user == nil {
		return "", false
	}
	issue, err := a.store.FindIssue(ctx, issueID)
	if err != nil {
		logger.Warn().Err(err).Uint("issue_id", issueID).Msg("authorization lookup failed, denying")
		return "", false
	}
	if issue == nil {
		return "", false
	}
	return issue.CreatedByUserID, true
}
