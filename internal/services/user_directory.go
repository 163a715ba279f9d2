package services

import (
	"context"

	"github.com/trackwell/issuetracker/internal/models"
)

// UserDirectory maps an authenticated identity onto its stored user.
type UserDirectory struct {
	store Store
}

func NewUserDirectory(store Store) *UserDirectory {
	return &UserDirectory{store: store}
}

// ResolveCurrentUser looks the identity up by email (by id when the identity
// carries no email). A nil identity, an unknown account or a disabled account
// all resolve to (nil, nil); callers treat that as anonymous.
func (d *UserDirectory) ResolveCurrentUser(ctx context.Context, id *Identity) (*models.User, error) {
	if id == nil {
		return nil, nil
	}

	var (
		user *models.User
		err  error
	)
	switch {
	case id.Email != "":
		user, err = d.store.FindUserByEmail(ctx, id.Email)
	case id.UserID != "":
		user, err = d.store.FindUserByID(ctx, id.UserID)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, nil
	}
	return user, nil
}

// FindByID returns the user with the given id, or nil.
func (d *UserDirectory) FindByID(ctx context.Context, id string) (*models.User, error) {
	return d.store.FindUserByID(ctx, id)
}
