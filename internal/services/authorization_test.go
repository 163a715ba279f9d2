package services

import (
	"context"
	"errors"
	"testing"

	"github.com/trackwell/issuetracker/internal/models"
)

// brokenStore fails every issue lookup.
type brokenStore struct {
	Store
}

func (brokenStore) FindIssue(context.Context, uint) (*models.Issue, error) {
	return nil, errors.New("connection reset")
}

func TestAuthorizer_EditAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.seedIssue(t, f.member)

	tests := []struct {
		name string
		user *models.User
		want bool
	}{
		{"admin", f.admin, true},
		{"owner", f.member, true},
		{"other member", f.other, false},
		{"viewer", f.viewer, false},
		{"nil user", nil, false},
		{"unknown role", &models.User{ID: f.member.ID, Role: "SUPERUSER"}, false},
		{"lowercase admin", &models.User{ID: f.member.ID, Role: "admin"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.authz.CanEdit(ctx, tt.user, issue.ID); got != tt.want {
				t.Errorf("CanEdit = %v, expected %v", got, tt.want)
			}
			if got := f.authz.CanDelete(ctx, tt.user, issue.ID); got != tt.want {
				t.Errorf("CanDelete = %v, expected %v", got, tt.want)
			}
		})
	}
}

func TestAuthorizer_FailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if f.authz.CanEdit(ctx, f.admin, 12345) {
		t.Error("admin allowed to edit a missing issue")
	}

	broken := NewAuthorizer(brokenStore{Store: f.store})
	issue := f.seedIssue(t, f.member)
	if broken.CanEdit(ctx, f.admin, issue.ID) || broken.CanDelete(ctx, f.admin, issue.ID) {
		t.Error("store error must deny")
	}
}

func TestAuthorizer_CanCreate(t *testing.T) {
	f := newFixture(t)
	if !f.authz.CanCreate(f.admin) || !f.authz.CanCreate(f.member) {
		t.Error("admin and member should create")
	}
	if f.authz.CanCreate(f.viewer) || f.authz.CanCreate(nil) {
		t.Error("viewer and nil should not create")
	}
}
