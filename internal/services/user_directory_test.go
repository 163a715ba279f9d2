package services

import (
	"context"
	"testing"
)

func TestUserDirectory_ResolveCurrentUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	disabled := f.addUser(t, "gone@example.com", "Gone", "MEMBER")
	f.db.Model(disabled).Update("is_active", false)

	tests := []struct {
		name     string
		identity *Identity
		wantID   string
	}{
		{"nil identity", nil, ""},
		{"by email", &Identity{Email: f.member.Email}, f.member.ID},
		{"by id", &Identity{UserID: f.admin.ID}, f.admin.ID},
		{"email wins over id", &Identity{UserID: f.admin.ID, Email: f.member.Email}, f.member.ID},
		{"unknown email", &Identity{Email: "nobody@example.com"}, ""},
		{"empty identity", &Identity{}, ""},
		{"disabled", &Identity{Email: disabled.Email}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := f.dir.ResolveCurrentUser(ctx, tt.identity)
			if err != nil {
				t.Fatalf("ResolveCurrentUser() error = %v", err)
			}
			gotID := ""
			if user != nil {
				gotID = user.ID
			}
			if gotID != tt.wantID {
				t.Errorf("resolved %q, expected %q", gotID, tt.wantID)
			}
		})
	}
}
