package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/trackwell/issuetracker/internal/config"
	"github.com/trackwell/issuetracker/internal/models"
	"github.com/trackwell/issuetracker/pkg/response"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := models.SeedDefaultData(db); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}

// fixture wires the issue core on a fresh database with one user per role.
type fixture struct {
	db       *gorm.DB
	store    *GormStore
	dir      *UserDirectory
	authz    *Authorizer
	issues   *IssueService
	comments *CommentService
	activity *ActivityService
	users    *UserService

	admin  *models.User
	member *models.User
	other  *models.User
	viewer *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	store := NewGormStore(db)
	dir := NewUserDirectory(store)
	authz := NewAuthorizer(store)

	f := &fixture{
		db:       db,
		store:    store,
		dir:      dir,
		authz:    authz,
		issues:   NewIssueService(store, dir, authz, NewActivityLogger(NewStoreSink(store))),
		comments: NewCommentService(store, dir),
		activity: NewActivityService(store),
		users:    NewUserService(store, dir),
	}
	f.admin = f.addUser(t, "admin@example.com", "Ada Admin", "ADMIN")
	f.member = f.addUser(t, "member@example.com", "Mia Member", "MEMBER")
	f.other = f.addUser(t, "other@example.com", "", "MEMBER")
	f.viewer = f.addUser(t, "viewer@example.com", "Vic Viewer", "VIEWER")
	return f
}

func (f *fixture) addUser(t *testing.T, email, name, role string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: name, Role: role, AuthType: "local", IsActive: true}
	if err := f.db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func identityOf(u *models.User) *Identity {
	return &Identity{UserID: u.ID, Email: u.Email}
}

// seedIssue inserts an issue owned by owner without going through the
// service, so no activity is written.
func (f *fixture) seedIssue(t *testing.T, owner *models.User) *models.Issue {
	t.Helper()
	issue := &models.Issue{
		Title:           "Login page broken",
		Description:     "Submitting the form returns 500",
		Status:          models.IssueStatusOpen,
		CreatedByUserID: owner.ID,
	}
	if err := f.store.CreateIssue(context.Background(), issue); err != nil {
		t.Fatalf("seed issue: %v", err)
	}
	return issue
}

func (f *fixture) activityFor(t *testing.T, issueID uint) []models.ActivityLog {
	t.Helper()
	entries, err := f.store.ListActivities(context.Background(), issueID, true)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	return entries
}

func strPtr(s string) *string { return &s }

// failingSink always errors, or panics when panicky is set.
type failingSink struct {
	panicky bool
	calls   int
}

func (s *failingSink) Append(context.Context, *models.ActivityLog) error {
	s.calls++
	if s.panicky {
		panic("sink exploded")
	}
	return errSinkDown
}

var errSinkDown = errors.New("sink unavailable")

func detailsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var appErr *response.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("err = %v, expected *response.AppError", err)
	}
	return appErr.Details
}
