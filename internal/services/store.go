package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/trackwell/issuetracker/internal/models"
	"gorm.io/gorm"
)

// IssueChanges is a partial issue update. Nil pointers are left untouched.
// AssigneeSet distinguishes "clear the assignee" from "not supplied".
type IssueChanges struct {
	Title            *string
	Description      *string
	Status           *string
	Priority         *string
	AssigneeSet      bool
	AssignedToUserID *string
}

func (c IssueChanges) columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if c.Title != nil {
		cols["title"] = *c.Title
	}
	if c.Description != nil {
		cols["description"] = *c.Description
	}
	if c.Status != nil {
		cols["status"] = *c.Status
	}
	if c.Priority != nil {
		cols["priority"] = *c.Priority
	}
	if c.AssigneeSet {
		if c.AssignedToUserID == nil {
			cols["assigned_to_user_id"] = nil
		} else {
			cols["assigned_to_user_id"] = *c.AssignedToUserID
		}
	}
	return cols
}

// Empty reports whether no field was supplied.
func (c IssueChanges) Empty() bool {
	return len(c.columns()) == 0
}

// IssueQuery filters and pages an issue listing.
type IssueQuery struct {
	Status     string
	AssigneeID string
	Unassigned bool
	Search     string
	OrderBy    string
	Page       int
	PageSize   int
}

// Store is the data-access surface the issue core depends on. Lookups return
// (nil, nil) when the record does not exist.
type Store interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUserRole(ctx context.Context, id, role string) error

	FindIssue(ctx context.Context, id uint) (*models.Issue, error)
	ListIssues(ctx context.Context, q IssueQuery) ([]models.Issue, int64, error)
	CreateIssue(ctx context.Context, issue *models.Issue) error
	UpdateIssue(ctx context.Context, id uint, changes IssueChanges) (*models.Issue, error)
	DeleteIssue(ctx context.Context, id uint) error

	AppendActivity(ctx context.Context, entry *models.ActivityLog) error
	ListActivities(ctx context.Context, issueID uint, ascending bool) ([]models.ActivityLog, error)

	CreateComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, issueID uint) ([]models.Comment, error)
}

var issueOrderColumns = map[string]string{
	"title":      "title",
	"status":     "status",
	"priority":   "priority",
	"created_at": "created_at",
	"createdAt":  "created_at",
}

// authorColumns limits preloaded users to what the UI shows.
func authorColumns(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "email", "image")
}

// GormStore implements Store on gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	// Rows written outside the app may not be normalised.
	return s.findUser(ctx, "LOWER(email) = ?", models.NormalizeEmail(email))
}

func (s *GormStore) findUser(ctx context.Context, cond string, arg string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where(cond, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (s *GormStore) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("name ASC").Order("email ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *GormStore) UpdateUserRole(ctx context.Context, id, role string) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("role", role).Error
}

func (s *GormStore) FindIssue(ctx context.Context, id uint) (*models.Issue, error) {
	var issue models.Issue
	err := s.db.WithContext(ctx).
		Preload("AssignedTo", authorColumns).
		First(&issue, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find issue %d: %w", id, err)
	}
	return &issue, nil
}

func (s *GormStore) ListIssues(ctx context.Context, q IssueQuery) ([]models.Issue, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Issue{})

	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Unassigned {
		query = query.Where("assigned_to_user_id IS NULL")
	} else if q.AssigneeID != "" {
		query = query.Where("assigned_to_user_id = ?", q.AssigneeID)
	}
	if q.Search != "" {
		like := "%" + q.Search + "%"
		query = query.Where(s.db.Where("title LIKE ?", like).Or("description LIKE ?", like))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count issues: %w", err)
	}

	if col, ok := issueOrderColumns[q.OrderBy]; ok {
		query = query.Order(col + " ASC")
	}
	query = query.Order("id ASC")

	var issues []models.Issue
	err := query.
		Preload("AssignedTo", authorColumns).
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&issues).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list issues: %w", err)
	}
	return issues, total, nil
}

func (s *GormStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if err := s.db.WithContext(ctx).Omit("CreatedBy", "AssignedTo").Create(issue).Error; err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	return nil
}

// UpdateIssue writes every supplied column in one UPDATE statement and
// returns the row as stored afterwards, or nil if it no longer exists.
func (s *GormStore) UpdateIssue(ctx context.Context, id uint, changes IssueChanges) (*models.Issue, error) {
	if cols := changes.columns(); len(cols) > 0 {
		err := s.db.WithContext(ctx).Model(&models.Issue{}).Where("id = ?", id).Updates(cols).Error
		if err != nil {
			return nil, fmt.Errorf("update issue %d: %w", id, err)
		}
	}
	return s.FindIssue(ctx, id)
}

// DeleteIssue removes the issue together with the comments and activity
// entries it owns.
func (s *GormStore) DeleteIssue(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("issue_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		if err := tx.Where("issue_id = ?", id).Delete(&models.ActivityLog{}).Error; err != nil {
			return fmt.Errorf("delete activity: %w", err)
		}
		if err := tx.Delete(&models.Issue{}, id).Error; err != nil {
			return fmt.Errorf("delete issue %d: %w", id, err)
		}
		return nil
	})
}

func (s *GormStore) AppendActivity(ctx context.Context, entry *models.ActivityLog) error {
	return s.db.WithContext(ctx).Omit("User").Create(entry).Error
}

func (s *GormStore) ListActivities(ctx context.Context, issueID uint, ascending bool) ([]models.ActivityLog, error) {
	order := "created_at DESC, id DESC"
	if ascending {
		order = "created_at ASC, id ASC"
	}

	var entries []models.ActivityLog
	err := s.db.WithContext(ctx).
		Preload("User", authorColumns).
		Where("issue_id = ?", issueID).
		Order(order).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return entries, nil
}

func (s *GormStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	db := s.db.WithContext(ctx)
	if err := db.Omit("User").Create(comment).Error; err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return db.Preload("User", authorColumns).First(comment, comment.ID).Error
}

func (s *GormStore) ListComments(ctx context.Context, issueID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.WithContext(ctx).
		Preload("User", authorColumns).
		Where("issue_id = ?", issueID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}
