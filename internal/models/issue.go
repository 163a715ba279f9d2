package models

import "time"

const (
	IssueStatusOpen       = "OPEN"
	IssueStatusInProgress = "IN_PROGRESS"
	IssueStatusClosed     = "CLOSED"
)

const (
	IssuePriorityLow    = "LOW"
	IssuePriorityMedium = "MEDIUM"
	IssuePriorityHigh   = "HIGH"
)

// Issue is a trackable unit of work. CreatedByUserID is the owner for
// authorization purposes and never changes after creation.
type Issue struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Title            string    `gorm:"size:255;not null" json:"title"`
	Description      string    `gorm:"type:text;not null" json:"description"`
	Status           string    `gorm:"size:20;not null;default:OPEN;index" json:"status"`
	Priority         *string   `gorm:"size:10" json:"priority"`
	CreatedByUserID  string    `gorm:"size:36;not null;index" json:"created_by_user_id"`
	CreatedBy        *User     `gorm:"foreignKey:CreatedByUserID" json:"created_by,omitempty"`
	AssignedToUserID *string   `gorm:"size:36;index" json:"assigned_to_user_id"`
	AssignedTo       *User     `gorm:"foreignKey:AssignedToUserID" json:"assigned_to,omitempty"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Issue) TableName() string { return "issues" }
