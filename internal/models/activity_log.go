package models

import "time"

// ActivityAction tags an activity entry. The set is closed.
type ActivityAction string

const (
	ActivityCreated            ActivityAction = "created"
	ActivityUpdatedTitle       ActivityAction = "updated_title"
	ActivityUpdatedDescription ActivityAction = "updated_description"
	ActivityStatusChanged      ActivityAction = "status_changed"
	ActivityPriorityChanged    ActivityAction = "priority_changed"
	ActivityAssigned           ActivityAction = "assigned"
	ActivityUnassigned         ActivityAction = "unassigned"
)

// Valid reports whether a belongs to the known vocabulary.
func (a ActivityAction) Valid() bool {
	switch a {
	case ActivityCreated, ActivityUpdatedTitle, ActivityUpdatedDescription,
		ActivityStatusChanged, ActivityPriorityChanged, ActivityAssigned, ActivityUnassigned:
		return true
	}
	return false
}

// ActivityLog is an append-only audit record owned by an issue. Entries are
// only ever removed together with their issue.
type ActivityLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	IssueID   uint           `gorm:"index;not null" json:"issue_id"`
	UserID    string         `gorm:"size:36;not null;index" json:"user_id"`
	User      *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action    ActivityAction `gorm:"size:32;not null" json:"action"`
	Details   string         `gorm:"type:text" json:"details"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (ActivityLog) TableName() string { return "activity_logs" }
