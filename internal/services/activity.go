package services

import (
	"context"
	"strings"

	"github.com/trackwell/issuetracker/internal/models"
)

type ActivityService struct {
	store Store
}

func NewActivityService(store Store) *ActivityService {
	return &ActivityService{store: store}
}

// List returns an issue's activity. order is "asc" or "desc"; anything else
// means newest first.
func (s *ActivityService) List(ctx context.Context, issueID uint, order string) ([]models.ActivityLog, error) {
	issue, err := s.store.FindIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, errIssueNotFound
	}
	return s.store.ListActivities(ctx, issueID, strings.EqualFold(order, "asc"))
}
