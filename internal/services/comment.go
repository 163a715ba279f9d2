package services

import (
	"context"

	"github.com/trackwell/issuetracker/internal/models"
	"github.com/trackwell/issuetracker/internal/rbac"
	"github.com/trackwell/issuetracker/pkg/response"
)

type CreateCommentInput struct {
	Text string `json:"text"`
}

type CommentService struct {
	store Store
	users *UserDirectory
}

func NewCommentService(store Store, users *UserDirectory) *CommentService {
	return &CommentService{store: store, users: users}
}

// List returns an issue's comments oldest first.
func (s *CommentService) List(ctx context.Context, issueID uint) ([]models.Comment, error) {
	issue, err := s.store.FindIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, errIssueNotFound
	}
	return s.store.ListComments(ctx, issueID)
}

func (s *CommentService) Add(ctx context.Context, identity *Identity, issueID uint, in CreateCommentInput) (*models.Comment, error) {
	if identity == nil {
		return nil, errUnauthenticated
	}
	user, err := s.users.ResolveCurrentUser(ctx, identity)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errUnknownUser
	}
	if !rbac.CanComment(ActorOf(user)) {
		return nil, response.NewForbidden("Insufficient permissions")
	}

	fe := fieldErrors{}
	fe.check("text", in.Text, ruleComment)
	if err := fe.err(); err != nil {
		return nil, err
	}

	issue, err := s.store.FindIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, errIssueNotFound
	}

	comment := &models.Comment{IssueID: issueID, UserID: user.ID, Text: in.Text}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}
