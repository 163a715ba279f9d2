package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/trackwell/issuetracker/internal/metrics"
	"github.com/trackwell/issuetracker/internal/models"
	"github.com/trackwell/issuetracker/pkg/response"
)

var (
	errUnauthenticated = response.NewUnauthorized("authentication required")
	errUnknownUser     = response.NewForbidden("user not found")
	errIssueNotFound   = response.NewNotFound("Invalid issue")
	errInvalidAssignee = response.NewBadRequest("Invalid user")
)

type CreateIssueInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    *string `json:"priority"`
}

func (in *CreateIssueInput) validate() error {
	fe := fieldErrors{}
	fe.check("title", in.Title, ruleTitle)
	fe.check("description", in.Description, ruleDescription)
	if in.Priority != nil {
		fe.check("priority", *in.Priority, rulePriority)
	}
	return fe.err()
}

// UpdateIssueInput is a partial update; omitted fields stay as they are.
// A null priority is treated as omitted. A null assignee unassigns.
type UpdateIssueInput struct {
	Title            *string        `json:"title"`
	Description      *string        `json:"description"`
	Status           *string        `json:"status"`
	Priority         *string        `json:"priority"`
	AssignedToUserID OptionalString `json:"assigned_to_user_id"`
}

func (in *UpdateIssueInput) validate() error {
	fe := fieldErrors{}
	if in.Title != nil {
		fe.check("title", *in.Title, ruleTitle)
	}
	if in.Description != nil {
		fe.check("description", *in.Description, ruleDescription)
	}
	if in.Status != nil {
		fe.check("status", *in.Status, ruleStatus)
	}
	if in.Priority != nil {
		fe.check("priority", *in.Priority, rulePriority)
	}
	if in.AssignedToUserID.Set && in.AssignedToUserID.Value != nil {
		fe.check("assigned_to_user_id", *in.AssignedToUserID.Value, ruleUserID)
	}
	return fe.err()
}

func (in *UpdateIssueInput) changes() IssueChanges {
	return IssueChanges{
		Title:            in.Title,
		Description:      in.Description,
		Status:           in.Status,
		Priority:         in.Priority,
		AssigneeSet:      in.AssignedToUserID.Set,
		AssignedToUserID: in.AssignedToUserID.Value,
	}
}

// issueDiff is what each loggedField inspects after an update.
type issueDiff struct {
	before   *models.Issue
	in       *UpdateIssueInput
	assignee *models.User
}

// loggedField describes one audited issue field: when it counts as changed,
// which action it records and how the entry reads.
type loggedField struct {
	name    string
	changed func(d issueDiff) bool
	action  func(d issueDiff) models.ActivityAction
	details func(d issueDiff) string
}

func always(a models.ActivityAction) func(issueDiff) models.ActivityAction {
	return func(issueDiff) models.ActivityAction { return a }
}

func orNone(p *string) string {
	if p == nil {
		return "none"
	}
	return *p
}

var loggedFields = []loggedField{
	{
		name:    "title",
		changed: func(d issueDiff) bool { return d.in.Title != nil && *d.in.Title != d.before.Title },
		action:  always(models.ActivityUpdatedTitle),
		details: func(d issueDiff) string {
			return fmt.Sprintf(`Changed title from "%s" to "%s"`, d.before.Title, *d.in.Title)
		},
	},
	{
		name:    "description",
		changed: func(d issueDiff) bool { return d.in.Description != nil && *d.in.Description != d.before.Description },
		action:  always(models.ActivityUpdatedDescription),
		details: func(issueDiff) string { return "Updated issue description" },
	},
	{
		name:    "status",
		changed: func(d issueDiff) bool { return d.in.Status != nil && *d.in.Status != d.before.Status },
		action:  always(models.ActivityStatusChanged),
		details: func(d issueDiff) string {
			return fmt.Sprintf("Changed status from %s to %s", d.before.Status, *d.in.Status)
		},
	},
	{
		name: "priority",
		changed: func(d issueDiff) bool {
			return d.in.Priority != nil && (d.before.Priority == nil || *d.in.Priority != *d.before.Priority)
		},
		action: always(models.ActivityPriorityChanged),
		details: func(d issueDiff) string {
			return fmt.Sprintf("Changed priority from %s to %s", orNone(d.before.Priority), *d.in.Priority)
		},
	},
	{
		name: "assigned_to_user_id",
		changed: func(d issueDiff) bool {
			if !d.in.AssignedToUserID.Set {
				return false
			}
			next, prev := d.in.AssignedToUserID.Value, d.before.AssignedToUserID
			if next == nil || prev == nil {
				return next != prev
			}
			return *next != *prev
		},
		action: func(d issueDiff) models.ActivityAction {
			if d.in.AssignedToUserID.Value == nil {
				return models.ActivityUnassigned
			}
			return models.ActivityAssigned
		},
		details: func(d issueDiff) string {
			if d.in.AssignedToUserID.Value == nil {
				return "Unassigned the issue"
			}
			return "Assigned to " + d.assignee.DisplayName()
		},
	},
}

type IssueListRequest struct {
	Status   string `form:"status"`
	Assignee string `form:"assignee"`
	Search   string `form:"search"`
	OrderBy  string `form:"order_by"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

type IssueListResponse struct {
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Items    []models.Issue `json:"items"`
}

// IssueService runs issue mutations: authenticate, resolve, authorize,
// validate, write, then record activity.
type IssueService struct {
	store    Store
	users    *UserDirectory
	authz    *Authorizer
	activity *ActivityLogger
}

func NewIssueService(store Store, users *UserDirectory, authz *Authorizer, activity *ActivityLogger) *IssueService {
	return &IssueService{store: store, users: users, authz: authz, activity: activity}
}

// resolveActor covers the first two steps shared by every mutation.
func (s *IssueService) resolveActor(ctx context.Context, identity *Identity) (*models.User, error) {
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
	return user, nil
}

func (s *IssueService) Create(ctx context.Context, identity *Identity, in CreateIssueInput) (issue *models.Issue, err error) {
	defer observeMutation("create", &err)

	user, err := s.resolveActor(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !s.authz.CanCreate(user) {
		return nil, response.NewForbidden("Insufficient permissions")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	issue = &models.Issue{
		Title:           in.Title,
		Description:     in.Description,
		Status:          models.IssueStatusOpen,
		Priority:        in.Priority,
		CreatedByUserID: user.ID,
	}
	if err := s.store.CreateIssue(ctx, issue); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, issue.ID, user.ID, models.ActivityCreated, "Created issue: "+issue.Title)
	return issue, nil
}

func (s *IssueService) Update(ctx context.Context, identity *Identity, issueID uint, in UpdateIssueInput) (updated *models.Issue, err error) {
	defer observeMutation("update", &err)

	user, err := s.resolveActor(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !s.authz.CanEdit(ctx, user, issueID) {
		return nil, response.NewForbidden("Unauthorized to edit this issue")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var assignee *models.User
	if in.AssignedToUserID.Set && in.AssignedToUserID.Value != nil {
		assignee, err = s.store.FindUserByID(ctx, *in.AssignedToUserID.Value)
		if err != nil {
			return nil, err
		}
		if assignee == nil {
			return nil, errInvalidAssignee
		}
	}

	before, err := s.store.FindIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if before == nil {
		return nil, errIssueNotFound
	}

	updated, err = s.store.UpdateIssue(ctx, issueID, in.changes())
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, errIssueNotFound
	}

	d := issueDiff{before: before, in: &in, assignee: assignee}
	for _, f := range loggedFields {
		if f.changed(d) {
			s.activity.Record(ctx, issueID, user.ID, f.action(d), f.details(d))
		}
	}
	return updated, nil
}

// Delete removes an issue with its comments and activity. No activity entry
// is written for the deletion itself.
func (s *IssueService) Delete(ctx context.Context, identity *Identity, issueID uint) (err error) {
	defer observeMutation("delete", &err)

	user, err := s.resolveActor(ctx, identity)
	if err != nil {
		return err
	}
	if !s.authz.CanDelete(ctx, user, issueID) {
		return response.NewForbidden("Unauthorized to delete this issue")
	}

	issue, err := s.store.FindIssue(ctx, issueID)
	if err != nil {
		return err
	}
	if issue == nil {
		return errIssueNotFound
	}
	return s.store.DeleteIssue(ctx, issueID)
}

func (s *IssueService) Get(ctx context.Context, issueID uint) (*models.Issue, error) {
	issue, err := s.store.FindIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, errIssueNotFound
	}
	return issue, nil
}

func (s *IssueService) List(ctx context.Context, req *IssueListRequest) (*IssueListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 10
	}

	q := IssueQuery{
		Search:   req.Search,
		OrderBy:  req.OrderBy,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if validate.Var(req.Status, ruleStatus.tag) == nil {
		q.Status = req.Status
	}
	switch req.Assignee {
	case "":
	case "unassigned":
		q.Unassigned = true
	default:
		q.AssigneeID = req.Assignee
	}

	items, total, err := s.store.ListIssues(ctx, q)
	if err != nil {
		return nil, err
	}
	return &IssueListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: items}, nil
}

func observeMutation(op string, err *error) {
	result := "success"
	switch {
	case *err == nil:
	case response.IsStatus(*err, http.StatusUnauthorized):
		result = "unauthenticated"
	case response.IsStatus(*err, http.StatusForbidden):
		result = "forbidden"
	case response.IsStatus(*err, http.StatusNotFound):
		result = "not_found"
	case response.IsStatus(*err, http.StatusBadRequest):
		result = "invalid"
	default:
		result = "error"
	}
	metrics.IssueMutationsTotal.WithLabelValues(op, result).Inc()
}
