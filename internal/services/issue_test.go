package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/trackwell/issuetracker/internal/models"
	"github.com/trackwell/issuetracker/pkg/response"
)

func TestIssueService_UpdateTitleAsOwner(t *testing.T) {
	f := newFixture(t)
	issue := f.seedIssue(t, f.member)

	updated, err := f.issues.Update(context.Background(), identityOf(f.member), issue.ID, UpdateIssueInput{
		Title: strPtr("Login fails on Safari"),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != "Login fails on Safari" {
		t.Errorf("Title = %q", updated.Title)
	}
	if updated.Description != issue.Description || updated.Status != models.IssueStatusOpen {
		t.Errorf("untouched fields changed: %+v", updated)
	}

	entries := f.activityFor(t, issue.ID)
	if len(entries) != 1 {
		t.Fatalf("expected 1 activity entry, got %d", len(entries))
	}
	if entries[0].Action != models.ActivityUpdatedTitle {
		t.Errorf("Action = %q", entries[0].Action)
	}
	want := `Changed title from "Login page broken" to "Login fails on Safari"`
	if entries[0].Details != want {
		t.Errorf("Details = %q, expected %q", entries[0].Details, want)
	}
	if entries[0].UserID != f.member.ID {
		t.Errorf("UserID = %q, expected actor %q", entries[0].UserID, f.member.ID)
	}
}

func TestIssueService_UpdateEveryField(t *testing.T) {
	f := newFixture(t)
	issue := f.seedIssue(t, f.member)

	_, err := f.issues.Update(context.Background(), identityOf(f.admin), issue.ID, UpdateIssueInput{
		Title:            strPtr("New title"),
		Description:      strPtr("New description"),
		Status:           strPtr(models.IssueStatusInProgress),
		Priority:         strPtr(models.IssuePriorityHigh),
		AssignedToUserID: SomeString(f.other.ID),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	entries := f.activityFor(t, issue.ID)
	expected := []struct {
		action  models.ActivityAction
		details string
	}{
		{models.ActivityUpdatedTitle, `Changed title from "Login page broken" to "New title"`},
		{models.ActivityUpdatedDescription, "Updated issue description"},
		{models.ActivityStatusChanged, "Changed status from OPEN to IN_PROGRESS"},
		{models.ActivityPriorityChanged, "Changed priority from none to HIGH"},
		// other has no name, so the email is shown.
		{models.ActivityAssigned, "Assigned to other@example.com"},
	}
	if len(entries) != len(expected) {
		t.Fatalf("expected %d entries, got %d", len(expected), len(entries))
	}
	for i, e := range expected {
		if entries[i].Action != e.action || entries[i].Details != e.details {
			t.Errorf("entry %d = (%q, %q), expected (%q, %q)", i, entries[i].Action, entries[i].Details, e.action, e.details)
		}
	}
}

func TestIssueService_UpdateUnchangedValuesLogNothing(t *testing.T) {
	f := newFixture(t)
	issue := f.seedIssue(t, f.member)

	_, err := f.issues.Update(context.Background(), identityOf(f.member), issue.ID, UpdateIssueInput{
		Title:  strPtr(issue.Title),
		Status: strPtr(issue.Status),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if entries := f.activityFor(t, issue.ID); len(entries) != 0 {
		t.Errorf("expected no activity for unchanged values, got %+v", entries)
	}
}

func TestIssueService_AssignThenUnassign(t *testing.T) {
	f := newFixture(t)
	issue := f.seedIssue(t, f.member)
	ctx := context.Background()

	updated, err := f.issues.Update(ctx, identityOf(f.member), issue.ID, UpdateIssueInput{AssignedToUserID: SomeString(f.admin.ID)})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if updated.AssignedToUserID == nil || *updated.AssignedToUserID != f.admin.ID {
		t.Fatalf("AssignedToUserID = %v", updated.AssignedToUserID)
	}

	updated, err = f.issues.Update(ctx, identityOf(f.member), issue.ID, UpdateIssueInput{AssignedToUserID: NullString()})
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if updated.AssignedToUserID != nil {
		t.Errorf("expected assignee cleared, got %v", *updated.AssignedToUserID)
	}

	entries := f.activityFor(t, issue.ID)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Details != "Assigned to Ada Admin" {
		t.Errorf("assign details = %q", entries[0].Details)
	}
	if entries[1].Action != models.ActivityUnassigned || entries[1].Details != "Unassigned the issue" {
		t.Errorf("unassign entry = %+v", entries[1])
	}

	// Unassigning an unassigned issue is not a change.
	if _, err := f.issues.Update(ctx, identityOf(f.member), issue.ID, UpdateIssueInput{AssignedToUserID: NullString()}); err != nil {
		t.Fatal(err)
	}
	if n := len(f.activityFor(t, issue.ID)); n != 2 {
		t.Errorf("expected still 2 entries, got %d", n)
	}
}

func TestIssueService_UpdateDenials(t *testing.T) {
	f := newFixture(t)
	memberIssue := f.seedIssue(t, f.member)
	viewerIssue := f.seedIssue(t, f.viewer)

	tests := []struct {
		name     string
		identity *Identity
		issueID  uint
		status   int
	}{
		{"anonymous", nil, memberIssue.ID, http.StatusUnauthorized},
		{"unknown account", &Identity{Email: "ghost@example.com"}, memberIssue.ID, http.StatusForbidden},
		{"member not owner", identityOf(f.other), memberIssue.ID, http.StatusForbidden},
		{"viewer", identityOf(f.viewer), memberIssue.ID, http.StatusForbidden},
		{"viewer owning the issue", identityOf(f.viewer), viewerIssue.ID, http.StatusForbidden},
		{"missing issue", identityOf(f.admin), 9999, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.issues.Update(context.Background(), tt.identity, tt.issueID, UpdateIssueInput{Title: strPtr("Hijacked")})
			if !response.IsStatus(err, tt.status) {
				t.Fatalf("err = %v, expected status %d", err, tt.status)
			}
		})
	}

	got, _ := f.store.FindIssue(context.Background(), memberIssue.ID)
	if got.Title != memberIssue.Title {
		t.Errorf("denied update was applied: %q", got.Title)
	}
	if n := len(f.activityFor(t, memberIssue.ID)); n != 0 {
		t.Errorf("denied update wrote %d activity entries", n)
	}
}

func TestIssueService_UpdateValidation(t *testing.T) {
	f := newFixture(t)
	issue := f.seedIssue(t, f.member)

	tests := []struct {
		name  string
		in    UpdateIssueInput
		field string
	}{
		{"empty title", UpdateIssueInput{Title: strPtr("")}, "title"},
		{"empty description", UpdateIssueInput{Description: strPtr("")}, "description"},
		{"bad status", UpdateIssueInput{Status: strPtr("DONE")}, "status"},
		{"bad priority", UpdateIssueInput{Priority: strPtr("URGENT")}, "priority"},
		{"empty assignee", UpdateIssueInput{AssignedToUserID: SomeString("")}, "assigned_to_user_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.issues.Update(context.Background(), identityOf(f.member), issue.ID, tt.in)
			var appErr *response.AppError
			if !errors.As(err, &appErr) || appErr.HTTPStatus != http.StatusBadRequest {
				t.Fatalf("err = %v, expected validation failure", err)
			}
			if appErr.Details[tt.field] == "" {
				t.Errorf("expected detail for %s, got %v", tt.field, appErr.Details)
			}
		})
	}
}

func TestIssueService_ValidationAfterAuthorization(t *testing.T) {
	f := newFixture(t)
	issue := f.seedIssue(t, f.member)

	_, err := f.issues.Update(context.Background(), identityOf(f.viewer), issue.ID, UpdateIssueInput{Title: strPtr("")})
	if !response.IsStatus(err, http.StatusForbidden) {
		t.Fatalf("err = %v, expected forbidden before validation", err)
	}
}

func TestIssueService_AssignMissingUser(t *testing.T) {
	f := newFixture(t)
	issue := f.seedIssue(t, f.member)

	_, err := f.issues.Update(context.Background(), identityOf(f.member), issue.ID, UpdateIssueInput{
		Title:            strPtr("Should not stick"),
		AssignedToUserID: SomeString("no-such-user"),
	})
	if !response.IsStatus(err, http.StatusBadRequest) {
		t.Fatalf("err = %v, expected bad request", err)
	}

	got, _ := f.store.FindIssue(context.Background(), issue.ID)
	if got.Title != issue.Title || got.AssignedToUserID != nil {
		t.Errorf("issue changed despite invalid assignee: %+v", got)
	}
}

func TestIssueService_UpdateSurvivesActivityFailure(t *testing.T) {
	for _, panicky := range []bool{false, true} {
		f := newFixture(t)
		sink := &failingSink{panicky: panicky}
		svc := NewIssueService(f.store, f.dir, f.authz, NewActivityLogger(sink))
		issue := f.seedIssue(t, f.member)

		updated, err := svc.Update(context.Background(), identityOf(f.member), issue.ID, UpdateIssueInput{
			Title:  strPtr("Still saved"),
			Status: strPtr(models.IssueStatusClosed),
		})
		if err != nil {
			t.Fatalf("panicky=%v: Update() error = %v", panicky, err)
		}
		if updated.Title != "Still saved" || updated.Status != models.IssueStatusClosed {
			t.Errorf("panicky=%v: update not applied: %+v", panicky, updated)
		}
		if sink.calls != 2 {
			t.Errorf("panicky=%v: expected 2 append attempts, got %d", panicky, sink.calls)
		}
	}
}

func TestIssueService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issue, err := f.issues.Create(ctx, identityOf(f.member), CreateIssueInput{
		Title:       "Export is slow",
		Description: "CSV export takes minutes",
		Priority:    strPtr(models.IssuePriorityLow),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if issue.ID == 0 || issue.CreatedByUserID != f.member.ID || issue.Status != models.IssueStatusOpen {
		t.Errorf("unexpected issue: %+v", issue)
	}

	entries := f.activityFor(t, issue.ID)
	if len(entries) != 1 || entries[0].Action != models.ActivityCreated || entries[0].Details != "Created issue: Export is slow" {
		t.Errorf("unexpected activity: %+v", entries)
	}

	got, err := f.issues.Get(ctx, issue.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "Export is slow" || got.Description != "CSV export takes minutes" {
		t.Errorf("Get() text = %q / %q", got.Title, got.Description)
	}
	if got.Status != models.IssueStatusOpen {
		t.Errorf("Get() status = %q", got.Status)
	}
	if got.Priority == nil || *got.Priority != models.IssuePriorityLow {
		t.Errorf("Get() priority = %v", got.Priority)
	}
	if got.CreatedByUserID != f.member.ID || got.AssignedToUserID != nil {
		t.Errorf("Get() owner = %s assignee = %v", got.CreatedByUserID, got.AssignedToUserID)
	}
}

func TestIssueService_CreateDenials(t *testing.T) {
	f := newFixture(t)
	in := CreateIssueInput{Title: "t", Description: "d"}

	if _, err := f.issues.Create(context.Background(), nil, in); !response.IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("anonymous: err = %v", err)
	}
	if _, err := f.issues.Create(context.Background(), identityOf(f.viewer), in); !response.IsStatus(err, http.StatusForbidden) {
		t.Errorf("viewer: err = %v", err)
	}
	if _, err := f.issues.Create(context.Background(), identityOf(f.member), CreateIssueInput{Description: "d"}); !response.IsStatus(err, http.StatusBadRequest) {
		t.Errorf("missing title: err = %v", err)
	}

	// None of the rejected calls may leave an issue or activity behind.
	var issues, entries int64
	f.db.Model(&models.Issue{}).Count(&issues)
	f.db.Model(&models.ActivityLog{}).Count(&entries)
	if issues != 0 || entries != 0 {
		t.Errorf("rejected creates wrote %d issues and %d activity entries", issues, entries)
	}
}

func TestIssueService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.seedIssue(t, f.member)

	if _, err := f.issues.Update(ctx, identityOf(f.member), issue.ID, UpdateIssueInput{Status: strPtr(models.IssueStatusClosed)}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.comments.Add(ctx, identityOf(f.other), issue.ID, CreateCommentInput{Text: "me too"}); err != nil {
		t.Fatal(err)
	}

	if err := f.issues.Delete(ctx, identityOf(f.other), issue.ID); !response.IsStatus(err, http.StatusForbidden) {
		t.Fatalf("non-owner delete: err = %v", err)
	}
	if err := f.issues.Delete(ctx, identityOf(f.member), issue.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if got, _ := f.store.FindIssue(ctx, issue.ID); got != nil {
		t.Error("issue still present")
	}
	if n := len(f.activityFor(t, issue.ID)); n != 0 {
		t.Errorf("expected activity removed with the issue, got %d", n)
	}
	comments, _ := f.store.ListComments(ctx, issue.ID)
	if len(comments) != 0 {
		t.Errorf("expected comments removed with the issue, got %d", len(comments))
	}
}

func TestIssueService_DeleteByAdminAndViewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	viewerIssue := f.seedIssue(t, f.viewer)

	if err := f.issues.Delete(ctx, identityOf(f.viewer), viewerIssue.ID); !response.IsStatus(err, http.StatusForbidden) {
		t.Errorf("viewer delete: err = %v", err)
	}
	if err := f.issues.Delete(ctx, identityOf(f.admin), viewerIssue.ID); err != nil {
		t.Errorf("admin delete: err = %v", err)
	}
	if err := f.issues.Delete(ctx, nil, viewerIssue.ID); !response.IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("anonymous delete: err = %v", err)
	}
}

func TestIssueService_GetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.seedIssue(t, f.member)
	b := f.seedIssue(t, f.member)
	if _, err := f.issues.Update(ctx, identityOf(f.member), b.ID, UpdateIssueInput{
		Title:            strPtr("Crash on upload"),
		Status:           strPtr(models.IssueStatusClosed),
		AssignedToUserID: SomeString(f.other.ID),
	}); err != nil {
		t.Fatal(err)
	}

	got, err := f.issues.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.AssignedTo == nil || got.AssignedTo.Email != f.other.Email {
		t.Errorf("assignee not preloaded: %+v", got.AssignedTo)
	}
	if _, err := f.issues.Get(ctx, 4242); !response.IsStatus(err, http.StatusNotFound) {
		t.Errorf("missing issue: err = %v", err)
	}

	tests := []struct {
		name string
		req  IssueListRequest
		ids  []uint
	}{
		{"all", IssueListRequest{}, []uint{a.ID, b.ID}},
		{"closed", IssueListRequest{Status: models.IssueStatusClosed}, []uint{b.ID}},
		{"invalid status ignored", IssueListRequest{Status: "BOGUS"}, []uint{a.ID, b.ID}},
		{"unassigned", IssueListRequest{Assignee: "unassigned"}, []uint{a.ID}},
		{"by assignee", IssueListRequest{Assignee: f.other.ID}, []uint{b.ID}},
		{"search", IssueListRequest{Search: "upload"}, []uint{b.ID}},
		{"order by title", IssueListRequest{OrderBy: "title"}, []uint{b.ID, a.ID}},
		{"second page", IssueListRequest{Page: 2, PageSize: 1}, []uint{b.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			resp, err := f.issues.List(ctx, &req)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(resp.Items) != len(tt.ids) {
				t.Fatalf("got %d items, expected %d", len(resp.Items), len(tt.ids))
			}
			for i, id := range tt.ids {
				if resp.Items[i].ID != id {
					t.Errorf("item %d = %d, expected %d", i, resp.Items[i].ID, id)
				}
			}
		})
	}
}

func TestIssueService_ListPagingDefaults(t *testing.T) {
	f := newFixture(t)
	req := &IssueListRequest{Page: -3, PageSize: 500}
	if _, err := f.issues.List(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if req.Page != 1 || req.PageSize != 10 {
		t.Errorf("paging = %d/%d, expected 1/10", req.Page, req.PageSize)
	}
}

func TestLoggedFields_PriorityFromValue(t *testing.T) {
	before := &models.Issue{Priority: strPtr(models.IssuePriorityLow)}
	in := &UpdateIssueInput{Priority: strPtr(models.IssuePriorityMedium)}
	d := issueDiff{before: before, in: in}

	for _, f := range loggedFields {
		if f.name != "priority" {
			if f.changed(d) {
				t.Errorf("%s reported a change", f.name)
			}
			continue
		}
		if !f.changed(d) {
			t.Fatal("priority change not detected")
		}
		if got := f.details(d); got != "Changed priority from LOW to MEDIUM" {
			t.Errorf("details = %q", got)
		}
	}
}
