package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/trackwell/issuetracker/pkg/response"
)

func TestCommentService_AddAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.seedIssue(t, f.member)

	first, err := f.comments.Add(ctx, identityOf(f.viewer), issue.ID, CreateCommentInput{Text: "Seeing this too"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if first.User == nil || first.User.Name != "Vic Viewer" {
		t.Errorf("author not loaded: %+v", first.User)
	}
	if _, err := f.comments.Add(ctx, identityOf(f.member), issue.ID, CreateCommentInput{Text: "Fix is coming"}); err != nil {
		t.Fatal(err)
	}

	comments, err := f.comments.List(ctx, issue.ID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(comments) != 2 || comments[0].Text != "Seeing this too" || comments[1].Text != "Fix is coming" {
		t.Errorf("unexpected comments: %+v", comments)
	}
}

func TestCommentService_AddFailures(t *testing.T) {
	f := newFixture(t)
	issue := f.seedIssue(t, f.member)

	tests := []struct {
		name     string
		identity *Identity
		issueID  uint
		text     string
		status   int
	}{
		{"anonymous", nil, issue.ID, "hi", http.StatusUnauthorized},
		{"unknown account", &Identity{Email: "ghost@example.com"}, issue.ID, "hi", http.StatusForbidden},
		{"empty text", identityOf(f.member), issue.ID, "", http.StatusBadRequest},
		{"missing issue", identityOf(f.member), 999, "hi", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.comments.Add(context.Background(), tt.identity, tt.issueID, CreateCommentInput{Text: tt.text})
			if !response.IsStatus(err, tt.status) {
				t.Errorf("err = %v, expected status %d", err, tt.status)
			}
		})
	}
}

func TestActivityService_ListOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issue, err := f.issues.Create(ctx, identityOf(f.member), CreateIssueInput{Title: "Flaky test", Description: "Fails on CI"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.issues.Update(ctx, identityOf(f.member), issue.ID, UpdateIssueInput{Status: strPtr("CLOSED")}); err != nil {
		t.Fatal(err)
	}

	asc, err := f.activity.List(ctx, issue.ID, "asc")
	if err != nil {
		t.Fatalf("List(asc) error = %v", err)
	}
	desc, err := f.activity.List(ctx, issue.ID, "")
	if err != nil {
		t.Fatalf("List(desc) error = %v", err)
	}
	if len(asc) != 2 || len(desc) != 2 {
		t.Fatalf("expected 2 entries each, got %d and %d", len(asc), len(desc))
	}
	if asc[0].ID != desc[1].ID || asc[1].ID != desc[0].ID {
		t.Error("desc should reverse asc")
	}
	if asc[0].Details != "Created issue: Flaky test" {
		t.Errorf("first entry = %q", asc[0].Details)
	}

	if _, err := f.activity.List(ctx, 31337, "asc"); !response.IsStatus(err, http.StatusNotFound) {
		t.Errorf("missing issue: err = %v", err)
	}
}
