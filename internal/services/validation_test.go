package services

import (
	"encoding/json"
	"testing"
)

func TestOptionalString_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		set     bool
		wantNil bool
		value   string
	}{
		{"absent", `{}`, false, true, ""},
		{"null", `{"assigned_to_user_id":null}`, true, true, ""},
		{"value", `{"assigned_to_user_id":"u-42"}`, true, false, "u-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in UpdateIssueInput
			if err := json.Unmarshal([]byte(tt.body), &in); err != nil {
				t.Fatalf("Unmarshal error = %v", err)
			}
			got := in.AssignedToUserID
			if got.Set != tt.set {
				t.Errorf("Set = %v, expected %v", got.Set, tt.set)
			}
			if (got.Value == nil) != tt.wantNil {
				t.Fatalf("Value = %v, expected nil=%v", got.Value, tt.wantNil)
			}
			if got.Value != nil && *got.Value != tt.value {
				t.Errorf("Value = %q, expected %q", *got.Value, tt.value)
			}
		})
	}
}

func TestOptionalString_RejectsNonString(t *testing.T) {
	var in UpdateIssueInput
	if err := json.Unmarshal([]byte(`{"assigned_to_user_id":42}`), &in); err == nil {
		t.Error("expected error for numeric assignee")
	}
}

func TestUpdateIssueInput_Changes(t *testing.T) {
	in := UpdateIssueInput{Status: strPtr("CLOSED"), AssignedToUserID: NullString()}
	c := in.changes()

	cols := c.columns()
	if len(cols) != 2 {
		t.Fatalf("columns = %v, expected status and assignee only", cols)
	}
	if v, ok := cols["assigned_to_user_id"]; !ok || v != nil {
		t.Errorf("assignee column = %v, %v; expected explicit nil", v, ok)
	}
	var empty UpdateIssueInput
	if !empty.changes().Empty() {
		t.Error("empty input should produce empty changes")
	}
}

func TestCreateIssueInput_Validate(t *testing.T) {
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name   string
		in     CreateIssueInput
		fields []string
	}{
		{"valid", CreateIssueInput{Title: "t", Description: "d"}, nil},
		{"title too long", CreateIssueInput{Title: string(long), Description: "d"}, []string{"title"}},
		{"both missing", CreateIssueInput{}, []string{"title", "description"}},
		{"bad priority", CreateIssueInput{Title: "t", Description: "d", Priority: strPtr("low")}, []string{"priority"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.validate()
			if len(tt.fields) == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			details := detailsOf(t, err)
			for _, f := range tt.fields {
				if details[f] == "" {
					t.Errorf("missing detail for %s in %v", f, details)
				}
			}
		})
	}
}
