package services

import (
	"bytes"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/trackwell/issuetracker/pkg/response"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type fieldRule struct {
	tag string
	msg string
}

var (
	ruleTitle       = fieldRule{"min=1,max=255", "must be between 1 and 255 characters"}
	ruleDescription = fieldRule{"min=1,max=65535", "must be between 1 and 65535 characters"}
	ruleStatus      = fieldRule{"oneof=OPEN IN_PROGRESS CLOSED", "must be one of OPEN, IN_PROGRESS, CLOSED"}
	rulePriority    = fieldRule{"oneof=LOW MEDIUM HIGH", "must be one of LOW, MEDIUM, HIGH"}
	ruleUserID      = fieldRule{"min=1,max=255", "must be between 1 and 255 characters"}
	ruleComment     = fieldRule{"min=1,max=65535", "must be between 1 and 65535 characters"}
)

// fieldErrors collects per-field problems for a Validation outcome.
type fieldErrors map[string]string

func (fe fieldErrors) check(field string, value interface{}, rule fieldRule) {
	if _, seen := fe[field]; seen {
		return
	}
	if err := validate.Var(value, rule.tag); err != nil {
		fe[field] = rule.msg
	}
}

func (fe fieldErrors) err() error {
	if len(fe) == 0 {
		return nil
	}
	return response.NewValidation(fe)
}

// OptionalString tells an explicit JSON null apart from an absent key.
type OptionalString struct {
	Set   bool
	Value *string
}

func (o *OptionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// NullString returns an OptionalString explicitly set to null.
func NullString() OptionalString {
	return OptionalString{Set: true}
}

// SomeString returns an OptionalString set to v.
func SomeString(v string) OptionalString {
	return OptionalString{Set: true, Value: &v}
}
