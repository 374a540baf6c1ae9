// Package validation checks a submission form before anything is sent to the
// store. Rules are local only; group membership is left to the choice list.
package validation

import (
	"sort"
	"strings"

	"github.com/debemdeboas/kable/internal/model"
)

type Field string

const (
	FieldTitle     Field = "title"
	FieldGroupName Field = "groupName"
	FieldItems     Field = "items"
)

const (
	MsgTitleRequired     = "Submission title is required."
	MsgGroupNameRequired = "Group name is required."
	MsgItemsRequired     = "Add at least one content item."
)

// Errors maps a form field to its error message. An empty map means the form
// can be submitted.
type Errors map[Field]string

func (e Errors) Valid() bool {
	return len(e) == 0
}

// Fields returns the failing fields sorted by name.
func (e Errors) Fields() []Field {
	fields := make([]Field, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// Validate evaluates every rule and returns the union of the failures.
func Validate(form model.SubmissionForm) Errors {
	errs := Errors{}
	if strings.TrimSpace(form.Title) == "" {
		errs[FieldTitle] = MsgTitleRequired
	}
	if form.GroupName == "" {
		errs[FieldGroupName] = MsgGroupNameRequired
	}
	if len(form.Items) == 0 {
		errs[FieldItems] = MsgItemsRequired
	}
	return errs
}

// Error is returned when a submit is attempted with an invalid form.
type Error struct {
	Errors Errors
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, f := range e.Errors.Fields() {
		msgs = append(msgs, e.Errors[f])
	}
	return "invalid submission: " + strings.Join(msgs, " ")
}
