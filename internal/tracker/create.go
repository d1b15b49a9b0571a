package tracker

import (
	"time"

	"github.com/spf13/cast"

	"github.com/joescharf/issuetracker/internal/models"
)

// CreateInput holds the client-supplied fields of a new issue.
type CreateInput struct {
	Title      string
	Text       string
	CreatedBy  string
	AssignedTo string
	StatusText string
}

// CreateInputFromBody reads create fields from a decoded request body.
// Non-string scalars are stringified; anything else counts as absent.
func CreateInputFromBody(body map[string]any) CreateInput {
	get := func(f models.Field) string {
		return cast.ToString(body[string(f)])
	}
	return CreateInput{
		Title:      get(models.FieldTitle),
		Text:       get(models.FieldText),
		CreatedBy:  get(models.FieldCreatedBy),
		AssignedTo: get(models.FieldAssignedTo),
		StatusText: get(models.FieldStatusText),
	}
}

// newIssue validates in and builds the issue to insert.
func newIssue(project string, in CreateInput, now time.Time) (*models.Issue, error) {
	if in.Title == "" || in.Text == "" || in.CreatedBy == "" {
		return nil, ErrMissingRequiredField
	}
	return &models.Issue{
		Title:      in.Title,
		Text:       in.Text,
		CreatedBy:  in.CreatedBy,
		AssignedTo: in.AssignedTo,
		StatusText: in.StatusText,
		Open:       true,
		CreatedOn:  now,
		UpdatedOn:  now,
		Project:    project,
	}, nil
}
