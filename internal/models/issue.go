package models

import "time"

// Issue is a tracked record scoped to a project.
type Issue struct {
	ID         string    `json:"_id"`
	Title      string    `json:"issue_title"`
	Text       string    `json:"issue_text"`
	CreatedBy  string    `json:"created_by"`
	AssignedTo string    `json:"assigned_to"`
	StatusText string    `json:"status_text"`
	Open       bool      `json:"open"`
	CreatedOn  time.Time `json:"created_on"`
	UpdatedOn  time.Time `json:"updated_on"`
	Project    string    `json:"project"`
}

// Value returns the issue's value for the given field, typed per the field kind.
func (i *Issue) Value(f Field) any {
	switch f {
	case FieldID:
		return i.ID
	case FieldTitle:
		return i.Title
	case FieldText:
		return i.Text
	case FieldCreatedBy:
		return i.CreatedBy
	case FieldAssignedTo:
		return i.AssignedTo
	case FieldStatusText:
		return i.StatusText
	case FieldOpen:
		return i.Open
	case FieldCreatedOn:
		return i.CreatedOn
	case FieldUpdatedOn:
		return i.UpdatedOn
	case FieldProject:
		return i.Project
	}
	return nil
}
