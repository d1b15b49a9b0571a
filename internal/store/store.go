package store

import (
	"context"
	"errors"
	"time"

	"github.com/joescharf/issuetracker/internal/models"
)

// ErrNotFound is returned when an id does not resolve to a stored issue.
// Malformed ids resolve to ErrNotFound as well.
var ErrNotFound = errors.New("issue not found")

// Clause is a single equality condition. Value is already coerced to the
// Go type the field is stored as (see models.FieldSpec.Coerce).
type Clause struct {
	Field models.Field
	Value any
}

// Filter is a conjunction of equality clauses scoped to one project.
type Filter struct {
	Project string
	Clauses []Clause
	// MatchNone is set when a clause can never match (unknown field or a
	// value that failed coercion). Stores return no issues for it.
	MatchNone bool
}

// ChangeSet holds the fields an update applies. UpdatedOn is always written.
type ChangeSet struct {
	Fields    map[models.Field]any
	UpdatedOn time.Time
}

// Store is the persistence interface for issues.
type Store interface {
	InsertIssue(ctx context.Context, issue *models.Issue) error
	FindIssues(ctx context.Context, filter Filter) ([]*models.Issue, error)
	UpdateIssueByID(ctx context.Context, id string, changes ChangeSet) (*models.Issue, error)
	DeleteIssueByID(ctx context.Context, id string) (*models.Issue, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
