// Package tracker implements the issue operations: create, list, update and delete.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/store"
)

// Tracker runs issue operations against a Store. It holds no per-request state.
type Tracker struct {
	store store.Store
	now   func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the time source used for created_on and updated_on.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a Tracker backed by s.
func New(s store.Store, opts ...Option) *Tracker {
	t := &Tracker{store: s, now: models.NowUTC}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// Create validates in, fills defaults and inserts a new issue into project.
func (t *Tracker) Create(ctx context.Context, project string, in CreateInput) (*models.Issue, error) {
	issue, err := newIssue(project, in, t.now())
	if err != nil {
		return nil, err
	}
	if err := t.store.InsertIssue(ctx, issue); err != nil {
		return nil, storeFailure("create issue", err)
	}
	return issue, nil
}

// List returns the issues of project matching every query parameter.
// The result is never nil.
func (t *Tracker) List(ctx context.Context, project string, query url.Values) ([]*models.Issue, error) {
	filter := CompileFilter(project, query)
	if filter.MatchNone {
		return []*models.Issue{}, nil
	}
	issues, err := t.store.FindIssues(ctx, filter)
	if err != nil {
		return nil, storeFailure("list issues", err)
	}
	if issues == nil {
		issues = []*models.Issue{}
	}
	return issues, nil
}

// Update applies the non-empty fields of body to the issue named by body's _id.
// It returns the id on success; the updated issue is not returned.
func (t *Tracker) Update(ctx context.Context, body map[string]any) (string, error) {
	id, changes, err := CompileUpdate(body, t.now())
	if err != nil {
		return id, err
	}
	if _, err := t.store.UpdateIssueByID(ctx, id, changes); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return id, idError(id, ErrUpdateNotFound)
		}
		return id, idError(id, storeFailure("update issue", err))
	}
	return id, nil
}

// Delete permanently removes the issue with the given id.
func (t *Tracker) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	if _, err := t.store.DeleteIssueByID(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return idError(id, ErrDeleteNotFound)
		}
		return idError(id, storeFailure("delete issue", err))
	}
	return nil
}

// Ping reports whether the store is reachable.
func (t *Tracker) Ping(ctx context.Context) error {
	if err := t.store.Ping(ctx); err != nil {
		return storeFailure("ping", err)
	}
	return nil
}
