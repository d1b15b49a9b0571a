package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/issuetracker/internal/models"
)

// backend describes a Store implementation under test.
type backend struct {
	open func(t *testing.T) Store
	// absentID returns a well-formed id that is not stored.
	absentID func() string
	// malformedID is an id the backend cannot parse.
	malformedID string
}

func newIssue(project, title string) *models.Issue {
	now := models.NowUTC()
	return &models.Issue{
		Title:     title,
		Text:      "text",
		CreatedBy: "tester",
		Open:      true,
		CreatedOn: now,
		UpdatedOn: now,
		Project:   project,
	}
}

// runStoreSuite exercises the Store contract against one backend.
func runStoreSuite(t *testing.T, b backend) {
	t.Run("InsertAndFind", func(t *testing.T) {
		s := b.open(t)
		ctx := context.Background()

		issue := newIssue("apitest", "first")
		issue.AssignedTo = "joe"
		require.NoError(t, s.InsertIssue(ctx, issue))
		assert.NotEmpty(t, issue.ID)

		require.NoError(t, s.InsertIssue(ctx, newIssue("apitest", "second")))
		require.NoError(t, s.InsertIssue(ctx, newIssue("other", "elsewhere")))

		got, err := s.FindIssues(ctx, Filter{Project: "apitest"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "first", got[0].Title)
		assert.Equal(t, "second", got[1].Title)
		assert.Equal(t, issue.ID, got[0].ID)
		assert.Equal(t, "joe", got[0].AssignedTo)
		assert.True(t, got[0].Open)
		assert.True(t, issue.CreatedOn.Equal(got[0].CreatedOn))
		assert.True(t, got[0].CreatedOn.Equal(got[0].UpdatedOn))
	})

	t.Run("FindEmptyProject", func(t *testing.T) {
		s := b.open(t)
		got, err := s.FindIssues(context.Background(), Filter{Project: "nothing-here"})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("FindWithClauses", func(t *testing.T) {
		s := b.open(t)
		ctx := context.Background()

		a := newIssue("p", "a")
		a.AssignedTo = "joe"
		closed := newIssue("p", "b")
		closed.AssignedTo = "joe"
		closed.Open = false
		c := newIssue("p", "c")
		c.AssignedTo = "ann"
		for _, i := range []*models.Issue{a, closed, c} {
			require.NoError(t, s.InsertIssue(ctx, i))
		}

		got, err := s.FindIssues(ctx, Filter{Project: "p", Clauses: []Clause{{Field: models.FieldOpen, Value: false}}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, closed.ID, got[0].ID)

		got, err = s.FindIssues(ctx, Filter{Project: "p", Clauses: []Clause{
			{Field: models.FieldAssignedTo, Value: "joe"},
			{Field: models.FieldOpen, Value: true},
		}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, a.ID, got[0].ID)

		got, err = s.FindIssues(ctx, Filter{Project: "p", Clauses: []Clause{{Field: models.FieldID, Value: c.ID}}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "c", got[0].Title)

		got, err = s.FindIssues(ctx, Filter{Project: "p", Clauses: []Clause{{Field: models.FieldCreatedOn, Value: a.CreatedOn}}})
		require.NoError(t, err)
		assert.NotEmpty(t, got)
	})

	t.Run("FindMalformedIDMatchesNothing", func(t *testing.T) {
		s := b.open(t)
		ctx := context.Background()
		require.NoError(t, s.InsertIssue(ctx, newIssue("p", "a")))

		got, err := s.FindIssues(ctx, Filter{Project: "p", Clauses: []Clause{{Field: models.FieldID, Value: b.malformedID}}})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("FindMatchNone", func(t *testing.T) {
		s := b.open(t)
		ctx := context.Background()
		require.NoError(t, s.InsertIssue(ctx, newIssue("p", "a")))

		got, err := s.FindIssues(ctx, Filter{Project: "p", MatchNone: true})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("UpdateByID", func(t *testing.T) {
		s := b.open(t)
		ctx := context.Background()

		issue := newIssue("p", "before")
		issue.StatusText = "new"
		require.NoError(t, s.InsertIssue(ctx, issue))

		later := issue.UpdatedOn.Add(2 * time.Second)
		updated, err := s.UpdateIssueByID(ctx, issue.ID, ChangeSet{
			Fields:    map[models.Field]any{models.FieldTitle: "after", models.FieldOpen: false},
			UpdatedOn: later,
		})
		require.NoError(t, err)
		assert.Equal(t, "after", updated.Title)
		assert.False(t, updated.Open)
		assert.Equal(t, "new", updated.StatusText)
		assert.Equal(t, "p", updated.Project)
		assert.True(t, updated.UpdatedOn.Equal(later))
		assert.True(t, updated.CreatedOn.Equal(issue.CreatedOn))
	})

	t.Run("UpdateNeverMovesUpdatedOnBackwards", func(t *testing.T) {
		s := b.open(t)
		ctx := context.Background()

		issue := newIssue("p", "a")
		require.NoError(t, s.InsertIssue(ctx, issue))

		updated, err := s.UpdateIssueByID(ctx, issue.ID, ChangeSet{
			Fields:    map[models.Field]any{models.FieldStatusText: "skewed"},
			UpdatedOn: issue.UpdatedOn.Add(-time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, "skewed", updated.StatusText)
		assert.True(t, updated.UpdatedOn.Equal(issue.UpdatedOn))
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		s := b.open(t)
		ctx := context.Background()
		changes := ChangeSet{Fields: map[models.Field]any{models.FieldTitle: "x"}, UpdatedOn: models.NowUTC()}

		_, err := s.UpdateIssueByID(ctx, b.absentID(), changes)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.UpdateIssueByID(ctx, b.malformedID, changes)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DeleteByID", func(t *testing.T) {
		s := b.open(t)
		ctx := context.Background()

		issue := newIssue("p", "doomed")
		require.NoError(t, s.InsertIssue(ctx, issue))

		deleted, err := s.DeleteIssueByID(ctx, issue.ID)
		require.NoError(t, err)
		assert.Equal(t, issue.ID, deleted.ID)

		got, err := s.FindIssues(ctx, Filter{Project: "p"})
		require.NoError(t, err)
		assert.Empty(t, got)

		_, err = s.DeleteIssueByID(ctx, issue.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DeleteNotFound", func(t *testing.T) {
		s := b.open(t)
		ctx := context.Background()

		_, err := s.DeleteIssueByID(ctx, b.absentID())
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.DeleteIssueByID(ctx, b.malformedID)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.DeleteIssueByID(ctx, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Ping", func(t *testing.T) {
		s := b.open(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestOpen_MongoWithoutURI(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: DriverMongoDB})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no URI configured")
}
