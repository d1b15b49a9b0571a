package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))

	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, backend{
		open:        func(t *testing.T) Store { return newTestStore(t) },
		absentID:    func() string { return ulid.Make().String() },
		malformedID: "5f665eb46e296f6b9b6a504d",
	})
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)

	// Running migrate again should be a no-op
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{Driver: DriverSQLite, DBPath: filepath.Join(t.TempDir(), "open.db")})
	require.NoError(t, err)
	defer s.Close()

	got, err := s.FindIssues(ctx, Filter{Project: "any"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStore_InsertKeepsGivenID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	issue := newIssue("p", "preset")
	issue.ID = ulid.Make().String()
	want := issue.ID
	require.NoError(t, s.InsertIssue(ctx, issue))
	assert.Equal(t, want, issue.ID)
}

func TestSQLiteStore_ClosedDatabaseErrors(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.FindIssues(context.Background(), Filter{Project: "p"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
