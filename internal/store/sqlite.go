package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/issuetracker/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const issueColumns = `id, issue_title, issue_text, created_by, assigned_to, status_text, open, created_on, updated_on, project`

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
// Issue ids are ULIDs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time; requests queue on the pool instead of hitting "database is locked".
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// validID reports whether id is a well-formed ULID.
func validID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

// column maps a field to its column name.
func column(f models.Field) string {
	if f == models.FieldID {
		return "id"
	}
	return string(f)
}

// arg converts a coerced field value to its SQLite representation.
func arg(v any) any {
	switch val := v.(type) {
	case bool:
		return boolToInt(val)
	case time.Time:
		return val.UTC()
	}
	return v
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*models.Issue, error) {
	issue := &models.Issue{}
	if err := row.Scan(&issue.ID, &issue.Title, &issue.Text, &issue.CreatedBy, &issue.AssignedTo,
		&issue.StatusText, &issue.Open, &issue.CreatedOn, &issue.UpdatedOn, &issue.Project); err != nil {
		return nil, err
	}
	issue.CreatedOn = issue.CreatedOn.UTC()
	issue.UpdatedOn = issue.UpdatedOn.UTC()
	return issue, nil
}

func (s *SQLiteStore) InsertIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID == "" {
		issue.ID = ulid.Make().String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issues (`+issueColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.ID, issue.Title, issue.Text, issue.CreatedBy, issue.AssignedTo, issue.StatusText,
		boolToInt(issue.Open), issue.CreatedOn.UTC(), issue.UpdatedOn.UTC(), issue.Project,
	)
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindIssues(ctx context.Context, filter Filter) ([]*models.Issue, error) {
	issues := []*models.Issue{}
	if filter.MatchNone {
		return issues, nil
	}

	conditions := []string{"project = ?"}
	args := []any{filter.Project}
	for _, c := range filter.Clauses {
		if c.Field == models.FieldID {
			id, _ := c.Value.(string)
			if !validID(id) {
				return issues, nil
			}
		}
		conditions = append(conditions, column(c.Field)+" = ?")
		args = append(args, arg(c.Value))
	}

	query := `SELECT ` + issueColumns + ` FROM issues WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY rowid`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func (s *SQLiteStore) UpdateIssueByID(ctx context.Context, id string, changes ChangeSet) (*models.Issue, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanIssue(tx.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load issue: %w", err)
	}

	updatedOn := changes.UpdatedOn.UTC()
	if updatedOn.Before(current.UpdatedOn) {
		updatedOn = current.UpdatedOn
	}

	// Sorted so the statement text is stable for a given set of fields.
	fields := make([]string, 0, len(changes.Fields))
	for f := range changes.Fields {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)

	sets := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for _, f := range fields {
		sets = append(sets, column(models.Field(f))+" = ?")
		args = append(args, arg(changes.Fields[models.Field(f)]))
	}
	sets = append(sets, "updated_on = ?")
	args = append(args, updatedOn, id)

	if _, err := tx.ExecContext(ctx, `UPDATE issues SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return nil, fmt.Errorf("update issue: %w", err)
	}

	updated, err := scanIssue(tx.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("reload issue: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return updated, nil
}

func (s *SQLiteStore) DeleteIssueByID(ctx context.Context, id string) (*models.Issue, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	issue, err := scanIssue(tx.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load issue: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM issues WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("delete issue: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}
	return issue, nil
}
