// Package store is the SQLite-backed entity store for NPI projects and their
// child collections: workflow, matrix rows, checklist items and documents.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"npitrack/internal/apperr"
	"npitrack/internal/models"

	_ "modernc.org/sqlite"
)

// schemaVersion is written to PRAGMA user_version after migrations succeed.
const schemaVersion = 1

// Store owns the single process-wide connection to the project database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and runs migrations.
// ":memory:" is accepted for tests.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "npi_projects.db"
	}
	memory := path == ":memory:"
	if !memory {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, apperr.Persistence("create database dir", err)
			}
		}
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+"_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, apperr.Persistence("open database", err)
	}

	// One shared connection, never pooled. This also keeps ":memory:" pinned
	// to a single database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if !memory {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, apperr.Persistence("enable WAL mode", err)
		}
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, apperr.Persistence("enable foreign keys", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			product TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL UNIQUE,
			fg_part_number TEXT NOT NULL DEFAULT '',
			pcba_part_number TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL DEFAULT '',
			end_date TEXT NOT NULL DEFAULT '',
			bom_file TEXT NOT NULL DEFAULT '',
			npi_engineer TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS workflows (
			project_id INTEGER PRIMARY KEY,
			lot_id TEXT NOT NULL DEFAULT '',
			workflow_smt TEXT NOT NULL DEFAULT '',
			workflow_tla TEXT NOT NULL DEFAULT '',
			smt_work_order TEXT NOT NULL DEFAULT '',
			tla_work_order TEXT NOT NULL DEFAULT '',
			work_order_qty INTEGER CHECK(work_order_qty IS NULL OR work_order_qty >= 0),
			po_number TEXT NOT NULL DEFAULT '',
			po_qty INTEGER CHECK(po_qty IS NULL OR po_qty >= 0),
			FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS matrix_rows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN (` + sqlList(matrixKindNames()) + `)),
			field_a TEXT NOT NULL DEFAULT '',
			field_b TEXT NOT NULL DEFAULT '',
			seq INTEGER NOT NULL CHECK(seq >= 1),
			UNIQUE (project_id, kind, seq),
			FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS checklist_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			item_name TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0 CHECK(completed IN (0,1)),
			person TEXT NOT NULL DEFAULT '',
			reference TEXT NOT NULL DEFAULT '',
			seq INTEGER NOT NULL CHECK(seq >= 1),
			UNIQUE (project_id, seq),
			FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			category TEXT NOT NULL CHECK(category IN (` + sqlList(models.Categories) + `)),
			file_path TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
		)`,
	}
	for _, t := range tables {
		if _, err := s.db.Exec(t); err != nil {
			return apperr.Persistence("migrate", fmt.Errorf("%s: %w", firstLine(t), err))
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_projects_product ON projects(product)",
		"CREATE INDEX IF NOT EXISTS idx_matrix_rows_project_kind ON matrix_rows(project_id, kind, seq)",
		"CREATE INDEX IF NOT EXISTS idx_checklist_items_project ON checklist_items(project_id, seq)",
		"CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_id, category, id)",
	}
	for _, idx := range indexes {
		if _, err := s.db.Exec(idx); err != nil {
			return apperr.Persistence("migrate index", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return apperr.Persistence("set schema version", err)
	}
	return nil
}

// SchemaVersion reads PRAGMA user_version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, apperr.Persistence("read schema version", err)
	}
	return v, nil
}

// withTx runs fn inside one transaction. Typed errors from fn are returned as
// they are; anything else is reported as a PersistenceError for op.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Persistence(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		var nf *apperr.NotFoundError
		var pe *apperr.PersistenceError
		if errors.As(err, &nf) || errors.As(err, &pe) {
			return err
		}
		return apperr.Persistence(op, err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Persistence(op, err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// requireProject fails with a NotFoundError when no project has id.
func requireProject(ctx context.Context, q queryer, id int64) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM projects WHERE id=?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("project", fmt.Sprint(id))
	}
	return err
}

func matrixKindNames() []string {
	names := make([]string, len(models.MatrixKinds))
	for i, k := range models.MatrixKinds {
		names[i] = string(k)
	}
	return names
}

// sqlList renders values as a quoted SQL list for CHECK constraints.
func sqlList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return strings.Join(quoted, ",")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '('); i > 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
