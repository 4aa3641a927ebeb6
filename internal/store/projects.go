package store

import (
	"context"
	"database/sql"
	"errors"

	"npitrack/internal/apperr"
	"npitrack/internal/models"
)

const projectColumns = "id, product, name, fg_part_number, pcba_part_number, start_date, end_date, bom_file, npi_engineer"

// CreateProject inserts a project unless one with the same name exists. It
// returns the project id either way; created is false when the name was
// already taken. Re-adding an existing name is not an error.
func (s *Store) CreateProject(ctx context.Context, product, name string, f models.ProjectFields) (id int64, created bool, err error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO projects
		(product, name, fg_part_number, pcba_part_number, start_date, end_date, bom_file, npi_engineer)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING`,
		product, name, f.FGPartNumber, f.PCBAPartNumber, f.StartDate, f.EndDate, f.BOMFile, f.NPIEngineer)
	if err != nil {
		return 0, false, apperr.Persistence("insert project", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, apperr.Persistence("insert project", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT id FROM projects WHERE name=?", name).Scan(&id); err != nil {
		return 0, false, apperr.Persistence("lookup project id", err)
	}
	return id, n == 1, nil
}

// UpdateProjectFields overwrites the metadata of the named project. An absent
// project yields a NotFoundError and changes nothing.
func (s *Store) UpdateProjectFields(ctx context.Context, name string, f models.ProjectFields) error {
	res, err := s.db.ExecContext(ctx, `UPDATE projects SET
		fg_part_number=?, pcba_part_number=?, start_date=?, end_date=?, bom_file=?, npi_engineer=?,
		updated_at=CURRENT_TIMESTAMP
		WHERE name=?`,
		f.FGPartNumber, f.PCBAPartNumber, f.StartDate, f.EndDate, f.BOMFile, f.NPIEngineer, name)
	if err != nil {
		return apperr.Persistence("update project", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Persistence("update project", err)
	}
	if n == 0 {
		return apperr.NotFound("project", name)
	}
	return nil
}

// ListProducts returns the distinct non-empty product names in lexical order.
func (s *Store) ListProducts(ctx context.Context) ([]string, error) {
	return s.names(ctx, "list products",
		"SELECT DISTINCT product FROM projects WHERE product <> '' ORDER BY product")
}

// ListProjects returns the project names of product in lexical order.
func (s *Store) ListProjects(ctx context.Context, product string) ([]string, error) {
	return s.names(ctx, "list projects",
		"SELECT name FROM projects WHERE product=? ORDER BY name", product)
}

func (s *Store) names(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, apperr.Persistence(op, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence(op, err)
	}
	return out, nil
}

// GetProject returns a snapshot of the named project.
func (s *Store) GetProject(ctx context.Context, name string) (*models.Project, error) {
	return s.scanProject(ctx, name, "SELECT "+projectColumns+" FROM projects WHERE name=?", name)
}

func (s *Store) scanProject(ctx context.Context, key, query string, arg any) (*models.Project, error) {
	var p models.Project
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.Product, &p.Name, &p.FGPartNumber, &p.PCBAPartNumber,
		&p.StartDate, &p.EndDate, &p.BOMFile, &p.NPIEngineer)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("project", key)
	}
	if err != nil {
		return nil, apperr.Persistence("get project", err)
	}
	return &p, nil
}

// childTables are every collection owned by a project. DeleteProject clears
// all of them, the workflow row included.
var childTables = []string{"workflows", "matrix_rows", "documents", "checklist_items"}

// DeleteProject removes the named project and every row it owns in a single
// transaction: either all rows disappear or none do.
func (s *Store) DeleteProject(ctx context.Context, name string) error {
	return s.withTx(ctx, "delete project", func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM projects WHERE name=?", name).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("project", name)
		}
		if err != nil {
			return err
		}
		for _, table := range childTables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE project_id=?", id); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM projects WHERE id=?", id)
		return err
	})
}

// ChildRowCounts reports how many rows each child table holds for projectID.
func (s *Store) ChildRowCounts(ctx context.Context, projectID int64) (map[string]int, error) {
	counts := make(map[string]int, len(childTables))
	for _, table := range childTables {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE project_id=?", projectID).Scan(&n); err != nil {
			return nil, apperr.Persistence("count "+table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
