package store

import (
	"context"

	"npitrack/internal/apperr"
	"npitrack/internal/models"
)

// AddDocument appends a catalog row. The same path may be cataloged more than
// once; rows are never deduplicated.
func (s *Store) AddDocument(ctx context.Context, projectID int64, category, path string) (int64, error) {
	if err := requireProject(ctx, s.db, projectID); err != nil {
		if apperr.IsNotFound(err) {
			return 0, err
		}
		return 0, apperr.Persistence("add document", err)
	}
	res, err := s.db.ExecContext(ctx, "INSERT INTO documents (project_id, category, file_path) VALUES (?, ?, ?)",
		projectID, category, path)
	if err != nil {
		return 0, apperr.Persistence("add document", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Persistence("add document", err)
	}
	return id, nil
}

// RemoveDocument deletes one catalog row by id and reports how many rows went.
func (s *Store) RemoveDocument(ctx context.Context, docID int64) (int64, error) {
	return s.deleteDocs(ctx, "remove document", "DELETE FROM documents WHERE id=?", docID)
}

// RemoveDocumentsByPath deletes every catalog row of the project whose path
// matches exactly.
func (s *Store) RemoveDocumentsByPath(ctx context.Context, projectID int64, path string) (int64, error) {
	return s.deleteDocs(ctx, "remove documents by path",
		"DELETE FROM documents WHERE project_id=? AND file_path=?", projectID, path)
}

func (s *Store) deleteDocs(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperr.Persistence(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Persistence(op, err)
	}
	return n, nil
}

// Documents lists the project's catalog. With a category it returns that
// category in insertion order; without one it orders by category, then
// insertion order.
func (s *Store) Documents(ctx context.Context, projectID int64, category string) ([]models.Document, error) {
	query := "SELECT id, project_id, category, file_path FROM documents WHERE project_id=?"
	args := []any{projectID}
	if category != "" {
		query += " AND category=? ORDER BY id"
		args = append(args, category)
	} else {
		query += " ORDER BY category, id"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Persistence("list documents", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Category, &d.Path); err != nil {
			return nil, apperr.Persistence("list documents", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list documents", err)
	}
	return docs, nil
}
