package store

import (
	"context"
	"database/sql"
	"fmt"

	"npitrack/internal/apperr"
	"npitrack/internal/models"
	"npitrack/internal/validation"
)

// ReplaceMatrix deletes every row of kind for the project and inserts pairs in
// the given order with sequence 1..N. The delete and the inserts share one
// transaction, so readers never observe a partially written matrix. An empty
// pairs slice clears the kind.
func (s *Store) ReplaceMatrix(ctx context.Context, projectID int64, kind models.MatrixKind, pairs []models.MatrixPair) error {
	if !kind.Valid() {
		ve := &validation.ValidationErrors{}
		validation.ValidateEnum(ve, "kind", string(kind), validation.ValidMatrixKinds)
		return ve
	}
	op := "replace " + string(kind) + " matrix"
	return s.withTx(ctx, op, func(tx *sql.Tx) error {
		if err := requireProject(ctx, tx, projectID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM matrix_rows WHERE project_id=? AND kind=?", projectID, kind); err != nil {
			return err
		}
		if len(pairs) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO matrix_rows (project_id, kind, field_a, field_b, seq) VALUES (?, ?, ?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, p := range pairs {
			if _, err := stmt.ExecContext(ctx, projectID, kind, p.A, p.B, i+1); err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// Matrix returns the pairs of kind for the project by ascending sequence. The
// result is never nil.
func (s *Store) Matrix(ctx context.Context, projectID int64, kind models.MatrixKind) ([]models.MatrixPair, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT field_a, field_b FROM matrix_rows WHERE project_id=? AND kind=? ORDER BY seq", projectID, kind)
	if err != nil {
		return nil, apperr.Persistence("get matrix", err)
	}
	defer rows.Close()

	pairs := []models.MatrixPair{}
	for rows.Next() {
		var p models.MatrixPair
		if err := rows.Scan(&p.A, &p.B); err != nil {
			return nil, apperr.Persistence("get matrix", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("get matrix", err)
	}
	return pairs, nil
}
