package store

import (
	"context"
	"database/sql"
	"strconv"

	"npitrack/internal/apperr"
	"npitrack/internal/models"
)

// SeedChecklist inserts items for the project when it has no checklist rows
// yet. The count and the inserts run in one transaction. seeded reports
// whether rows were written; a project that already has any item is left
// untouched.
func (s *Store) SeedChecklist(ctx context.Context, projectID int64, items []models.ChecklistItem) (seeded bool, err error) {
	err = s.withTx(ctx, "seed checklist", func(tx *sql.Tx) error {
		if err := requireProject(ctx, tx, projectID); err != nil {
			return err
		}
		var n int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM checklist_items WHERE project_id=?", projectID).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO checklist_items
			(project_id, item_name, completed, person, reference, seq) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, it := range items {
			if _, err := stmt.ExecContext(ctx, projectID, it.Name, boolInt(it.Completed), it.Person, it.Reference, i+1); err != nil {
				return err
			}
		}
		seeded = len(items) > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return seeded, nil
}

// ChecklistItems returns the project's items by sequence.
func (s *Store) ChecklistItems(ctx context.Context, projectID int64) ([]models.ChecklistItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, item_name, completed, person, reference, seq
		FROM checklist_items WHERE project_id=? ORDER BY seq`, projectID)
	if err != nil {
		return nil, apperr.Persistence("list checklist", err)
	}
	defer rows.Close()

	items := []models.ChecklistItem{}
	for rows.Next() {
		var it models.ChecklistItem
		var completed int
		if err := rows.Scan(&it.ID, &it.ProjectID, &it.Name, &completed, &it.Person, &it.Reference, &it.Seq); err != nil {
			return nil, apperr.Persistence("list checklist", err)
		}
		it.Completed = completed == 1
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list checklist", err)
	}
	return items, nil
}

// UpdateChecklistItem overwrites the three mutable fields of an item.
func (s *Store) UpdateChecklistItem(ctx context.Context, itemID int64, completed bool, person, reference string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE checklist_items SET completed=?, person=?, reference=? WHERE id=?",
		boolInt(completed), person, reference, itemID)
	if err != nil {
		return apperr.Persistence("update checklist item", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Persistence("update checklist item", err)
	}
	if n == 0 {
		return apperr.NotFound("checklist item", strconv.FormatInt(itemID, 10))
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
