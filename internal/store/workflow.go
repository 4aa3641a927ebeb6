package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"npitrack/internal/apperr"
	"npitrack/internal/models"
)

// SaveWorkflow replaces the project's workflow row wholesale.
func (s *Store) SaveWorkflow(ctx context.Context, wf models.Workflow) error {
	return s.withTx(ctx, "save workflow", func(tx *sql.Tx) error {
		if err := requireProject(ctx, tx, wf.ProjectID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM workflows WHERE project_id=?", wf.ProjectID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO workflows
			(project_id, lot_id, workflow_smt, workflow_tla, smt_work_order, tla_work_order, work_order_qty, po_number, po_qty)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			wf.ProjectID, wf.LotID, wf.WorkflowSMT, wf.WorkflowTLA, wf.SMTWorkOrder, wf.TLAWorkOrder,
			nullInt(wf.WorkOrderQty), wf.PONumber, nullInt(wf.POQty))
		return err
	})
}

// Workflow returns the project's workflow row, or a NotFoundError when none
// was saved.
func (s *Store) Workflow(ctx context.Context, projectID int64) (*models.Workflow, error) {
	wf := models.Workflow{ProjectID: projectID}
	var woQty, poQty sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT lot_id, workflow_smt, workflow_tla, smt_work_order, tla_work_order,
		work_order_qty, po_number, po_qty FROM workflows WHERE project_id=?`, projectID).
		Scan(&wf.LotID, &wf.WorkflowSMT, &wf.WorkflowTLA, &wf.SMTWorkOrder, &wf.TLAWorkOrder, &woQty, &wf.PONumber, &poQty)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("workflow", strconv.FormatInt(projectID, 10))
	}
	if err != nil {
		return nil, apperr.Persistence("get workflow", err)
	}
	wf.WorkOrderQty = intPtr(woQty)
	wf.POQty = intPtr(poQty)
	return &wf, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
