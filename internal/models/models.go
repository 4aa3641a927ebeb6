package models

import (
	"fmt"
	"strings"
)

// APIResponse is the standard JSON envelope for all API responses.
type APIResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

// Meta carries counts for list responses.
type Meta struct {
	Total int `json:"total,omitempty"`
}

// ProjectFields are the editable metadata columns of a project.
type ProjectFields struct {
	FGPartNumber   string `json:"fg_part_number" yaml:"fg_part_number"`
	PCBAPartNumber string `json:"pcba_part_number" yaml:"pcba_part_number"`
	StartDate      string `json:"start_date" yaml:"start_date"`
	EndDate        string `json:"end_date" yaml:"end_date"`
	BOMFile        string `json:"bom_file" yaml:"bom_file"`
	NPIEngineer    string `json:"npi_engineer" yaml:"npi_engineer"`
}

type Project struct {
	ID      int64  `json:"id"`
	Product string `json:"product"`
	Name    string `json:"name"`
	ProjectFields
}

// Workflow is the MES execution record of a project. Quantities are nil when
// they were never entered.
type Workflow struct {
	ProjectID    int64  `json:"project_id" yaml:"-"`
	LotID        string `json:"lot_id" yaml:"lot_id"`
	WorkflowSMT  string `json:"workflow_smt" yaml:"workflow_smt"`
	WorkflowTLA  string `json:"workflow_tla" yaml:"workflow_tla"`
	SMTWorkOrder string `json:"smt_work_order" yaml:"smt_work_order"`
	TLAWorkOrder string `json:"tla_work_order" yaml:"tla_work_order"`
	WorkOrderQty *int   `json:"work_order_qty" yaml:"work_order_qty"`
	PONumber     string `json:"po_number" yaml:"po_number"`
	POQty        *int   `json:"po_qty" yaml:"po_qty"`
}

// MatrixKind selects one of the three ordered configuration matrices.
type MatrixKind string

const (
	MatrixAssembly MatrixKind = "assembly"
	MatrixBuild    MatrixKind = "build"
	MatrixMachine  MatrixKind = "machine"
)

// MatrixKinds lists every kind in display order.
var MatrixKinds = []MatrixKind{MatrixAssembly, MatrixBuild, MatrixMachine}

// Columns returns the two column headings used for a kind.
func (k MatrixKind) Columns() (string, string) {
	switch k {
	case MatrixAssembly:
		return "Assembly Drawing", "Drawing Name"
	case MatrixBuild:
		return "Component", "Make"
	case MatrixMachine:
		return "Machine Name", "Program Name"
	}
	return "A", "B"
}

func (k MatrixKind) Valid() bool {
	switch k {
	case MatrixAssembly, MatrixBuild, MatrixMachine:
		return true
	}
	return false
}

// ParseMatrixKind accepts the kind name case-insensitively.
func ParseMatrixKind(s string) (MatrixKind, error) {
	k := MatrixKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown matrix kind %q (want assembly, build or machine)", s)
	}
	return k, nil
}

// MatrixPair is one row of a configuration matrix. Sequence is implied by the
// position in the slice.
type MatrixPair struct {
	A string `json:"a" yaml:"a"`
	B string `json:"b" yaml:"b"`
}

// ChecklistItem is one seeded deliverable of a project checklist.
type ChecklistItem struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
	Person    string `json:"person"`
	Reference string `json:"reference"`
	Seq       int    `json:"seq"`
}

// State is Done when the item is completed, Pending otherwise.
func (c ChecklistItem) State() string {
	if c.Completed {
		return "Done"
	}
	return "Pending"
}

// Document is one catalog entry. Path is relative to the project directory.
type Document struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Category  string `json:"category"`
	Path      string `json:"path"`
}

// ProgressEvent is emitted after each discrete step of a long operation.
type ProgressEvent struct {
	Op    string `json:"op"`
	Step  string `json:"step"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

// ProgressFunc receives progress events. A nil ProgressFunc is valid.
type ProgressFunc func(ProgressEvent)

// Emit calls f when it is non-nil.
func (f ProgressFunc) Emit(ev ProgressEvent) {
	if f != nil {
		f(ev)
	}
}
