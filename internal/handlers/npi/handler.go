// Package npi holds the HTTP handlers for projects, their workflow, matrices,
// checklist, documents and handover packages.
package npi

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"npitrack/internal/catalog"
	"npitrack/internal/checklist"
	"npitrack/internal/handover"
	"npitrack/internal/models"
	"npitrack/internal/onboarding"
	"npitrack/internal/report"
	"npitrack/internal/response"
	"npitrack/internal/websocket"
	"npitrack/internal/workbook"
)

// Store is the part of the entity store the handlers call directly.
type Store interface {
	ListProducts(ctx context.Context) ([]string, error)
	ListProjects(ctx context.Context, product string) ([]string, error)
	GetProject(ctx context.Context, name string) (*models.Project, error)
	UpdateProjectFields(ctx context.Context, name string, f models.ProjectFields) error
	DeleteProject(ctx context.Context, name string) error
	SaveWorkflow(ctx context.Context, wf models.Workflow) error
	Workflow(ctx context.Context, projectID int64) (*models.Workflow, error)
	ReplaceMatrix(ctx context.Context, projectID int64, kind models.MatrixKind, pairs []models.MatrixPair) error
	Matrix(ctx context.Context, projectID int64, kind models.MatrixKind) ([]models.MatrixPair, error)
}

// Handler holds dependencies for the NPI handlers.
type Handler struct {
	Store      Store
	Onboarding *onboarding.Service
	Checklist  *checklist.Manager
	Catalog    *catalog.Catalog
	Assembler  *handover.Assembler
	// Workbook is nil when no master workbook is configured.
	Workbook *workbook.Workbook
	Hub      *websocket.Hub
	Log      *zap.Logger
	Now      func() time.Time
}

func (h *Handler) changed(resource, action, project string, id any) {
	if h.Hub != nil {
		h.Hub.BroadcastChange(resource, action, project, id)
	}
}

func (h *Handler) progress(project string) models.ProgressFunc {
	if h.Hub == nil {
		return nil
	}
	return h.Hub.Progress(project)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// sendPDF renders doc fully before writing, so a render failure still gets a
// JSON error.
func (h *Handler) sendPDF(w http.ResponseWriter, doc report.Document, filename string) {
	var buf bytes.Buffer
	if err := report.Render(doc, &buf); err != nil {
		response.Error(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Write(buf.Bytes())
}

func errStrings[E error](errs []E) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}
