package npi

import (
	"net/http"
	"strings"

	"npitrack/internal/apperr"
	"npitrack/internal/models"
	"npitrack/internal/response"
	"npitrack/internal/validation"
)

// GetWorkflow handles GET /api/v1/projects/{name}/workflow.
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProject(r.Context(), r.PathValue("name"))
	if err != nil {
		response.Error(w, err)
		return
	}
	wf, err := h.Store.Workflow(r.Context(), p.ID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, wf)
}

// SaveWorkflow handles PUT /api/v1/projects/{name}/workflow.
func (h *Handler) SaveWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf models.Workflow
	if err := response.DecodeBody(w, r, &wf); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateWorkflow(ve, wf)
	if err := ve.Err(); err != nil {
		response.Error(w, err)
		return
	}
	p, err := h.Store.GetProject(r.Context(), r.PathValue("name"))
	if err != nil {
		response.Error(w, err)
		return
	}
	wf.ProjectID = p.ID
	if err := h.Store.SaveWorkflow(r.Context(), wf); err != nil {
		response.Error(w, err)
		return
	}
	h.changed("workflow", "update", p.Name, p.ID)
	response.JSON(w, wf)
}

type matrixView struct {
	Kind    models.MatrixKind   `json:"kind"`
	Columns [2]string           `json:"columns"`
	Rows    []models.MatrixPair `json:"rows"`
}

func newMatrixView(kind models.MatrixKind, rows []models.MatrixPair) matrixView {
	a, b := kind.Columns()
	return matrixView{Kind: kind, Columns: [2]string{a, b}, Rows: rows}
}

// GetMatrix handles GET /api/v1/projects/{name}/matrix/{kind}.
func (h *Handler) GetMatrix(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseMatrixKind(r.PathValue("kind"))
	if err != nil {
		response.Err(w, err.Error(), http.StatusBadRequest)
		return
	}
	p, err := h.Store.GetProject(r.Context(), r.PathValue("name"))
	if err != nil {
		response.Error(w, err)
		return
	}
	rows, err := h.Store.Matrix(r.Context(), p.ID, kind)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, newMatrixView(kind, rows))
}

// ReplaceMatrix handles PUT /api/v1/projects/{name}/matrix/{kind}. The body's
// rows replace the stored rows in order; an empty list clears the matrix.
func (h *Handler) ReplaceMatrix(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rows []models.MatrixPair `json:"rows"`
	}
	if err := response.DecodeBody(w, r, &body); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	raw := strings.ToLower(r.PathValue("kind"))
	ve := &validation.ValidationErrors{}
	validation.ValidateMatrix(ve, raw, body.Rows)
	if err := ve.Err(); err != nil {
		response.Error(w, err)
		return
	}
	kind := models.MatrixKind(raw)
	p, err := h.Store.GetProject(r.Context(), r.PathValue("name"))
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.Store.ReplaceMatrix(r.Context(), p.ID, kind, body.Rows); err != nil {
		response.Error(w, err)
		return
	}
	h.changed("matrix", "update", p.Name, string(kind))
	if body.Rows == nil {
		body.Rows = []models.MatrixPair{}
	}
	response.JSON(w, newMatrixView(kind, body.Rows))
}

// AddDrawings handles POST /api/v1/projects/{name}/drawings. Sources are paths
// on the server host.
func (h *Handler) AddDrawings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Sources []string `json:"sources"`
	}
	if err := response.DecodeBody(w, r, &body); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	if len(body.Sources) == 0 {
		response.Err(w, "sources is required", http.StatusBadRequest)
		return
	}
	name := r.PathValue("name")
	added, failed, err := h.Onboarding.AddDrawings(r.Context(), name, body.Sources, h.progress(name))
	if err != nil {
		response.Error(w, err)
		return
	}
	if added == nil {
		added = []models.MatrixPair{}
	}
	h.changed("matrix", "update", name, string(models.MatrixAssembly))
	response.JSON(w, map[string]interface{}{
		"added":  added,
		"failed": errStrings[*apperr.FileCopyError](failed),
	})
}
