package npi

import (
	"net/http"
	"strconv"

	"npitrack/internal/checklist"
	"npitrack/internal/report"
	"npitrack/internal/response"
	"npitrack/internal/validation"
)

// GetChecklist handles GET /api/v1/projects/{name}/checklist.
func (h *Handler) GetChecklist(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProject(r.Context(), r.PathValue("name"))
	if err != nil {
		response.Error(w, err)
		return
	}
	items, err := h.Checklist.Items(r.Context(), p.ID)
	if err != nil {
		response.Error(w, err)
		return
	}
	done, total := checklist.Progress(items)
	response.JSON(w, map[string]interface{}{
		"items": items,
		"done":  done,
		"total": total,
	})
}

// InitChecklist handles POST /api/v1/projects/{name}/checklist. Seeding runs
// at most once per project.
func (h *Handler) InitChecklist(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProject(r.Context(), r.PathValue("name"))
	if err != nil {
		response.Error(w, err)
		return
	}
	seeded, err := h.Checklist.Initialize(r.Context(), p.ID)
	if err != nil {
		response.Error(w, err)
		return
	}
	if seeded {
		h.changed("checklist", "create", p.Name, p.ID)
	}
	response.JSON(w, map[string]bool{"seeded": seeded})
}

// UpdateChecklistItem handles PATCH /api/v1/checklist/{id}. An unknown id is
// ignored.
func (h *Handler) UpdateChecklistItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		response.Err(w, "invalid item id", http.StatusBadRequest)
		return
	}
	var body struct {
		Completed bool   `json:"completed"`
		Person    string `json:"person"`
		Reference string `json:"reference"`
	}
	if err := response.DecodeBody(w, r, &body); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateMaxLength(ve, "person", body.Person, validation.MaxNameLength)
	validation.ValidateMaxLength(ve, "reference", body.Reference, validation.MaxStringLength)
	if err := ve.Err(); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.Checklist.UpdateItem(r.Context(), id, body.Completed, body.Person, body.Reference); err != nil {
		response.Error(w, err)
		return
	}
	h.changed("checklist", "update", "", id)
	w.WriteHeader(http.StatusNoContent)
}

// ChecklistPDF handles GET /api/v1/projects/{name}/checklist.pdf.
func (h *Handler) ChecklistPDF(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProject(r.Context(), r.PathValue("name"))
	if err != nil {
		response.Error(w, err)
		return
	}
	items, err := h.Checklist.Items(r.Context(), p.ID)
	if err != nil {
		response.Error(w, err)
		return
	}
	h.sendPDF(w, report.Checklist(*p, items, h.now()), p.Name+"_Checklist.pdf")
}
