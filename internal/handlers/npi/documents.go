package npi

import (
	"net/http"
	"path/filepath"
	"strconv"

	"npitrack/internal/apperr"
	"npitrack/internal/catalog"
	"npitrack/internal/models"
	"npitrack/internal/report"
	"npitrack/internal/response"
)

// ListDocuments handles GET /api/v1/projects/{name}/documents. With
// ?grouped=1 the documents are grouped by category.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProject(r.Context(), r.PathValue("name"))
	if err != nil {
		response.Error(w, err)
		return
	}
	docs, err := h.Catalog.List(r.Context(), p.ID, r.URL.Query().Get("category"))
	if err != nil {
		response.Error(w, err)
		return
	}
	if r.URL.Query().Get("grouped") != "" {
		groups := catalog.GroupByCategory(docs)
		if groups == nil {
			groups = []catalog.Group{}
		}
		response.JSONList(w, groups, len(docs))
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	response.JSONList(w, docs, len(docs))
}

// DocumentsPDF handles GET /api/v1/projects/{name}/documents.pdf: the
// catalogued files listed under each of the 14 categories.
func (h *Handler) DocumentsPDF(w http.ResponseWriter, r *http.Request) {
	p, dir, err := h.Onboarding.ProjectDir(r.Context(), r.PathValue("name"))
	if err != nil {
		response.Error(w, err)
		return
	}
	docs, err := h.Catalog.List(r.Context(), p.ID, "")
	if err != nil {
		response.Error(w, err)
		return
	}
	groups := catalog.GroupByCategory(docs)
	view := make([]report.DocumentGroup, len(groups))
	for i, g := range groups {
		view[i] = report.DocumentGroup{Category: g.Category, Files: g.Files}
	}
	h.sendPDF(w, report.DocumentList(filepath.Base(dir), view, h.now()), p.Name+"_Documents.pdf")
}

// ImportDocuments handles POST /api/v1/projects/{name}/documents. Sources are
// paths on the server host; each is copied into the category folder and
// cataloged. Copy failures do not stop the batch.
func (h *Handler) ImportDocuments(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Category string   `json:"category"`
		Sources  []string `json:"sources"`
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
	res, err := h.Onboarding.ImportDocuments(r.Context(), name, body.Category, body.Sources, h.progress(name))
	if err != nil {
		response.Error(w, err)
		return
	}
	if len(res.Added) > 0 {
		h.changed("document", "create", name, len(res.Added))
	}
	added := res.Added
	if added == nil {
		added = []models.Document{}
	}
	response.JSON(w, map[string]interface{}{
		"added":  added,
		"failed": errStrings[*apperr.FileCopyError](res.Failed),
	})
}

// RemoveDocument handles DELETE /api/v1/documents/{id}. Only the catalog row
// is removed; the file stays in the project directory.
func (h *Handler) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		response.Err(w, "invalid document id", http.StatusBadRequest)
		return
	}
	removed, err := h.Catalog.Remove(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	if !removed {
		response.Error(w, apperr.NotFound("document", strconv.FormatInt(id, 10)))
		return
	}
	h.changed("document", "delete", "", id)
	w.WriteHeader(http.StatusNoContent)
}

// RemoveDocumentsByPath handles DELETE /api/v1/projects/{name}/documents?path=
// and removes every row of the project with that path.
func (h *Handler) RemoveDocumentsByPath(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		response.Err(w, "path is required", http.StatusBadRequest)
		return
	}
	p, err := h.Store.GetProject(r.Context(), r.PathValue("name"))
	if err != nil {
		response.Error(w, err)
		return
	}
	n, err := h.Catalog.RemoveByPath(r.Context(), p.ID, path)
	if err != nil {
		response.Error(w, err)
		return
	}
	if n > 0 {
		h.changed("document", "delete", p.Name, path)
	}
	response.JSON(w, map[string]int64{"removed": n})
}
