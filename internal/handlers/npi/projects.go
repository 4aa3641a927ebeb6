package npi

import (
	"net/http"

	"go.uber.org/zap"

	"npitrack/internal/models"
	"npitrack/internal/onboarding"
	"npitrack/internal/response"
	"npitrack/internal/validation"
)

// ListProducts handles GET /api/v1/products. When the store has no products
// the workbook's product list is used.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	names, err := h.Store.ListProducts(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	if len(names) == 0 && h.Workbook != nil {
		if wb, err := h.Workbook.ProductNames(); err != nil {
			h.logger().Warn("workbook product list unavailable", zap.Error(err))
		} else {
			names = wb
		}
	}
	if names == nil {
		names = []string{}
	}
	response.JSONList(w, names, len(names))
}

// ListProjects handles GET /api/v1/products/{product}/projects, falling back
// to the product's workbook sheet.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	product := r.PathValue("product")
	names, err := h.Store.ListProjects(r.Context(), product)
	if err != nil {
		response.Error(w, err)
		return
	}
	if len(names) == 0 && h.Workbook != nil {
		if wb, err := h.Workbook.ProjectNames(product); err != nil {
			h.logger().Debug("workbook project list unavailable", zap.String("product", product), zap.Error(err))
		} else {
			names = wb
		}
	}
	if names == nil {
		names = []string{}
	}
	response.JSONList(w, names, len(names))
}

// CreateProject handles POST /api/v1/projects.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var np onboarding.NewProject
	if err := response.DecodeBody(w, r, &np); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	out, err := h.Onboarding.Onboard(r.Context(), np)
	if err != nil {
		response.Error(w, err)
		return
	}
	code := http.StatusOK
	if out.Created {
		code = http.StatusCreated
		h.changed("project", "create", np.Name, out.ProjectID)
	}
	response.JSONStatus(w, code, out)
}

// GetProject handles GET /api/v1/projects/{name}.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProject(r.Context(), r.PathValue("name"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, p)
}

// UpdateProject handles PUT /api/v1/projects/{name}.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var body struct {
		Fields models.ProjectFields `json:"fields"`
	}
	if err := response.DecodeBody(w, r, &body); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateProjectFields(ve, body.Fields)
	if err := ve.Err(); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.Store.UpdateProjectFields(r.Context(), name, body.Fields); err != nil {
		response.Error(w, err)
		return
	}
	h.changed("project", "update", name, name)
	p, err := h.Store.GetProject(r.Context(), name)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, p)
}

// DeleteProject handles DELETE /api/v1/projects/{name}. The project directory
// is left on disk.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.Store.DeleteProject(r.Context(), name); err != nil {
		response.Error(w, err)
		return
	}
	h.logger().Info("project deleted", zap.String("project", name))
	h.changed("project", "delete", name, name)
	w.WriteHeader(http.StatusNoContent)
}
