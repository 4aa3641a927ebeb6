package npi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"npitrack/internal/apperr"
	"npitrack/internal/handover"
	"npitrack/internal/report"
	"npitrack/internal/response"
	"npitrack/internal/validation"
)

var errNoWorkbook = errors.New("no workbook configured")

type handoverView struct {
	RunID           string   `json:"run_id"`
	ProjectDir      string   `json:"project_dir"`
	BOMPath         string   `json:"bom_path,omitempty"`
	ReportPath      string   `json:"report_path,omitempty"`
	ArchivePath     string   `json:"archive_path,omitempty"`
	Files           int      `json:"files"`
	ArchiveSize     string   `json:"archive_size,omitempty"`
	DocumentsSource string   `json:"documents_source"`
	Warnings        []string `json:"warnings"`
	DurationMS      int64    `json:"duration_ms"`
}

// Handover handles POST /api/v1/projects/{name}/handover. Progress is
// broadcast over the websocket hub while the package is assembled. An
// archive_path must lie inside the projects root.
func (h *Handler) Handover(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BOMSheet    string `json:"bom_sheet"`
		ArchivePath string `json:"archive_path"`
	}
	if r.ContentLength != 0 {
		if err := response.DecodeBody(w, r, &body); err != nil {
			response.Err(w, "invalid body", http.StatusBadRequest)
			return
		}
	}
	if body.ArchivePath != "" && !h.Assembler.Layout.Contains(body.ArchivePath) {
		ve := &validation.ValidationErrors{}
		ve.Add("archive_path", "must lie inside the projects root")
		response.Error(w, ve)
		return
	}
	name := r.PathValue("name")
	req := handover.Request{
		Project:     name,
		BOMSheet:    body.BOMSheet,
		ArchivePath: body.ArchivePath,
		Progress:    h.progress(name),
	}
	if snap, docs, err := handover.LocalView(h.Assembler.Layout, name); err == nil {
		req.Snapshot, req.Documents = snap, docs
	}
	res, err := h.Assembler.Assemble(r.Context(), req)
	if err != nil {
		response.Error(w, err)
		return
	}
	h.changed("handover", "create", name, res.RunID)
	response.JSON(w, handoverView{
		RunID:           res.RunID,
		ProjectDir:      res.ProjectDir,
		BOMPath:         res.BOMPath,
		ReportPath:      res.ReportPath,
		ArchivePath:     res.ArchivePath,
		Files:           res.Archive.Files,
		ArchiveSize:     res.ArchiveSize,
		DocumentsSource: res.DocumentsSource,
		Warnings:        errStrings[*handover.StepWarning](res.Warnings),
		DurationMS:      res.Duration.Milliseconds(),
	})
}

// BOMSheets handles GET /api/v1/bom/sheets.
func (h *Handler) BOMSheets(w http.ResponseWriter, r *http.Request) {
	if h.Workbook == nil {
		response.Error(w, &apperr.ExternalSourceError{Source: "workbook", Err: errNoWorkbook})
		return
	}
	sheets, err := h.Workbook.BOMSheets()
	if err != nil {
		response.Error(w, err)
		return
	}
	if sheets == nil {
		sheets = []string{}
	}
	response.JSONList(w, sheets, len(sheets))
}

// BOMSheet handles GET /api/v1/bom/sheets/{sheet}. Query parameters: filter
// (case-insensitive text match on any cell), sort (column name), desc, and
// format=pdf for a PDF of the resulting rows.
func (h *Handler) BOMSheet(w http.ResponseWriter, r *http.Request) {
	sheet := r.PathValue("sheet")
	if h.Workbook == nil {
		response.Error(w, &apperr.ExternalSourceError{Source: "workbook", Sheet: sheet, Err: errNoWorkbook})
		return
	}
	t, err := h.Workbook.ReadTable(sheet)
	if err != nil {
		response.Error(w, err)
		return
	}
	q := r.URL.Query()
	t.Filter(q.Get("filter"))
	if col := q.Get("sort"); col != "" {
		if err := t.SortBy(col, q.Get("desc") != ""); err != nil {
			ve := &validation.ValidationErrors{}
			ve.Add("sort", err.Error())
			response.Error(w, ve)
			return
		}
	}
	if q.Get("format") == "pdf" {
		h.sendPDF(w, report.BOM(sheet, t.Columns, t.Records(), h.now()), sheet+"_BOM.pdf")
		return
	}
	response.JSONList(w, map[string]interface{}{"columns": t.Columns, "rows": t.Rows}, len(t.Rows))
}

// ImportBOM handles POST /api/v1/bom/import. The first sheet of source (a
// path on the server host) replaces sheet in the master workbook.
func (h *Handler) ImportBOM(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Source string `json:"source"`
		Sheet  string `json:"sheet"`
	}
	if err := response.DecodeBody(w, r, &body); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "source", body.Source)
	validation.RequireField(ve, "sheet", body.Sheet)
	validation.ValidateMaxLength(ve, "sheet", body.Sheet, 31)
	if err := ve.Err(); err != nil {
		response.Error(w, err)
		return
	}
	if h.Workbook == nil {
		response.Error(w, &apperr.ExternalSourceError{Source: "workbook", Sheet: body.Sheet, Err: errNoWorkbook})
		return
	}
	rows, err := h.Workbook.ImportSheet(body.Source, body.Sheet)
	if err != nil {
		response.Error(w, err)
		return
	}
	h.logger().Info("BOM imported", zap.String("sheet", body.Sheet), zap.Int("rows", rows))
	h.changed("bom", "update", "", body.Sheet)
	response.JSON(w, map[string]interface{}{"sheet": body.Sheet, "rows": rows})
}
