package validation

import (
	"fmt"
	"path"
	"strings"
	"time"

	"npitrack/internal/models"
)

// ValidationError represents a structured validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects multiple field errors.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

func (ve *ValidationErrors) Error() string {
	msgs := make([]string, len(ve.Errors))
	for i, e := range ve.Errors {
		msgs[i] = e.Field + ": " + e.Message
	}
	return strings.Join(msgs, "; ")
}

// Err returns ve when it holds errors and nil otherwise.
func (ve *ValidationErrors) Err() error {
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// RequireField checks a required string field is non-empty.
func RequireField(ve *ValidationErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		ve.Add(field, "is required")
	}
}

// ValidateEnum checks a field is one of allowed values.
func ValidateEnum(ve *ValidationErrors, field, value string, allowed []string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	ve.Add(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
}

// ValidateDate checks a field is a valid date (YYYY-MM-DD).
func ValidateDate(ve *ValidationErrors, field, value string) {
	if value == "" {
		return
	}
	if _, err := time.Parse("2006-01-02", value); err != nil {
		ve.Add(field, "must be a valid date (YYYY-MM-DD)")
	}
}

// ValidateMaxLength checks string doesn't exceed max length.
func ValidateMaxLength(ve *ValidationErrors, field, value string, max int) {
	if len(value) > max {
		ve.Add(field, fmt.Sprintf("must be at most %d characters", max))
	}
}

// ValidateNonNegative checks an optional quantity is >= 0.
func ValidateNonNegative(ve *ValidationErrors, field string, value *int) {
	if value != nil && *value < 0 {
		ve.Add(field, "must be non-negative")
	}
}

const (
	MaxNameLength   = 200
	MaxStringLength = 10000
	MaxMatrixRows   = 500
)

// ValidateName checks a product or project name. Names become part of a
// directory name, so path separators are rejected.
func ValidateName(ve *ValidationErrors, field, value string) {
	RequireField(ve, field, value)
	ValidateMaxLength(ve, field, value, MaxNameLength)
	if strings.ContainsAny(value, `/\`) || strings.Contains(value, "..") || strings.Contains(value, "\x00") {
		ve.Add(field, "must not contain path separators")
	}
}

// ValidateProjectFields checks the editable project metadata.
func ValidateProjectFields(ve *ValidationErrors, f models.ProjectFields) {
	ValidateDate(ve, "start_date", f.StartDate)
	ValidateDate(ve, "end_date", f.EndDate)
	if f.StartDate != "" && f.EndDate != "" && f.EndDate < f.StartDate {
		ve.Add("end_date", "must not be before start_date")
	}
	for field, v := range map[string]string{
		"fg_part_number":   f.FGPartNumber,
		"pcba_part_number": f.PCBAPartNumber,
		"bom_file":         f.BOMFile,
		"npi_engineer":     f.NPIEngineer,
	} {
		ValidateMaxLength(ve, field, v, MaxNameLength)
	}
}

// ValidateWorkflow checks the MES workflow record.
func ValidateWorkflow(ve *ValidationErrors, wf models.Workflow) {
	ValidateNonNegative(ve, "work_order_qty", wf.WorkOrderQty)
	ValidateNonNegative(ve, "po_qty", wf.POQty)
	ValidateMaxLength(ve, "lot_id", wf.LotID, MaxNameLength)
	ValidateMaxLength(ve, "po_number", wf.PONumber, MaxNameLength)
}

// ValidateMatrix checks a matrix kind and its rows.
func ValidateMatrix(ve *ValidationErrors, kind string, pairs []models.MatrixPair) {
	ValidateEnum(ve, "kind", kind, ValidMatrixKinds)
	if kind == "" {
		ve.Add("kind", "is required")
	}
	if len(pairs) > MaxMatrixRows {
		ve.Add("rows", fmt.Sprintf("at most %d rows allowed", MaxMatrixRows))
	}
	for i, p := range pairs {
		ValidateMaxLength(ve, fmt.Sprintf("rows[%d].a", i), p.A, MaxStringLength)
		ValidateMaxLength(ve, fmt.Sprintf("rows[%d].b", i), p.B, MaxStringLength)
	}
}

// ValidateCategory checks a document category and returns its canonical name.
func ValidateCategory(ve *ValidationErrors, value string) string {
	if strings.TrimSpace(value) == "" {
		ve.Add("category", "is required")
		return ""
	}
	c, err := models.ParseCategory(value)
	if err != nil {
		ve.Add("category", fmt.Sprintf("must be one of: %s", strings.Join(ValidCategories, ", ")))
		return ""
	}
	return c
}

// MaxFileNameLength caps the name of a file copied into a project folder.
const MaxFileNameLength = 255

var unsafeFileChars = strings.NewReplacer(
	"\x00", "", "\r", "", "\n", "",
	"\t", "_", "|", "_", "&", "_", ";", "_", "$", "_", "`", "_",
	"<", "_", ">", "_", "*", "_", "?", "_", ":", "_", `"`, "_",
)

// SanitizeFilename reduces a source path to the name its copy gets inside a
// project folder: the last path element (either separator style), with shell
// and Windows-reserved characters replaced by "_" and the length capped at
// MaxFileNameLength bytes keeping the extension.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeFileChars.Replace(name)
	if len(name) > MaxFileNameLength {
		ext := path.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = strings.ToValidUTF8(name[:MaxFileNameLength-len(ext)], "") + ext
	}
	switch name {
	case "", ".", "..", "/":
		return "file"
	}
	return name
}
