// Package workbook is the boundary to the master NPI spreadsheet: sheet
// listing, column-named table reads, and whole-sheet export and import.
package workbook

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"npitrack/internal/apperr"
)

const (
	productNameColumn = "Product Name"
	projectNameColumn = "Project Name"
)

// Workbook reads and writes the spreadsheet at Path. Every call opens the file
// afresh, so edits made in a spreadsheet application are picked up.
type Workbook struct {
	Path         string
	ProductSheet string
	Excluded     []string
}

// Table is a sheet read with its first row as column names.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// Column returns the non-empty values of one column in row order.
func (t *Table) Column(name string) []string {
	var out []string
	for _, r := range t.Rows {
		if v := strings.TrimSpace(r[name]); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// HasColumn reports whether the table has a column called name.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Records returns the table as rows of cells ordered like Columns.
func (t *Table) Records() [][]string {
	out := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rec := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			rec[j] = r[c]
		}
		out[i] = rec
	}
	return out
}

// Filter keeps the rows where any cell contains query, ignoring case. An
// empty query keeps every row.
func (t *Table) Filter(query string) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return
	}
	kept := t.Rows[:0]
	for _, r := range t.Rows {
		for _, c := range t.Columns {
			if strings.Contains(strings.ToLower(r[c]), q) {
				kept = append(kept, r)
				break
			}
		}
	}
	t.Rows = kept
}

// SortBy orders the rows by column, numerically when both cells are numbers
// and by case-folded text otherwise. The sort is stable.
func (t *Table) SortBy(column string, desc bool) error {
	if !t.HasColumn(column) {
		return fmt.Errorf("no column %q (have %s)", column, strings.Join(t.Columns, ", "))
	}
	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, b := t.Rows[i][column], t.Rows[j][column]
		if desc {
			a, b = b, a
		}
		return lessCell(a, b)
	})
	return nil
}

func lessCell(a, b string) bool {
	x, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	y, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if errA == nil && errB == nil {
		return x < y
	}
	return strings.ToLower(a) < strings.ToLower(b)
}

func (w *Workbook) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(w.Path)
	if err != nil {
		return nil, &apperr.ExternalSourceError{Source: w.Path, Err: err}
	}
	return f, nil
}

// SheetNames lists the sheets in workbook order.
func (w *Workbook) SheetNames() ([]string, error) {
	f, err := w.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// ReadTable reads sheet with its first row as column names. Blank or repeated
// headings are renamed "Column N". Rows with no values are dropped.
func (w *Workbook) ReadTable(sheet string) (*Table, error) {
	f, err := w.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readTable(f, w.Path, sheet)
}

func readTable(f *excelize.File, source, sheet string) (*Table, error) {
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, &apperr.ExternalSourceError{Source: source, Sheet: sheet, Err: fmt.Errorf("sheet does not exist")}
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &apperr.ExternalSourceError{Source: source, Sheet: sheet, Err: err}
	}
	t := &Table{Rows: []map[string]string{}}
	if len(rows) == 0 {
		return t, nil
	}

	seen := map[string]bool{}
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			h = fmt.Sprintf("Column %d", i+1)
		}
		seen[h] = true
		t.Columns = append(t.Columns, h)
	}

	for _, row := range rows[1:] {
		rec := make(map[string]string, len(t.Columns))
		empty := true
		for i, col := range t.Columns {
			if i < len(row) {
				rec[col] = row[i]
				if strings.TrimSpace(row[i]) != "" {
					empty = false
				}
			} else {
				rec[col] = ""
			}
		}
		if !empty {
			t.Rows = append(t.Rows, rec)
		}
	}
	return t, nil
}

// ProductNames returns the "Product Name" column of the product sheet, or the
// names of all other sheets when that sheet or column is missing.
func (w *Workbook) ProductNames() ([]string, error) {
	f, err := w.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if t, err := readTable(f, w.Path, w.ProductSheet); err == nil && t.HasColumn(productNameColumn) {
		return dedupe(t.Column(productNameColumn)), nil
	}
	var names []string
	for _, s := range f.GetSheetList() {
		if s != w.ProductSheet {
			names = append(names, s)
		}
	}
	return names, nil
}

// ProjectNames returns the "Project Name" column of the product's sheet.
func (w *Workbook) ProjectNames(product string) ([]string, error) {
	t, err := w.ReadTable(product)
	if err != nil {
		return nil, err
	}
	if !t.HasColumn(projectNameColumn) {
		return nil, &apperr.ExternalSourceError{Source: w.Path, Sheet: product,
			Err: fmt.Errorf("no %q column", projectNameColumn)}
	}
	return dedupe(t.Column(projectNameColumn)), nil
}

// BOMSheets lists sheets that can hold a BOM: every sheet not in Excluded.
func (w *Workbook) BOMSheets() ([]string, error) {
	names, err := w.SheetNames()
	if err != nil {
		return nil, err
	}
	skip := make(map[string]bool, len(w.Excluded))
	for _, s := range w.Excluded {
		skip[s] = true
	}
	out := []string{}
	for _, n := range names {
		if !skip[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

// ExportSheet writes sheet as a standalone workbook at dest. Numbers and
// booleans keep their cell type and blank rows inside the data are kept.
func (w *Workbook) ExportSheet(sheet, dest string) error {
	f, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return &apperr.ExternalSourceError{Source: w.Path, Sheet: sheet, Err: fmt.Errorf("sheet does not exist")}
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return &apperr.ExternalSourceError{Source: w.Path, Sheet: sheet, Err: err}
	}
	data := make([][]interface{}, len(rows))
	for i, row := range rows {
		data[i] = make([]interface{}, len(row))
		for j, raw := range row {
			data[i][j] = typedValue(f, sheet, j+1, i+1, raw)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("export %s: %w", sheet, err)
	}
	if err := writeRows(dest, sheet, data); err != nil {
		return fmt.Errorf("export %s: %w", sheet, err)
	}
	return nil
}

// typedValue converts the raw text of a cell back to the Go value excelize
// writes with the same cell type.
func typedValue(f *excelize.File, sheet string, col, row int, raw string) interface{} {
	if raw == "" {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return raw
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return raw
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n
		}
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true")
	}
	return raw
}

// ImportSheet copies the first sheet of the workbook at src into this
// workbook under sheet, replacing a sheet of that name. The workbook file is
// created when it does not exist yet.
func (w *Workbook) ImportSheet(src, sheet string) (rows int, err error) {
	if strings.TrimSpace(sheet) == "" {
		return 0, fmt.Errorf("import: sheet name is required")
	}
	in, err := excelize.OpenFile(src)
	if err != nil {
		return 0, &apperr.ExternalSourceError{Source: src, Err: err}
	}
	defer in.Close()
	srcSheets := in.GetSheetList()
	if len(srcSheets) == 0 {
		return 0, &apperr.ExternalSourceError{Source: src, Err: fmt.Errorf("workbook has no sheets")}
	}
	data, err := in.GetRows(srcSheets[0])
	if err != nil {
		return 0, &apperr.ExternalSourceError{Source: src, Sheet: srcSheets[0], Err: err}
	}

	var out *excelize.File
	fresh := false
	if _, statErr := os.Stat(w.Path); statErr == nil {
		if out, err = w.open(); err != nil {
			return 0, err
		}
	} else {
		out = excelize.NewFile()
		fresh = true
	}
	defer out.Close()

	if err := replaceSheet(out, sheet, data); err != nil {
		return 0, fmt.Errorf("import %s: %w", sheet, err)
	}
	if fresh && sheet != "Sheet1" {
		if err := out.DeleteSheet("Sheet1"); err != nil {
			return 0, fmt.Errorf("import %s: %w", sheet, err)
		}
	}
	if err := out.SaveAs(w.Path); err != nil {
		return 0, fmt.Errorf("import %s: save workbook: %w", sheet, err)
	}
	if len(data) > 0 {
		rows = len(data) - 1
	}
	return rows, nil
}

// replaceSheet writes data into a fresh sheet and swaps it in for name.
func replaceSheet(f *excelize.File, name string, data [][]string) error {
	const tmp = "__npitrack_import"
	if _, err := f.NewSheet(tmp); err != nil {
		return err
	}
	for i, row := range data {
		if err := setRow(f, tmp, i+1, row); err != nil {
			return err
		}
	}
	if idx, err := f.GetSheetIndex(name); err == nil && idx >= 0 {
		if err := f.DeleteSheet(name); err != nil {
			return err
		}
	}
	if err := f.SetSheetName(tmp, name); err != nil {
		return err
	}
	if idx, err := f.GetSheetIndex(name); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	return nil
}

// WriteFile creates a single-sheet workbook at dest with a bold header row.
func WriteFile(dest, sheet string, headers []string, data [][]string) error {
	rows := make([][]interface{}, 0, len(data)+1)
	if len(headers) > 0 {
		rows = append(rows, toValues(headers))
	} else {
		rows = append(rows, nil)
	}
	for _, r := range data {
		rows = append(rows, toValues(r))
	}
	return writeRows(dest, sheet, rows)
}

// writeRows creates a single-sheet workbook at dest. rows[0] is the header
// row and is styled bold on grey.
func writeRows(dest, sheet string, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		n := len(rows[0])
		last, _ := excelize.CoordinatesToCellName(n, 1)
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return err
		}
		lastCol, _ := excelize.ColumnNumberToName(n)
		if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
			return err
		}
	}

	if sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return err
		}
	}
	return f.SaveAs(dest)
}

func toValues(values []string) []interface{} {
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return vals
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := toValues(values)
	return f.SetSheetRow(sheet, cell, &vals)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := []string{}
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
