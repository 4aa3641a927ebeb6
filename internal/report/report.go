// Package report renders paginated PDF reports from a simple section model.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// Section is one titled table of a report.
type Section struct {
	Title   string
	Headers []string
	// Widths are relative column weights; nil means equal widths.
	Widths []float64
	Rows   [][]string
	// Empty is printed instead of the table when Rows is empty.
	Empty string
}

// Document is a whole report.
type Document struct {
	Title     string
	Subtitle  string
	Generated time.Time
	Sections  []Section
	// Landscape selects A4 landscape for wide tables.
	Landscape bool
}

// Section returns the section with title, or nil.
func (d Document) Section(title string) *Section {
	for i := range d.Sections {
		if d.Sections[i].Title == title {
			return &d.Sections[i]
		}
	}
	return nil
}

const (
	lineHeight = 5.5
	cellPad    = 1.5
	// footerRoom keeps table rows clear of the page footer.
	footerRoom = 8
)

// Render writes doc as an A4 PDF.
func Render(doc Document, w io.Writer) error {
	pdf, tr := newPDF(doc)

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "C", false, 0, "")
	if doc.Subtitle != "" {
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 7, tr(doc.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, "Generated on: "+doc.Generated.Format("2006-01-02 15:04:05"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	for _, s := range doc.Sections {
		renderSection(pdf, tr, s)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func newPDF(doc Document) (*fpdf.Fpdf, func(string) string) {
	orientation := "P"
	if doc.Landscape {
		orientation = "L"
	}
	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(false, 15)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(110, 110, 110)
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("%s  |  page %d/{nb}", doc.Title, pdf.PageNo())), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})
	return pdf, tr
}

// WriteFile renders doc to path, creating the parent directory.
func WriteFile(doc Document, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := Render(doc, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func renderSection(pdf *fpdf.Fpdf, tr func(string) string, s Section) {
	ensureSpace(pdf, 10+2*lineHeight)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetFillColor(225, 232, 240)
	pdf.CellFormat(0, 8, tr(s.Title), "", 1, "L", true, 0, "")
	pdf.Ln(1.5)

	if len(s.Rows) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		msg := s.Empty
		if msg == "" {
			msg = "No entries."
		}
		pdf.CellFormat(0, lineHeight+1, tr(msg), "", 1, "L", false, 0, "")
		pdf.Ln(4)
		return
	}

	t := &table{pdf: pdf, widths: columnWidths(pdf, s)}
	for _, h := range s.Headers {
		t.headers = append(t.headers, tr(h))
	}
	t.header()
	for _, row := range s.Rows {
		cells := make([]string, len(t.widths))
		for i := range cells {
			if i < len(row) {
				cells[i] = tr(row[i])
			}
		}
		t.row(cells)
	}
	pdf.Ln(5)
}

// table draws the rows of one section. A row that does not fit the rest of
// the page moves to the next page; a row taller than a whole page is split
// by lines and continues below a repeated header.
type table struct {
	pdf     *fpdf.Fpdf
	headers []string
	widths  []float64
}

func (t *table) header() {
	if len(t.headers) == 0 {
		return
	}
	t.pdf.SetFont("Helvetica", "B", 10)
	t.pdf.SetFillColor(211, 211, 211)
	lines, n := t.split(t.headers)
	t.draw(lines, 0, n, true)
}

func (t *table) newPage() {
	t.pdf.AddPage()
	t.header()
}

func (t *table) row(cells []string) {
	t.pdf.SetFont("Helvetica", "", 9.5)
	lines, n := t.split(cells)
	fresh := false
	for start := 0; start < n; {
		left := n - start
		fit := t.linesLeft()
		if fresh && fit < 1 {
			fit = 1
		}
		switch {
		case left <= fit:
			t.draw(lines, start, left, false)
			return
		case !fresh && (fit < 1 || start == 0 && left <= t.linesPerPage()):
			t.newPage()
		default:
			t.draw(lines, start, fit, false)
			start += fit
			t.newPage()
		}
		fresh = true
		t.pdf.SetFont("Helvetica", "", 9.5)
	}
}

// split wraps every cell to its column width with the current font.
func (t *table) split(cells []string) ([][]string, int) {
	out := make([][]string, len(cells))
	n := 1
	for i, text := range cells {
		for _, l := range t.pdf.SplitLines([]byte(text), t.widths[i]-2*cellPad) {
			out[i] = append(out[i], string(l))
		}
		if len(out[i]) > n {
			n = len(out[i])
		}
	}
	return out, n
}

// draw renders lines [start, start+count) of every cell as one bordered row.
func (t *table) draw(lines [][]string, start, count int, fill bool) {
	pdf := t.pdf
	h := float64(count)*lineHeight + cellPad
	style := "D"
	if fill {
		style = "FD"
	}
	x, y := pdf.GetXY()
	for i, cell := range lines {
		pdf.Rect(x, y, t.widths[i], h, style)
		if start < len(cell) {
			end := start + count
			if end > len(cell) {
				end = len(cell)
			}
			pdf.SetXY(x+cellPad, y+cellPad/2)
			pdf.MultiCell(t.widths[i]-2*cellPad, lineHeight, strings.Join(cell[start:end], "\n"), "", "L", false)
		}
		x += t.widths[i]
	}
	left, _, _, _ := pdf.GetMargins()
	pdf.SetXY(left, y+h)
}

func (t *table) linesLeft() int {
	return int((bottomLimit(t.pdf) - t.pdf.GetY() - cellPad) / lineHeight)
}

// linesPerPage is how many body lines fit below the header on a fresh page.
func (t *table) linesPerPage() int {
	_, top, _, _ := t.pdf.GetMargins()
	avail := bottomLimit(t.pdf) - top - 2*cellPad
	if len(t.headers) > 0 {
		avail -= lineHeight * 2
	}
	return int(avail / lineHeight)
}

func bottomLimit(pdf *fpdf.Fpdf) float64 {
	_, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	return pageH - bottom - footerRoom
}

func columnWidths(pdf *fpdf.Fpdf, s Section) []float64 {
	n := len(s.Headers)
	for _, r := range s.Rows {
		if len(r) > n {
			n = len(r)
		}
	}
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageW - left - right

	weights := s.Widths
	if len(weights) != n {
		weights = make([]float64, n)
		for i := range weights {
			weights[i] = 1
		}
	}
	var total float64
	for _, w := range weights {
		total += w
	}
	out := make([]float64, n)
	for i, w := range weights {
		out[i] = usable * w / total
	}
	return out
}

func ensureSpace(pdf *fpdf.Fpdf, h float64) {
	if pdf.GetY()+h > bottomLimit(pdf) {
		pdf.AddPage()
	}
}
