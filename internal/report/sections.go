package report

import (
	"strconv"
	"strings"
	"time"

	"npitrack/internal/models"
)

// Section titles of the handover report, in render order.
const (
	SectionDetails   = "Project Details"
	SectionWorkflow  = "MES Workflow Details"
	SectionBuild     = "Build Matrix"
	SectionMachine   = "Machine Programs"
	SectionDocuments = "Handover Documents Summary"
	SectionChecklist = "Checklist Status"
)

// DocumentGroup is the files of one category for the documents summary.
type DocumentGroup struct {
	Category string
	Files    []string
}

// HandoverInput is everything the handover report shows.
type HandoverInput struct {
	Project   models.Project
	Workflow  *models.Workflow
	Build     []models.MatrixPair
	Machine   []models.MatrixPair
	Documents []DocumentGroup
	// Checklist is rendered only when IncludeChecklist is set.
	Checklist        []models.ChecklistItem
	IncludeChecklist bool
	Generated        time.Time
}

// Handover builds the handover report document.
func Handover(in HandoverInput) Document {
	p := in.Project
	doc := Document{
		Title:     "Project Handover Report",
		Subtitle:  p.Product + " / " + p.Name,
		Generated: in.Generated,
	}

	doc.Sections = append(doc.Sections, Section{
		Title:   SectionDetails,
		Headers: []string{"Field", "Value"},
		Widths:  []float64{1, 2},
		Rows: [][]string{
			{"Project Name", p.Name},
			{"FG Part Number", p.FGPartNumber},
			{"PCBA Part Number", p.PCBAPartNumber},
			{"Start Date", p.StartDate},
			{"End Date", p.EndDate},
			{"BOM File", p.BOMFile},
			{"NPI Engineer", p.NPIEngineer},
		},
	})

	wf := Section{
		Title:   SectionWorkflow,
		Headers: []string{"Field", "Value"},
		Widths:  []float64{1, 2},
		Empty:   "No MES workflow recorded.",
	}
	if w := in.Workflow; w != nil {
		wf.Rows = [][]string{
			{"LOT ID", w.LotID},
			{"Workflow SMT - Name", w.WorkflowSMT},
			{"Workflow TLA - Name", w.WorkflowTLA},
			{"SMT - Work Order", w.SMTWorkOrder},
			{"TLA - Work Order", w.TLAWorkOrder},
			{"Work Order Quantity", qty(w.WorkOrderQty)},
			{"PO NUMBER", w.PONumber},
			{"PO Quantity", qty(w.POQty)},
		}
	}
	doc.Sections = append(doc.Sections, wf,
		matrixSection(SectionBuild, models.MatrixBuild, in.Build),
		matrixSection(SectionMachine, models.MatrixMachine, in.Machine))

	docs := Section{
		Title:   SectionDocuments,
		Headers: []string{"Category", "Files"},
		Widths:  []float64{1, 2.2},
		Empty:   "No handover documents cataloged.",
	}
	for _, g := range in.Documents {
		docs.Rows = append(docs.Rows, []string{g.Category, strings.Join(g.Files, "\n")})
	}
	doc.Sections = append(doc.Sections, docs)

	if in.IncludeChecklist {
		doc.Sections = append(doc.Sections, checklistSection(in.Checklist))
	}
	return doc
}

func matrixSection(title string, kind models.MatrixKind, pairs []models.MatrixPair) Section {
	a, b := kind.Columns()
	s := Section{
		Title:   title,
		Headers: []string{"No.", a, b},
		Widths:  []float64{0.35, 2, 2},
		Empty:   "No entries.",
	}
	for i, p := range pairs {
		s.Rows = append(s.Rows, []string{strconv.Itoa(i + 1), p.A, p.B})
	}
	return s
}

func checklistSection(items []models.ChecklistItem) Section {
	s := Section{
		Title:   SectionChecklist,
		Headers: []string{"S.No", "Checklist Item", "Status", "Person", "Reference"},
		Widths:  []float64{0.45, 3.2, 0.8, 1.3, 1.3},
		Empty:   "Checklist not initialized.",
	}
	for i, it := range items {
		s.Rows = append(s.Rows, []string{strconv.Itoa(i + 1), it.Name, it.State(), it.Person, it.Reference})
	}
	return s
}

// Checklist builds the standalone checklist export for one project.
func Checklist(project models.Project, items []models.ChecklistItem, generated time.Time) Document {
	s := Section{
		Title:   "Checklist",
		Headers: []string{"S.No", "Completed", "Checklist Item", "Person", "Reference"},
		Widths:  []float64{0.45, 0.8, 3.4, 1.3, 1},
		Empty:   "Checklist not initialized.",
	}
	for i, it := range items {
		done := "No"
		if it.Completed {
			done = "Yes"
		}
		ref := ""
		if strings.TrimSpace(it.Reference) != "" {
			ref = "Available"
		}
		s.Rows = append(s.Rows, []string{strconv.Itoa(i + 1), done, it.Name, it.Person, ref})
	}
	return Document{
		Title:     "NPI Checklist",
		Subtitle:  project.Product + " / " + project.Name,
		Generated: generated,
		Sections:  []Section{s},
	}
}

func qty(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// DocumentList builds the handover documents export: one row per category,
// in category order, listing its file paths.
func DocumentList(dirName string, groups []DocumentGroup, generated time.Time) Document {
	files := make(map[string][]string, len(groups))
	for _, g := range groups {
		files[g.Category] = append(files[g.Category], g.Files...)
	}
	s := Section{
		Title:   "Handover Documents",
		Headers: []string{"Category", "Files (paths)"},
		Widths:  []float64{1, 2.4},
	}
	for _, c := range models.Categories {
		list := "No files"
		if len(files[c]) > 0 {
			list = strings.Join(files[c], "\n")
		}
		s.Rows = append(s.Rows, []string{c, list})
	}
	return Document{
		Title:     "Handover Checklist",
		Subtitle:  dirName,
		Generated: generated,
		Sections:  []Section{s},
	}
}

// BOM builds the export of one BOM sheet. Wide sheets use landscape pages.
func BOM(sheet string, columns []string, rows [][]string, generated time.Time) Document {
	return Document{
		Title:     "Bill of Materials",
		Subtitle:  sheet,
		Generated: generated,
		Landscape: len(columns) > 5,
		Sections: []Section{{
			Title:   sheet,
			Headers: columns,
			Rows:    rows,
			Empty:   "The sheet has no rows.",
		}},
	}
}
