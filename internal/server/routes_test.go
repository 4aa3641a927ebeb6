package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"npitrack/internal/auth"
	"npitrack/internal/catalog"
	"npitrack/internal/checklist"
	"npitrack/internal/handlers/npi"
	"npitrack/internal/handover"
	"npitrack/internal/metrics"
	"npitrack/internal/models"
	"npitrack/internal/onboarding"
	"npitrack/internal/projectdir"
	"npitrack/internal/store"
	npitestutil "npitrack/internal/testutil"
	"npitrack/internal/websocket"
	"npitrack/internal/workbook"
)

type testApp struct {
	handler http.Handler
	store   *store.Store
	root    string
}

func newTestApp(t *testing.T, wb *workbook.Workbook) *testApp {
	t.Helper()
	st := npitestutil.OpenStore(t)
	root := filepath.Join(t.TempDir(), "Projects")
	layout := projectdir.Layout{Root: root}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	cl := checklist.NewManager(st, nil, nil)
	cat := catalog.New(st)
	u, err := auth.NewUnlocker(npitestutil.UnlockHash(t))
	require.NoError(t, err)

	asm := &handover.Assembler{Store: st, Layout: layout, Metrics: m, IncludeChecklist: true}
	if wb != nil {
		asm.BOM = wb
	}
	hub := websocket.NewHub(nil)
	app := &App{
		NPI: &npi.Handler{
			Store: st,
			Onboarding: &onboarding.Service{
				Store: st, Checklist: cl, Layout: layout,
				Importer: &catalog.Importer{Catalog: cat, Metrics: m},
			},
			Checklist: cl,
			Catalog:   cat,
			Assembler: asm,
			Workbook:  wb,
			Hub:       hub,
		},
		Hub:      hub,
		Unlocker: u,
		Health:   st,
		Metrics:  m,
		Gatherer: reg,
	}
	return &testApp{handler: app.Routes(), store: st, root: root}
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, npitestutil.JSONRequest(method, path, body, token))
	return w
}

func createWidgetA(t *testing.T, a *testApp) {
	t.Helper()
	w := a.do(t, "POST", "/api/v1/projects", onboarding.NewProject{
		Product: "Widgets", Name: "Widget-A",
		Fields: models.ProjectFields{FGPartNumber: "FG-1"},
		Build:  []models.MatrixPair{{A: "Resistor", B: "ACME"}},
	}, "")
	npitestutil.AssertStatus(t, w, http.StatusCreated)
}

func TestHealthz(t *testing.T) {
	a := newTestApp(t, nil)
	w := a.do(t, "GET", "/healthz", nil, "")
	npitestutil.AssertStatus(t, w, http.StatusOK)
	var got map[string]interface{}
	npitestutil.DecodeEnvelope(t, w, &got)
	assert.Equal(t, true, got["edits_enabled"])
	assert.NotZero(t, got["schema_version"])
}

func TestProjectLifecycle(t *testing.T) {
	a := newTestApp(t, nil)
	createWidgetA(t, a)

	w := a.do(t, "POST", "/api/v1/projects", onboarding.NewProject{Product: "Widgets", Name: "Widget-A"}, "")
	npitestutil.AssertStatus(t, w, http.StatusOK)

	w = a.do(t, "GET", "/api/v1/products", nil, "")
	var products []string
	npitestutil.DecodeEnvelope(t, w, &products)
	assert.Equal(t, []string{"Widgets"}, products)

	w = a.do(t, "GET", "/api/v1/products/Widgets/projects", nil, "")
	var projects []string
	npitestutil.DecodeEnvelope(t, w, &projects)
	assert.Equal(t, []string{"Widget-A"}, projects)

	w = a.do(t, "GET", "/api/v1/projects/Widget-A", nil, "")
	var p models.Project
	npitestutil.DecodeEnvelope(t, w, &p)
	assert.Equal(t, "FG-1", p.FGPartNumber)

	update := map[string]interface{}{"fields": models.ProjectFields{FGPartNumber: "FG-2", NPIEngineer: "R. Kumar"}}
	npitestutil.AssertStatus(t, a.do(t, "PUT", "/api/v1/projects/Widget-A", update, ""), http.StatusUnauthorized)
	w = a.do(t, "PUT", "/api/v1/projects/Widget-A", update, npitestutil.TestUnlockToken)
	npitestutil.AssertStatus(t, w, http.StatusOK)
	npitestutil.DecodeEnvelope(t, w, &p)
	assert.Equal(t, "FG-2", p.FGPartNumber)

	npitestutil.AssertStatus(t, a.do(t, "DELETE", "/api/v1/projects/Widget-A", nil, "wrong"), http.StatusUnauthorized)
	npitestutil.AssertStatus(t, a.do(t, "DELETE", "/api/v1/projects/Widget-A", nil, npitestutil.TestUnlockToken), http.StatusNoContent)
	npitestutil.AssertStatus(t, a.do(t, "GET", "/api/v1/projects/Widget-A", nil, ""), http.StatusNotFound)
}

func TestCreateProjectValidation(t *testing.T) {
	a := newTestApp(t, nil)
	w := a.do(t, "POST", "/api/v1/projects", onboarding.NewProject{Product: "Widgets", Name: "../etc"}, "")
	npitestutil.AssertStatus(t, w, http.StatusBadRequest)
	assert.Contains(t, w.Body.String(), "path separators")
}

func TestWorkflowAndMatrixRoutes(t *testing.T) {
	a := newTestApp(t, nil)
	createWidgetA(t, a)
	token := npitestutil.TestUnlockToken

	npitestutil.AssertStatus(t, a.do(t, "GET", "/api/v1/projects/Widget-A/workflow", nil, ""), http.StatusNotFound)
	qty := 50
	w := a.do(t, "PUT", "/api/v1/projects/Widget-A/workflow", models.Workflow{LotID: "LOT-1", POQty: &qty}, token)
	npitestutil.AssertStatus(t, w, http.StatusOK)
	w = a.do(t, "GET", "/api/v1/projects/Widget-A/workflow", nil, "")
	var wf models.Workflow
	npitestutil.DecodeEnvelope(t, w, &wf)
	assert.Equal(t, "LOT-1", wf.LotID)
	require.NotNil(t, wf.POQty)
	assert.Equal(t, 50, *wf.POQty)

	rows := map[string]interface{}{"rows": []models.MatrixPair{{A: "AOI", B: "p1"}, {A: "", B: "p2"}}}
	npitestutil.AssertStatus(t, a.do(t, "PUT", "/api/v1/projects/Widget-A/matrix/machine", rows, ""), http.StatusUnauthorized)
	npitestutil.AssertStatus(t, a.do(t, "PUT", "/api/v1/projects/Widget-A/matrix/machine", rows, token), http.StatusOK)
	npitestutil.AssertStatus(t, a.do(t, "PUT", "/api/v1/projects/Widget-A/matrix/bogus", rows, token), http.StatusBadRequest)

	w = a.do(t, "GET", "/api/v1/projects/Widget-A/matrix/Machine", nil, "")
	var view struct {
		Columns []string            `json:"columns"`
		Rows    []models.MatrixPair `json:"rows"`
	}
	npitestutil.DecodeEnvelope(t, w, &view)
	assert.Equal(t, []string{"Machine Name", "Program Name"}, view.Columns)
	assert.Equal(t, []models.MatrixPair{{A: "AOI", B: "p1"}, {A: "", B: "p2"}}, view.Rows)

	w = a.do(t, "PUT", "/api/v1/projects/Widget-A/matrix/machine", map[string]interface{}{"rows": []models.MatrixPair{}}, token)
	npitestutil.AssertStatus(t, w, http.StatusOK)
	w = a.do(t, "GET", "/api/v1/projects/Widget-A/matrix/machine", nil, "")
	npitestutil.DecodeEnvelope(t, w, &view)
	assert.Empty(t, view.Rows)
}

func TestChecklistRoutes(t *testing.T) {
	a := newTestApp(t, nil)
	createWidgetA(t, a)

	w := a.do(t, "POST", "/api/v1/projects/Widget-A/checklist", nil, "")
	var seeded map[string]bool
	npitestutil.DecodeEnvelope(t, w, &seeded)
	assert.False(t, seeded["seeded"], "onboarding already seeded the checklist")

	w = a.do(t, "GET", "/api/v1/projects/Widget-A/checklist", nil, "")
	var cl struct {
		Items []models.ChecklistItem `json:"items"`
		Done  int                    `json:"done"`
		Total int                    `json:"total"`
	}
	npitestutil.DecodeEnvelope(t, w, &cl)
	require.Len(t, cl.Items, 42)
	assert.Equal(t, 0, cl.Done)

	first := cl.Items[0]
	w = a.do(t, "PATCH", "/api/v1/checklist/"+itoa(first.ID), map[string]interface{}{
		"completed": true, "person": "QA", "reference": "doc1.pdf",
	}, "")
	npitestutil.AssertStatus(t, w, http.StatusNoContent)
	npitestutil.AssertStatus(t, a.do(t, "PATCH", "/api/v1/checklist/999999", map[string]bool{"completed": true}, ""), http.StatusNoContent)
	npitestutil.AssertStatus(t, a.do(t, "PATCH", "/api/v1/checklist/abc", nil, ""), http.StatusBadRequest)

	w = a.do(t, "GET", "/api/v1/projects/Widget-A/checklist", nil, "")
	npitestutil.DecodeEnvelope(t, w, &cl)
	assert.Equal(t, 1, cl.Done)
	assert.Equal(t, "QA", cl.Items[0].Person)

	w = a.do(t, "GET", "/api/v1/projects/Widget-A/checklist.pdf", nil, "")
	npitestutil.AssertStatus(t, w, http.StatusOK)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
}

func TestDocumentRoutes(t *testing.T) {
	a := newTestApp(t, nil)
	createWidgetA(t, a)

	src := filepath.Join(t.TempDir(), "line.pdf")
	require.NoError(t, os.WriteFile(src, []byte("sop"), 0o600))

	w := a.do(t, "POST", "/api/v1/projects/Widget-A/documents", map[string]interface{}{
		"category": "SOP", "sources": []string{src, src + ".missing"},
	}, "")
	npitestutil.AssertStatus(t, w, http.StatusOK)
	var res struct {
		Added  []models.Document `json:"added"`
		Failed []string          `json:"failed"`
	}
	npitestutil.DecodeEnvelope(t, w, &res)
	require.Len(t, res.Added, 1)
	assert.Len(t, res.Failed, 1)
	assert.FileExists(t, filepath.Join(a.root, "Widgets_Widget-A", "SOP", "line.pdf"))

	npitestutil.AssertStatus(t, a.do(t, "POST", "/api/v1/projects/Widget-A/documents", map[string]interface{}{
		"category": "Nonsense", "sources": []string{src},
	}, ""), http.StatusBadRequest)

	w = a.do(t, "GET", "/api/v1/projects/Widget-A/documents?grouped=1", nil, "")
	var groups []catalog.Group
	npitestutil.DecodeEnvelope(t, w, &groups)
	require.Len(t, groups, 1)
	assert.Equal(t, "SOP", groups[0].Category)

	w = a.do(t, "GET", "/api/v1/projects/Widget-A/documents.pdf", nil, "")
	npitestutil.AssertStatus(t, w, http.StatusOK)
	assert.Equal(t, `attachment; filename="Widget-A_Documents.pdf"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
	npitestutil.AssertStatus(t, a.do(t, "GET", "/api/v1/projects/Ghost/documents.pdf", nil, ""), http.StatusNotFound)

	npitestutil.AssertStatus(t, a.do(t, "DELETE", "/api/v1/documents/"+itoa(res.Added[0].ID), nil, ""), http.StatusNoContent)
	npitestutil.AssertStatus(t, a.do(t, "DELETE", "/api/v1/documents/"+itoa(res.Added[0].ID), nil, ""), http.StatusNotFound)

	w = a.do(t, "DELETE", "/api/v1/projects/Widget-A/documents?path=SOP/line.pdf", nil, "")
	var removed map[string]int64
	npitestutil.DecodeEnvelope(t, w, &removed)
	assert.Equal(t, int64(0), removed["removed"])
}

func TestDrawingsRoute(t *testing.T) {
	a := newTestApp(t, nil)
	createWidgetA(t, a)
	src := filepath.Join(t.TempDir(), "top.dxf")
	require.NoError(t, os.WriteFile(src, []byte("dxf"), 0o600))

	body := map[string]interface{}{"sources": []string{src}}
	npitestutil.AssertStatus(t, a.do(t, "POST", "/api/v1/projects/Widget-A/drawings", body, ""), http.StatusUnauthorized)
	npitestutil.AssertStatus(t, a.do(t, "POST", "/api/v1/projects/Widget-A/drawings", body, npitestutil.TestUnlockToken), http.StatusOK)

	p, err := a.store.GetProject(t.Context(), "Widget-A")
	require.NoError(t, err)
	rows, err := a.store.Matrix(t.Context(), p.ID, models.MatrixAssembly)
	require.NoError(t, err)
	assert.Equal(t, []models.MatrixPair{{A: "Assembly_Drawings/top.dxf", B: "top.dxf"}}, rows)
}

func TestHandoverRoute(t *testing.T) {
	wbPath := filepath.Join(t.TempDir(), "NPI_Project_Data.xlsx")
	require.NoError(t, workbook.WriteFile(wbPath, "BOM-A", []string{"Part", "Qty"}, [][]string{{"R1", "4"}}))
	a := newTestApp(t, &workbook.Workbook{Path: wbPath, ProductSheet: "Products"})
	createWidgetA(t, a)

	outside := filepath.Join(t.TempDir(), "out.zip")
	w := a.do(t, "POST", "/api/v1/projects/Widget-A/handover", map[string]string{"archive_path": outside}, "")
	npitestutil.AssertStatus(t, w, http.StatusBadRequest)
	assert.NoFileExists(t, outside)
	w = a.do(t, "POST", "/api/v1/projects/Widget-A/handover", map[string]string{
		"archive_path": filepath.Join(a.root, "..", "escape.zip"),
	}, "")
	npitestutil.AssertStatus(t, w, http.StatusBadRequest)

	dest := filepath.Join(a.root, "out.zip")
	w = a.do(t, "POST", "/api/v1/projects/Widget-A/handover", map[string]string{
		"bom_sheet": "BOM-A", "archive_path": dest,
	}, "")
	npitestutil.AssertStatus(t, w, http.StatusOK)
	var res struct {
		ArchivePath     string   `json:"archive_path"`
		BOMPath         string   `json:"bom_path"`
		Files           int      `json:"files"`
		DocumentsSource string   `json:"documents_source"`
		Warnings        []string `json:"warnings"`
	}
	npitestutil.DecodeEnvelope(t, w, &res)
	assert.Equal(t, dest, res.ArchivePath)
	assert.Equal(t, 2, res.Files, "BOM export and report")
	assert.Equal(t, handover.SourceCatalog, res.DocumentsSource)
	assert.Empty(t, res.Warnings)
	assert.FileExists(t, dest)

	f, err := excelize.OpenFile(res.BOMPath)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("BOM-A", "A2")
	require.NoError(t, err)
	assert.Equal(t, "R1", v)

	npitestutil.AssertStatus(t, a.do(t, "POST", "/api/v1/projects/Ghost/handover", nil, ""), http.StatusNotFound)
}

func TestBOMRoutesWithoutWorkbook(t *testing.T) {
	a := newTestApp(t, nil)
	npitestutil.AssertStatus(t, a.do(t, "GET", "/api/v1/bom/sheets", nil, ""), http.StatusBadGateway)
	npitestutil.AssertStatus(t, a.do(t, "POST", "/api/v1/bom/import", map[string]string{"source": "x.xlsx", "sheet": "B"}, ""), http.StatusBadGateway)
	npitestutil.AssertStatus(t, a.do(t, "POST", "/api/v1/bom/import", map[string]string{}, ""), http.StatusBadRequest)
}

func TestBOMSheetRoute(t *testing.T) {
	wbPath := filepath.Join(t.TempDir(), "NPI_Project_Data.xlsx")
	require.NoError(t, workbook.WriteFile(wbPath, "BOM-A", []string{"Part", "Qty"}, [][]string{
		{"R1", "4"}, {"C2", "12"}, {"R9", "1"},
	}))
	a := newTestApp(t, &workbook.Workbook{Path: wbPath, ProductSheet: "Products"})

	w := a.do(t, "GET", "/api/v1/bom/sheets/BOM-A?filter=r&sort=Qty&desc=1", nil, "")
	npitestutil.AssertStatus(t, w, http.StatusOK)
	var got struct {
		Columns []string            `json:"columns"`
		Rows    []map[string]string `json:"rows"`
	}
	npitestutil.DecodeEnvelope(t, w, &got)
	assert.Equal(t, []string{"Part", "Qty"}, got.Columns)
	assert.Equal(t, []map[string]string{{"Part": "R1", "Qty": "4"}, {"Part": "R9", "Qty": "1"}}, got.Rows)

	w = a.do(t, "GET", "/api/v1/bom/sheets/BOM-A?format=pdf", nil, "")
	npitestutil.AssertStatus(t, w, http.StatusOK)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))

	npitestutil.AssertStatus(t, a.do(t, "GET", "/api/v1/bom/sheets/BOM-A?sort=Price", nil, ""), http.StatusBadRequest)
	npitestutil.AssertStatus(t, a.do(t, "GET", "/api/v1/bom/sheets/Missing", nil, ""), http.StatusBadGateway)
}

func TestBOMImportRoute(t *testing.T) {
	dir := t.TempDir()
	master := filepath.Join(dir, "NPI_Project_Data.xlsx")
	require.NoError(t, workbook.WriteFile(master, "Products", []string{"Product Name"}, [][]string{{"Widgets"}}))
	upload := filepath.Join(dir, "upload.xlsx")
	require.NoError(t, workbook.WriteFile(upload, "Sheet1", []string{"Part"}, [][]string{{"C1"}, {"C2"}}))

	a := newTestApp(t, &workbook.Workbook{Path: master, ProductSheet: "Products", Excluded: []string{"Products"}})
	w := a.do(t, "POST", "/api/v1/bom/import", map[string]string{"source": upload, "sheet": "BOM-B"}, "")
	npitestutil.AssertStatus(t, w, http.StatusOK)

	w = a.do(t, "GET", "/api/v1/bom/sheets", nil, "")
	var sheets []string
	npitestutil.DecodeEnvelope(t, w, &sheets)
	assert.Equal(t, []string{"BOM-B"}, sheets)

	w = a.do(t, "GET", "/api/v1/products", nil, "")
	var products []string
	npitestutil.DecodeEnvelope(t, w, &products)
	assert.Equal(t, []string{"Widgets"}, products, "workbook fallback when the store is empty")
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestApp(t, nil)
	a.do(t, "GET", "/healthz", nil, "")
	w := a.do(t, "GET", "/metrics", nil, "")
	npitestutil.AssertStatus(t, w, http.StatusOK)
	assert.Contains(t, w.Body.String(), `npitrack_http_requests_total{method="GET",route="GET /healthz",status="200"} 1`)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
