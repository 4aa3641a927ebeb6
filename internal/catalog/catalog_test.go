package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"npitrack/internal/apperr"
	"npitrack/internal/metrics"
	"npitrack/internal/models"
	"npitrack/internal/testutil"
	"npitrack/internal/validation"
)

func TestAddAcceptsDuplicates(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	id := testutil.SeedProject(t, s, "Widgets", "Widget-A")
	c := New(s)

	a, err := c.Add(ctx, id, "sop", "SOP/line1.pdf")
	require.NoError(t, err)
	b, err := c.Add(ctx, id, models.CategorySOP, "SOP/line1.pdf")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, models.CategorySOP, a.Category)

	docs, err := c.List(ctx, id, "SOP")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	n, err := c.RemoveByPath(ctx, id, "SOP/line1.pdf")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestAddValidates(t *testing.T) {
	s := testutil.OpenStore(t)
	id := testutil.SeedProject(t, s, "Widgets", "Widget-A")
	c := New(s)

	_, err := c.Add(context.Background(), id, "Brochures", "x.pdf")
	var ve *validation.ValidationErrors
	require.ErrorAs(t, err, &ve)

	_, err = c.Add(context.Background(), id, models.CategoryWI, "")
	require.ErrorAs(t, err, &ve)
}

func TestRemoveReportsExistence(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	id := testutil.SeedProject(t, s, "Widgets", "Widget-A")
	c := New(s)
	doc, err := c.Add(ctx, id, models.CategoryWI, "WI/wi.docx")
	require.NoError(t, err)

	ok, err := c.Remove(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.Remove(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGroupByCategory(t *testing.T) {
	groups := GroupByCategory([]models.Document{
		{Category: "Control Plan", Path: "a"},
		{Category: "PFMEA", Path: "b"},
		{Category: "PFMEA", Path: "c"},
	})
	assert.Equal(t, []Group{
		{Category: "Control Plan", Files: []string{"a"}},
		{Category: "PFMEA", Files: []string{"b", "c"}},
	}, groups)
	assert.Empty(t, GroupByCategory(nil))
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestImportContinuesPastFailures(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	id := testutil.SeedProject(t, s, "Widgets", "Widget-A")
	m := metrics.New(prometheus.NewRegistry())
	im := &Importer{Catalog: New(s), Metrics: m}

	srcDir := t.TempDir()
	projectDir := filepath.Join(t.TempDir(), "Widgets_Widget-A")
	good1 := writeFile(t, srcDir, "cp-rev1.pdf", "one")
	good2 := writeFile(t, srcDir, "cp-rev2.pdf", "two")
	missing := filepath.Join(srcDir, "gone.pdf")

	var events []models.ProgressEvent
	res, err := im.Import(ctx, id, projectDir, "Control Plan", []string{good1, missing, good2},
		func(ev models.ProgressEvent) { events = append(events, ev) })
	require.NoError(t, err)

	require.Len(t, res.Added, 2)
	assert.Equal(t, "Control_Plan/cp-rev1.pdf", res.Added[0].Path)
	assert.Equal(t, "Control_Plan/cp-rev2.pdf", res.Added[1].Path)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, missing, res.Failed[0].Source)
	assert.ErrorIs(t, res.Failed[0], os.ErrNotExist)

	body, err := os.ReadFile(filepath.Join(projectDir, "Control_Plan", "cp-rev2.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(body))

	require.Len(t, events, 3)
	assert.Equal(t, 3, events[2].Done)
	assert.Equal(t, 3, events[2].Total)

	docs, err := s.Documents(ctx, id, models.CategoryControlPlan)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.DocumentCopies.WithLabelValues("error")))
}

func TestImportUnknownProjectAborts(t *testing.T) {
	s := testutil.OpenStore(t)
	im := &Importer{Catalog: New(s)}
	src := writeFile(t, t.TempDir(), "pf.pdf", "x")

	res, err := im.Import(context.Background(), 404, t.TempDir(), "PFMEA", []string{src}, nil)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
	assert.Empty(t, res.Added)
}

func TestCopyDrawings(t *testing.T) {
	im := &Importer{}
	srcDir := t.TempDir()
	projectDir := t.TempDir()
	d1 := writeFile(t, srcDir, "top.dxf", "top")
	d2 := writeFile(t, srcDir, "bottom.dxf", "bottom")

	pairs, failed := im.CopyDrawings(projectDir, []string{d1, srcDir, d2}, nil)
	assert.Equal(t, []models.MatrixPair{
		{A: "Assembly_Drawings/top.dxf", B: "top.dxf"},
		{A: "Assembly_Drawings/bottom.dxf", B: "bottom.dxf"},
	}, pairs)
	require.Len(t, failed, 1, "directories are not copied")
	assert.FileExists(t, filepath.Join(projectDir, DrawingsFolder, "bottom.dxf"))
}

func TestImportSanitizesNames(t *testing.T) {
	s := testutil.OpenStore(t)
	id := testutil.SeedProject(t, s, "Widgets", "Widget-A")
	im := &Importer{Catalog: New(s)}
	projectDir := t.TempDir()
	src := writeFile(t, t.TempDir(), "fixture;rev|2.step", "step")

	res, err := im.Import(context.Background(), id, projectDir, models.CategorySOP, []string{src}, nil)
	require.NoError(t, err)
	require.Len(t, res.Added, 1)
	assert.Equal(t, "SOP/fixture_rev_2.step", res.Added[0].Path)
	assert.FileExists(t, filepath.Join(projectDir, "SOP", "fixture_rev_2.step"))

	pairs, failed := im.CopyDrawings(projectDir, []string{writeFile(t, t.TempDir(), "top$1.dxf", "top")}, nil)
	require.Empty(t, failed)
	assert.Equal(t, []models.MatrixPair{{A: "Assembly_Drawings/top_1.dxf", B: "top_1.dxf"}}, pairs)
}

func TestScanFolders(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"SOP", "PFMEA/old", "Quality_Documents"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
	}
	writeFile(t, filepath.Join(dir, "SOP"), "line.pdf", "sop")
	writeFile(t, filepath.Join(dir, "PFMEA"), "b.xlsx", "b")
	writeFile(t, filepath.Join(dir, "PFMEA"), "a.xlsx", "a")
	writeFile(t, dir, "notes.txt", "loose")

	groups, err := ScanFolders(dir)
	require.NoError(t, err)
	assert.Equal(t, []Group{
		{Category: models.CategoryPFMEA, Files: []string{"PFMEA/a.xlsx", "PFMEA/b.xlsx"}},
		{Category: models.CategorySOP, Files: []string{"SOP/line.pdf"}},
	}, groups)

	groups, err = ScanFolders(filepath.Join(dir, "absent"))
	require.NoError(t, err)
	assert.Empty(t, groups)
}
