package store_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"npitrack/internal/apperr"
	"npitrack/internal/models"
	"npitrack/internal/store"
	"npitrack/internal/testutil"
	"npitrack/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMigratesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "npi.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	_, _, err = s.CreateProject(context.Background(), "Widgets", "Widget-A", models.ProjectFields{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// second open must not fail on existing tables and must keep data
	s, err = store.Open(path)
	require.NoError(t, err)
	defer s.Close()
	p, err := s.GetProject(context.Background(), "Widget-A")
	require.NoError(t, err)
	assert.Equal(t, "Widgets", p.Product)
}

func TestOpenInMemory(t *testing.T) {
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	defer s.Close()
	names, err := s.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.NotNil(t, names)
}

func TestCreateProjectIsIdempotent(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()

	id1, created, err := s.CreateProject(ctx, "Widgets", "Widget-A", models.ProjectFields{FGPartNumber: "FG-1"})
	require.NoError(t, err)
	assert.True(t, created)

	id2, created, err := s.CreateProject(ctx, "Other", "Widget-A", models.ProjectFields{FGPartNumber: "FG-2"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id1, id2)

	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM projects WHERE name='Widget-A'").Scan(&n))
	assert.Equal(t, 1, n)

	// the second call must not overwrite anything
	p, err := s.GetProject(ctx, "Widget-A")
	require.NoError(t, err)
	assert.Equal(t, "Widgets", p.Product)
	assert.Equal(t, "FG-1", p.FGPartNumber)
}

func TestProjectIDsAreNotReused(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	first := testutil.SeedProject(t, s, "Widgets", "Widget-A")
	require.NoError(t, s.DeleteProject(ctx, "Widget-A"))
	second := testutil.SeedProject(t, s, "Widgets", "Widget-A")
	assert.Greater(t, second, first)
}

func TestUpdateProjectFields(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	testutil.SeedProject(t, s, "Widgets", "Widget-A")

	fields := models.ProjectFields{
		FGPartNumber:   "FG-100",
		PCBAPartNumber: "PCBA-7",
		StartDate:      "2026-01-05",
		EndDate:        "2026-03-30",
		BOMFile:        "Widget-A",
		NPIEngineer:    "R. Kumar",
	}
	require.NoError(t, s.UpdateProjectFields(ctx, "Widget-A", fields))

	p, err := s.GetProject(ctx, "Widget-A")
	require.NoError(t, err)
	assert.Equal(t, fields, p.ProjectFields)

	err = s.UpdateProjectFields(ctx, "Missing", fields)
	assert.True(t, apperr.IsNotFound(err))
}

func TestListProductsAndProjects(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	testutil.SeedProject(t, s, "Widgets", "Widget-B")
	testutil.SeedProject(t, s, "Widgets", "Widget-A")
	testutil.SeedProject(t, s, "Amplifiers", "Amp-1")
	testutil.SeedProject(t, s, "", "Orphan")

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Amplifiers", "Widgets"}, products)

	projects, err := s.ListProjects(ctx, "Widgets")
	require.NoError(t, err)
	assert.Equal(t, []string{"Widget-A", "Widget-B"}, projects)

	none, err := s.ListProjects(ctx, "Nothing")
	require.NoError(t, err)
	assert.Equal(t, []string{}, none)
}

func TestGetProjectNotFound(t *testing.T) {
	s := testutil.OpenStore(t)
	_, err := s.GetProject(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	var nf *apperr.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "project", nf.Entity)
}

func seedAllChildren(t *testing.T, s *store.Store, id int64) {
	t.Helper()
	ctx := context.Background()
	qty := 50
	require.NoError(t, s.SaveWorkflow(ctx, models.Workflow{ProjectID: id, LotID: "LOT-1", WorkOrderQty: &qty}))
	for _, k := range models.MatrixKinds {
		require.NoError(t, s.ReplaceMatrix(ctx, id, k, []models.MatrixPair{{A: "a", B: "b"}}))
	}
	_, err := s.SeedChecklist(ctx, id, []models.ChecklistItem{{Name: "Design Record"}, {Name: "SOP"}})
	require.NoError(t, err)
	_, err = s.AddDocument(ctx, id, models.CategorySOP, "SOP/sop.pdf")
	require.NoError(t, err)
}

func TestDeleteProjectCascadesEveryChild(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("P-%d", i)
		id := testutil.SeedProject(t, s, "Widgets", name)
		seedAllChildren(t, s, id)

		counts, err := s.ChildRowCounts(ctx, id)
		require.NoError(t, err)
		for table, n := range counts {
			require.Positive(t, n, table)
		}

		require.NoError(t, s.DeleteProject(ctx, name))

		counts, err = s.ChildRowCounts(ctx, id)
		require.NoError(t, err)
		for table, n := range counts {
			assert.Zero(t, n, "orphaned rows in %s", table)
		}
		_, err = s.GetProject(ctx, name)
		assert.True(t, apperr.IsNotFound(err))
	}
}

func TestDeleteProjectLeavesOtherProjects(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	a := testutil.SeedProject(t, s, "Widgets", "Widget-A")
	b := testutil.SeedProject(t, s, "Widgets", "Widget-B")
	seedAllChildren(t, s, a)
	seedAllChildren(t, s, b)

	require.NoError(t, s.DeleteProject(ctx, "Widget-A"))

	counts, err := s.ChildRowCounts(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"workflows": 1, "matrix_rows": 3, "documents": 1, "checklist_items": 2}, counts)
}

func TestDeleteProjectMissing(t *testing.T) {
	s := testutil.OpenStore(t)
	err := s.DeleteProject(context.Background(), "ghost")
	assert.True(t, apperr.IsNotFound(err))
}

func TestWorkflowSaveReplaces(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	id := testutil.SeedProject(t, s, "Widgets", "Widget-A")

	_, err := s.Workflow(ctx, id)
	assert.True(t, apperr.IsNotFound(err))

	wo, po := 100, 250
	first := models.Workflow{
		ProjectID: id, LotID: "LOT-1", WorkflowSMT: "SMT-WF", WorkflowTLA: "TLA-WF",
		SMTWorkOrder: "WO-S1", TLAWorkOrder: "WO-T1", WorkOrderQty: &wo, PONumber: "PO-9", POQty: &po,
	}
	require.NoError(t, s.SaveWorkflow(ctx, first))
	got, err := s.Workflow(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first, *got)

	second := models.Workflow{ProjectID: id, LotID: "LOT-2"}
	require.NoError(t, s.SaveWorkflow(ctx, second))
	got, err = s.Workflow(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, second, *got)
	assert.Nil(t, got.WorkOrderQty)

	err = s.SaveWorkflow(ctx, models.Workflow{ProjectID: 9999})
	assert.True(t, apperr.IsNotFound(err))
}

func TestWorkflowRejectsNegativeQuantity(t *testing.T) {
	s := testutil.OpenStore(t)
	id := testutil.SeedProject(t, s, "Widgets", "Widget-A")
	neg := -1
	err := s.SaveWorkflow(context.Background(), models.Workflow{ProjectID: id, POQty: &neg})
	var pe *apperr.PersistenceError
	assert.ErrorAs(t, err, &pe)
}

func TestReplaceMatrixRoundTrip(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	id := testutil.SeedProject(t, s, "Widgets", "Widget-A")

	for n := 0; n <= 20; n++ {
		pairs := make([]models.MatrixPair, n)
		for i := range pairs {
			pairs[i] = models.MatrixPair{A: fmt.Sprintf("comp-%02d", n-i), B: ""}
			if i%3 == 0 {
				pairs[i] = models.MatrixPair{A: "", B: fmt.Sprintf("make-%d", i)}
			}
		}
		for _, kind := range models.MatrixKinds {
			require.NoError(t, s.ReplaceMatrix(ctx, id, kind, pairs))
			got, err := s.Matrix(ctx, id, kind)
			require.NoError(t, err)
			assert.Equal(t, pairs, got, "kind=%s n=%d", kind, n)
		}
	}
}

func TestReplaceMatrixEmptyClears(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	id := testutil.SeedProject(t, s, "Widgets", "Widget-A")

	require.NoError(t, s.ReplaceMatrix(ctx, id, models.MatrixBuild, []models.MatrixPair{{A: "Resistor", B: "ACME"}}))
	require.NoError(t, s.ReplaceMatrix(ctx, id, models.MatrixMachine, []models.MatrixPair{{A: "AOI", B: "prog-1"}}))
	require.NoError(t, s.ReplaceMatrix(ctx, id, models.MatrixBuild, nil))

	got, err := s.Matrix(ctx, id, models.MatrixBuild)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	machine, err := s.Matrix(ctx, id, models.MatrixMachine)
	require.NoError(t, err)
	assert.Len(t, machine, 1, "other kinds are untouched")
}

func TestReplaceMatrixDenseSequence(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	id := testutil.SeedProject(t, s, "Widgets", "Widget-A")
	require.NoError(t, s.ReplaceMatrix(ctx, id, models.MatrixBuild, make([]models.MatrixPair, 5)))
	require.NoError(t, s.ReplaceMatrix(ctx, id, models.MatrixBuild, make([]models.MatrixPair, 3)))

	rows, err := s.DB().Query("SELECT seq FROM matrix_rows WHERE project_id=? AND kind='build' ORDER BY seq", id)
	require.NoError(t, err)
	defer rows.Close()
	var seqs []int
	for rows.Next() {
		var n int
		require.NoError(t, rows.Scan(&n))
		seqs = append(seqs, n)
	}
	assert.Equal(t, []int{1, 2, 3}, seqs)
}

func TestReplaceMatrixErrors(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	err := s.ReplaceMatrix(ctx, 42, models.MatrixBuild, nil)
	assert.True(t, apperr.IsNotFound(err))

	id := testutil.SeedProject(t, s, "Widgets", "Widget-A")
	err = s.ReplaceMatrix(ctx, id, models.MatrixKind("bogus"), nil)
	var ve *validation.ValidationErrors
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "kind", ve.Errors[0].Field)
}

func TestSeedChecklistOnce(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	id := testutil.SeedProject(t, s, "Widgets", "Widget-A")
	template := []models.ChecklistItem{
		{Name: "Design Record", Person: "SANTHOSH"},
		{Name: "Control Plan", Person: "SIVA"},
		{Name: "Lesson Learnt"},
	}

	seeded, err := s.SeedChecklist(ctx, id, template)
	require.NoError(t, err)
	assert.True(t, seeded)

	items, err := s.ChecklistItems(ctx, id)
	require.NoError(t, err)
	require.NoError(t, s.UpdateChecklistItem(ctx, items[0].ID, true, "QA", "doc1.pdf"))

	for i := 0; i < 3; i++ {
		seeded, err = s.SeedChecklist(ctx, id, template)
		require.NoError(t, err)
		assert.False(t, seeded)
	}

	items, err = s.ChecklistItems(ctx, id)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for i, it := range items {
		assert.Equal(t, template[i].Name, it.Name)
		assert.Equal(t, i+1, it.Seq)
	}
	assert.True(t, items[0].Completed, "re-seeding must not reset state")
	assert.Equal(t, "QA", items[0].Person)
	assert.Equal(t, "doc1.pdf", items[0].Reference)
	assert.Equal(t, "Pending", items[1].State())
}

func TestUpdateChecklistItemMissing(t *testing.T) {
	s := testutil.OpenStore(t)
	err := s.UpdateChecklistItem(context.Background(), 777, true, "", "")
	assert.True(t, apperr.IsNotFound(err))
}

func TestDocumentsAppendAndRemove(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	id := testutil.SeedProject(t, s, "Widgets", "Widget-A")

	first, err := s.AddDocument(ctx, id, models.CategoryPFMEA, "PFMEA/pfmea.xlsx")
	require.NoError(t, err)
	second, err := s.AddDocument(ctx, id, models.CategoryPFMEA, "PFMEA/pfmea.xlsx")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	_, err = s.AddDocument(ctx, id, models.CategoryControlPlan, "Control_Plan/cp.pdf")
	require.NoError(t, err)

	docs, err := s.Documents(ctx, id, models.CategoryPFMEA)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	all, err := s.Documents(ctx, id, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, models.CategoryControlPlan, all[0].Category, "ordered by category first")
	assert.Equal(t, first, all[1].ID)
	assert.Equal(t, second, all[2].ID)

	n, err := s.RemoveDocumentsByPath(ctx, id, "PFMEA/pfmea.xlsx")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = s.RemoveDocument(ctx, all[0].ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	all, err = s.Documents(ctx, id, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAddDocumentRejectsUnknownCategoryAndProject(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	id := testutil.SeedProject(t, s, "Widgets", "Widget-A")

	_, err := s.AddDocument(ctx, id, "Random Stuff", "x.pdf")
	var pe *apperr.PersistenceError
	assert.ErrorAs(t, err, &pe)

	_, err = s.AddDocument(ctx, id+100, models.CategorySOP, "x.pdf")
	assert.True(t, apperr.IsNotFound(err))
}
