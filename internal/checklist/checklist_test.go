package checklist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"npitrack/internal/testutil"
)

func TestDefaultTemplate(t *testing.T) {
	tpl := DefaultTemplate()
	require.Equal(t, 42, tpl.Len())

	entries := tpl.Entries()
	assert.Equal(t, "Design Record (BOM & 3D/2D Drawings)", entries[0].Name)
	assert.Equal(t, "SANTHOSH", entries[0].Person)
	assert.Equal(t, "Initial Process Study plan and report", entries[9].Name)
	assert.Empty(t, entries[9].Person)
	assert.Equal(t, "Lesson Learnt", entries[41].Name)

	items := tpl.Items()
	for i, it := range items {
		assert.Equal(t, i+1, it.Seq)
		assert.False(t, it.Completed)
		assert.Empty(t, it.Reference)
	}
}

func TestParseTemplateErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "items: []"},
		{"blank name", "items:\n  - name: '  '\n"},
		{"duplicate", "items:\n  - name: SOP\n  - name: SOP\n"},
		{"bad yaml", "items: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadTemplateOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checklist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("items:\n  - name: First\n    person: QA\n  - name: Second\n"), 0o600))

	tpl, err := LoadTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "First", Person: "QA"}, {Name: "Second"}}, tpl.Entries())

	tpl, err = LoadTemplate("")
	require.NoError(t, err)
	assert.Equal(t, 42, tpl.Len())

	_, err = LoadTemplate(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestInitializeSeedsOnce(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	id := testutil.SeedProject(t, s, "Widgets", "Widget-A")
	m := NewManager(s, nil, nil)

	seeded, err := m.Initialize(ctx, id)
	require.NoError(t, err)
	assert.True(t, seeded)

	for i := 0; i < 4; i++ {
		seeded, err = m.Initialize(ctx, id)
		require.NoError(t, err)
		assert.False(t, seeded)
	}

	items, err := m.Items(ctx, id)
	require.NoError(t, err)
	require.Len(t, items, 42)
	for _, it := range items {
		assert.Equal(t, "Pending", it.State())
	}
}

func TestUpdateItemToggles(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	id := testutil.SeedProject(t, s, "Widgets", "Widget-A")
	m := NewManager(s, nil, nil)
	_, err := m.Initialize(ctx, id)
	require.NoError(t, err)

	items, err := m.Items(ctx, id)
	require.NoError(t, err)
	first := items[0]

	require.NoError(t, m.UpdateItem(ctx, first.ID, true, "QA", "doc1.pdf"))
	require.NoError(t, m.UpdateItem(ctx, first.ID, true, "QA", "doc1.pdf"))

	items, err = m.Items(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Done", items[0].State())
	assert.Equal(t, "QA", items[0].Person)
	assert.Equal(t, "doc1.pdf", items[0].Reference)

	done, total := Progress(items)
	assert.Equal(t, 1, done)
	assert.Equal(t, 42, total)

	require.NoError(t, m.UpdateItem(ctx, first.ID, false, "QA", ""))
	items, err = m.Items(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Pending", items[0].State())
	assert.Empty(t, items[0].Reference)
}

func TestUpdateItemUnknownIDIsLogged(t *testing.T) {
	s := testutil.OpenStore(t)
	core, logs := observer.New(zapcore.DebugLevel)
	m := NewManager(s, nil, zap.New(core))

	err := m.UpdateItem(context.Background(), 12345, true, "QA", "")
	require.NoError(t, err)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "not found")
	assert.Equal(t, int64(12345), warnings[0].ContextMap()["item_id"])
}

func TestInitializeUnknownProject(t *testing.T) {
	s := testutil.OpenStore(t)
	m := NewManager(s, nil, nil)
	_, err := m.Initialize(context.Background(), 999)
	assert.Error(t, err)
}
