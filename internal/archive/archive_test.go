package archive

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entries(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	out := map[string]string{}
	for _, f := range r.File {
		assert.Equal(t, zip.Deflate, f.Method, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = string(b)
	}
	return out
}

func TestCreateUsesProjectDirAsTopLevel(t *testing.T) {
	root := filepath.Join(t.TempDir(), "Projects")
	project := filepath.Join(root, "Widgets_Widget-A")
	require.NoError(t, os.MkdirAll(filepath.Join(project, "SOP"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(project, "Empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(project, "Project_Report.pdf"), []byte("%PDF"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(project, "SOP", "line.pdf"), []byte("sop"), 0o600))

	dest := filepath.Join(t.TempDir(), "out", "handover.zip")
	st, err := Create(project, dest, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Files)
	assert.EqualValues(t, 7, st.Bytes)

	got := entries(t, dest)
	assert.Equal(t, map[string]string{
		"Widgets_Widget-A/Project_Report.pdf": "%PDF",
		"Widgets_Widget-A/SOP/line.pdf":       "sop",
	}, got)
}

func TestCreateSkipsDestinationInsideProject(t *testing.T) {
	project := filepath.Join(t.TempDir(), "P_X")
	require.NoError(t, os.MkdirAll(project, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(project, "a.txt"), []byte("a"), 0o600))
	dest := filepath.Join(project, "handover.zip")

	_, err := Create(project, dest, nil)
	require.NoError(t, err)
	// a second run must not pack the first archive
	_, err = Create(project, dest, nil)
	require.NoError(t, err)

	names := make([]string, 0)
	for n := range entries(t, dest) {
		names = append(names, n)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"P_X/a.txt"}, names)
}

func TestCreateSkipsSymlinks(t *testing.T) {
	project := filepath.Join(t.TempDir(), "P_Y")
	require.NoError(t, os.MkdirAll(project, 0o755))
	target := filepath.Join(t.TempDir(), "outside.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o600))
	if err := os.Symlink(target, filepath.Join(project, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(project, "real.txt"), []byte("r"), 0o600))

	dest := filepath.Join(t.TempDir(), "y.zip")
	st, err := Create(project, dest, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Files)
}

func TestCreateMissingProjectLeavesNothing(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "never.zip")
	_, err := Create(filepath.Join(t.TempDir(), "nope"), dest, nil)
	require.Error(t, err)
	assert.NoFileExists(t, dest)
}

func TestCreateEmptyProject(t *testing.T) {
	project := filepath.Join(t.TempDir(), "P_Z")
	require.NoError(t, os.MkdirAll(project, 0o755))
	dest := filepath.Join(t.TempDir(), "z.zip")
	st, err := Create(project, dest, nil)
	require.NoError(t, err)
	assert.Zero(t, st.Files)
	assert.Empty(t, entries(t, dest))
}
