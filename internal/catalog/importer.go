package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"npitrack/internal/apperr"
	"npitrack/internal/metrics"
	"npitrack/internal/models"
	"npitrack/internal/projectdir"
	"npitrack/internal/validation"
)

// DrawingsFolder holds assembly drawings inside a project directory.
const DrawingsFolder = "Assembly_Drawings"

// ImportResult reports one batch. Failed holds one FileCopyError per file that
// could not be copied; the rest of the batch still ran.
type ImportResult struct {
	Added  []models.Document
	Failed []*apperr.FileCopyError
}

// Importer copies files into a project directory and catalogs them.
type Importer struct {
	Catalog *Catalog
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

// Import copies each source into <projectDir>/<Category_Folder>/ under its
// sanitized file name and catalogs the copy under its path relative to
// projectDir. A failed copy is recorded
// and the loop moves on; a catalog failure aborts the batch. progress is
// called after every file.
func (im *Importer) Import(ctx context.Context, projectID int64, projectDir, category string, sources []string, progress models.ProgressFunc) (*ImportResult, error) {
	ve := &validation.ValidationErrors{}
	cat := validation.ValidateCategory(ve, category)
	if err := ve.Err(); err != nil {
		return nil, err
	}
	destDir := filepath.Join(projectDir, models.CategoryFolder(cat))
	res := &ImportResult{}

	for i, src := range sources {
		dest := filepath.Join(destDir, validation.SanitizeFilename(src))
		if err := copyFile(src, dest); err != nil {
			fe := &apperr.FileCopyError{Source: src, Dest: dest, Err: err}
			res.Failed = append(res.Failed, fe)
			im.Metrics.Copy(err)
			im.logger().Warn("document copy failed", zap.String("source", src), zap.Error(err))
		} else {
			im.Metrics.Copy(nil)
			doc, err := im.Catalog.Add(ctx, projectID, cat, projectdir.Rel(projectDir, dest))
			if err != nil {
				return res, fmt.Errorf("catalog %s: %w", filepath.Base(src), err)
			}
			res.Added = append(res.Added, doc)
		}
		progress.Emit(models.ProgressEvent{Op: "import", Step: filepath.Base(src), Done: i + 1, Total: len(sources)})
	}

	im.logger().Info("documents imported",
		zap.Int64("project_id", projectID), zap.String("category", cat),
		zap.Int("added", len(res.Added)), zap.Int("failed", len(res.Failed)))
	return res, nil
}

// CopyDrawings copies assembly drawings into <projectDir>/Assembly_Drawings/
// and returns one matrix pair (relative path, file name) per copied file.
func (im *Importer) CopyDrawings(projectDir string, sources []string, progress models.ProgressFunc) ([]models.MatrixPair, []*apperr.FileCopyError) {
	destDir := filepath.Join(projectDir, DrawingsFolder)
	var pairs []models.MatrixPair
	var failed []*apperr.FileCopyError
	for i, src := range sources {
		name := validation.SanitizeFilename(src)
		dest := filepath.Join(destDir, name)
		if err := copyFile(src, dest); err != nil {
			failed = append(failed, &apperr.FileCopyError{Source: src, Dest: dest, Err: err})
			im.Metrics.Copy(err)
		} else {
			im.Metrics.Copy(nil)
			pairs = append(pairs, models.MatrixPair{A: projectdir.Rel(projectDir, dest), B: name})
		}
		progress.Emit(models.ProgressEvent{Op: "drawings", Step: name, Done: i + 1, Total: len(sources)})
	}
	return pairs, failed
}

// ScanFolders lists the regular files in each category folder of projectDir,
// in category order, as paths relative to projectDir. It is the on-disk view
// of a project's documents and does not consult the catalog.
func ScanFolders(projectDir string) ([]Group, error) {
	var groups []Group
	for _, c := range models.Categories {
		folder := models.CategoryFolder(c)
		entries, err := os.ReadDir(filepath.Join(projectDir, folder))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", folder, err)
		}
		g := Group{Category: c}
		for _, e := range entries {
			if e.Type().IsRegular() {
				g.Files = append(g.Files, folder+"/"+e.Name())
			}
		}
		if len(g.Files) > 0 {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

func (im *Importer) logger() *zap.Logger {
	if im.Log == nil {
		return zap.NewNop()
	}
	return im.Log
}

// copyFile copies src to dest, creating dest's directory. An existing dest is
// overwritten.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
