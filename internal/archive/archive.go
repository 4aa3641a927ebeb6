// Package archive packs a project directory into a deflate zip whose top-level
// directory is the project directory's own name.
package archive

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"npitrack/internal/models"
)

// Stats summarizes a written archive.
type Stats struct {
	Files int
	Bytes int64
}

// Create writes every regular file below projectDir into a zip at dest. Entry
// names are relative to the parent of projectDir and use forward slashes, so
// "Projects/Widgets_Widget-A/SOP/a.pdf" is stored as "Widgets_Widget-A/SOP/a.pdf".
// dest itself is skipped when it lies inside projectDir. The archive is written
// to a temporary file and renamed into place, so a failed run leaves no
// partial archive behind.
func Create(projectDir, dest string, progress models.ProgressFunc) (Stats, error) {
	var st Stats
	info, err := os.Stat(projectDir)
	if err != nil {
		return st, fmt.Errorf("archive: project directory: %w", err)
	}
	if !info.IsDir() {
		return st, fmt.Errorf("archive: %s is not a directory", projectDir)
	}

	absProject, err := filepath.Abs(projectDir)
	if err != nil {
		return st, fmt.Errorf("archive: %w", err)
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return st, fmt.Errorf("archive: %w", err)
	}
	base := filepath.Dir(absProject)

	files, err := collect(absProject, absDest)
	if err != nil {
		return st, err
	}

	if err := os.MkdirAll(filepath.Dir(absDest), 0o755); err != nil {
		return st, fmt.Errorf("archive: create destination directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(absDest), ".npitrack-archive-*")
	if err != nil {
		return st, fmt.Errorf("archive: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	zw := zip.NewWriter(tmp)
	for i, path := range files {
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return st, fmt.Errorf("archive: %s: %w", path, err)
		}
		n, err := addFile(zw, path, filepath.ToSlash(rel))
		if err != nil {
			return st, fmt.Errorf("archive: add %s: %w", rel, err)
		}
		st.Files++
		st.Bytes += n
		progress.Emit(models.ProgressEvent{Op: "archive", Step: filepath.ToSlash(rel), Done: i + 1, Total: len(files)})
	}
	if err := zw.Close(); err != nil {
		return st, fmt.Errorf("archive: finalize: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return st, fmt.Errorf("archive: close: %w", err)
	}
	if err := os.Rename(tmpName, absDest); err != nil {
		return st, fmt.Errorf("archive: move into place: %w", err)
	}
	ok = true
	return st, nil
}

// collect lists regular files in walk order, skipping skip and any leftover
// temp archives.
func collect(root, skip string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || path == skip {
			return nil
		}
		if matched, _ := filepath.Match(".npitrack-archive-*", d.Name()); matched {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: walk %s: %w", root, err)
	}
	return files, nil
}

func addFile(zw *zip.Writer, path, name string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return 0, err
	}
	return io.Copy(w, f)
}
