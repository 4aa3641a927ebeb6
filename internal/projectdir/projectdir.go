// Package projectdir maps projects onto their directory under the Projects
// root: <root>/<product>_<project> with spaces replaced by underscores.
package projectdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Layout resolves project directories below Root.
type Layout struct {
	Root string
}

// Name is the directory name of a project, without the root.
func Name(product, project string) string {
	return strings.ReplaceAll(product+"_"+project, " ", "_")
}

// Dir returns the project directory path. It does not touch the file system.
func (l Layout) Dir(product, project string) string {
	return filepath.Join(l.Root, Name(product, project))
}

// Ensure creates the project directory if needed and returns its path.
func (l Layout) Ensure(product, project string) (string, error) {
	name := Name(product, project)
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("project directory name %q is not a single path element", name)
	}
	dir := filepath.Join(l.Root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create project directory: %w", err)
	}
	return dir, nil
}

// Find locates the directory of project below Root when its product is not
// known. Exactly one <product>_<project> directory must match; the product is
// taken from the directory name, with underscores in place of spaces.
func (l Layout) Find(project string) (product, dir string, err error) {
	suffix := "_" + strings.ReplaceAll(project, " ", "_")
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		return "", "", fmt.Errorf("find project directory: %w", err)
	}
	var matches []string
	for _, e := range entries {
		if e.IsDir() && len(e.Name()) > len(suffix) && strings.HasSuffix(e.Name(), suffix) {
			matches = append(matches, e.Name())
		}
	}
	switch len(matches) {
	case 0:
		return "", "", fmt.Errorf("no directory for project %q under %s", project, l.Root)
	case 1:
		return strings.TrimSuffix(matches[0], suffix), filepath.Join(l.Root, matches[0]), nil
	}
	return "", "", fmt.Errorf("project %q matches %d directories under %s", project, len(matches), l.Root)
}

// Contains reports whether path lies strictly below Root once both are made
// absolute and cleaned.
func (l Layout) Contains(path string) bool {
	root, err := filepath.Abs(l.Root)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Rel expresses path relative to the project directory with forward slashes.
// Paths outside the directory are returned unchanged.
func Rel(projectDir, path string) string {
	rel, err := filepath.Rel(projectDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(rel)
}
