// Package catalog records categorized supporting documents of a project.
//
// Catalog rows are metadata only. The Catalog never touches the file system;
// Importer is the caller-side loop that copies files into the project
// directory and then catalogs them.
package catalog

import (
	"context"

	"npitrack/internal/models"
	"npitrack/internal/validation"
)

// Store is the persistence the catalog needs.
type Store interface {
	AddDocument(ctx context.Context, projectID int64, category, path string) (int64, error)
	RemoveDocument(ctx context.Context, docID int64) (int64, error)
	RemoveDocumentsByPath(ctx context.Context, projectID int64, path string) (int64, error)
	Documents(ctx context.Context, projectID int64, category string) ([]models.Document, error)
}

// Catalog adds, removes and lists the document rows of projects.
type Catalog struct {
	store Store
}

// New returns a Catalog over store.
func New(store Store) *Catalog {
	return &Catalog{store: store}
}

// Add appends a row. category accepts any spelling ParseCategory accepts and is
// stored in canonical form. Adding the same path twice yields two rows.
func (c *Catalog) Add(ctx context.Context, projectID int64, category, relPath string) (models.Document, error) {
	ve := &validation.ValidationErrors{}
	cat := validation.ValidateCategory(ve, category)
	validation.RequireField(ve, "path", relPath)
	if ve.HasErrors() {
		return models.Document{}, ve
	}
	id, err := c.store.AddDocument(ctx, projectID, cat, relPath)
	if err != nil {
		return models.Document{}, err
	}
	return models.Document{ID: id, ProjectID: projectID, Category: cat, Path: relPath}, nil
}

// Remove deletes one row by id and reports whether it existed.
func (c *Catalog) Remove(ctx context.Context, docID int64) (bool, error) {
	n, err := c.store.RemoveDocument(ctx, docID)
	return n > 0, err
}

// RemoveByPath deletes every row of the project with exactly this path.
func (c *Catalog) RemoveByPath(ctx context.Context, projectID int64, path string) (int64, error) {
	return c.store.RemoveDocumentsByPath(ctx, projectID, path)
}

// List returns the project's rows, optionally restricted to one category.
func (c *Catalog) List(ctx context.Context, projectID int64, category string) ([]models.Document, error) {
	if category != "" {
		ve := &validation.ValidationErrors{}
		category = validation.ValidateCategory(ve, category)
		if ve.HasErrors() {
			return nil, ve
		}
	}
	return c.store.Documents(ctx, projectID, category)
}

// Group is the files of one category.
type Group struct {
	Category string   `json:"category"`
	Files    []string `json:"files"`
}

// GroupByCategory folds rows into per-category file lists, keeping the
// category order of the input.
func GroupByCategory(docs []models.Document) []Group {
	var groups []Group
	index := map[string]int{}
	for _, d := range docs {
		i, ok := index[d.Category]
		if !ok {
			i = len(groups)
			index[d.Category] = i
			groups = append(groups, Group{Category: d.Category})
		}
		groups[i].Files = append(groups[i].Files, d.Path)
	}
	return groups
}
