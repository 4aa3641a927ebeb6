// Package checklist seeds and updates per-project handover checklists from a
// fixed template.
package checklist

import (
	"context"

	"go.uber.org/zap"

	"npitrack/internal/apperr"
	"npitrack/internal/models"
)

// Store is the persistence the manager needs.
type Store interface {
	SeedChecklist(ctx context.Context, projectID int64, items []models.ChecklistItem) (bool, error)
	ChecklistItems(ctx context.Context, projectID int64) ([]models.ChecklistItem, error)
	UpdateChecklistItem(ctx context.Context, itemID int64, completed bool, person, reference string) error
}

// Manager seeds and updates checklists against one template.
type Manager struct {
	store    Store
	template *Template
	log      *zap.Logger
}

// NewManager returns a Manager. A nil template means DefaultTemplate and a
// nil log discards output.
func NewManager(store Store, template *Template, log *zap.Logger) *Manager {
	if template == nil {
		template = DefaultTemplate()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: store, template: template, log: log.Named("checklist")}
}

func (m *Manager) Template() *Template { return m.template }

// Initialize seeds the project's checklist when it has none. Calling it again
// never adds, removes or resets items. seeded reports whether rows were written.
func (m *Manager) Initialize(ctx context.Context, projectID int64) (seeded bool, err error) {
	seeded, err = m.store.SeedChecklist(ctx, projectID, m.template.Items())
	if err != nil {
		return false, err
	}
	if seeded {
		m.log.Info("checklist seeded", zap.Int64("project_id", projectID), zap.Int("items", m.template.Len()))
	}
	return seeded, nil
}

// UpdateItem overwrites the completion flag, person and reference of an item.
// An unknown item id is logged and skipped; other failures are returned.
func (m *Manager) UpdateItem(ctx context.Context, itemID int64, completed bool, person, reference string) error {
	err := m.store.UpdateChecklistItem(ctx, itemID, completed, person, reference)
	if apperr.IsNotFound(err) {
		m.log.Warn("checklist item not found, update skipped", zap.Int64("item_id", itemID))
		return nil
	}
	return err
}

// Items returns the project's checklist in template order.
func (m *Manager) Items(ctx context.Context, projectID int64) ([]models.ChecklistItem, error) {
	return m.store.ChecklistItems(ctx, projectID)
}

// Progress counts completed items.
func Progress(items []models.ChecklistItem) (done, total int) {
	for _, it := range items {
		if it.Completed {
			done++
		}
	}
	return done, len(items)
}
