package checklist

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"npitrack/internal/models"
)

//go:embed default_template.yaml
var defaultTemplate []byte

// Entry is one template line: the item name and its default person.
// Seeded items always start Pending with an empty reference.
type Entry struct {
	Name   string `yaml:"name" json:"name"`
	Person string `yaml:"person" json:"person"`
}

// Template is the ordered, immutable list of checklist entries.
type Template struct {
	entries []Entry
}

type templateFile struct {
	Items []Entry `yaml:"items"`
}

// DefaultTemplate returns the built-in 42-item handover checklist.
func DefaultTemplate() *Template {
	t, err := ParseTemplate(defaultTemplate)
	if err != nil {
		panic(fmt.Sprintf("checklist: embedded template is invalid: %v", err))
	}
	return t
}

// LoadTemplate reads a template file, or returns the built-in template when
// path is empty.
func LoadTemplate(path string) (*Template, error) {
	if path == "" {
		return DefaultTemplate(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checklist template: %w", err)
	}
	t, err := ParseTemplate(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ParseTemplate decodes YAML of the form `items: [{name, person}]`. Names must
// be non-empty and unique.
func ParseTemplate(data []byte) (*Template, error) {
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse checklist template: %w", err)
	}
	if len(f.Items) == 0 {
		return nil, fmt.Errorf("checklist template has no items")
	}
	seen := make(map[string]int, len(f.Items))
	for i := range f.Items {
		f.Items[i].Name = strings.TrimSpace(f.Items[i].Name)
		f.Items[i].Person = strings.TrimSpace(f.Items[i].Person)
		name := f.Items[i].Name
		if name == "" {
			return nil, fmt.Errorf("checklist template item %d has no name", i+1)
		}
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("checklist template item %d duplicates item %d (%q)", i+1, prev, name)
		}
		seen[name] = i + 1
	}
	return &Template{entries: f.Items}, nil
}

func (t *Template) Len() int { return len(t.entries) }

// Entries returns a copy of the template entries in order.
func (t *Template) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Items expands the template into unsaved checklist items.
func (t *Template) Items() []models.ChecklistItem {
	items := make([]models.ChecklistItem, len(t.entries))
	for i, e := range t.entries {
		items[i] = models.ChecklistItem{Name: e.Name, Person: e.Person, Seq: i + 1}
	}
	return items
}
