// Package onboarding brings a project into the tracker: creation, the explicit
// seeding of its workflow, matrices and checklist, and intake of files into
// its directory.
//
// The seeding sequence is not atomic across steps. A failure leaves the steps
// before it in place; running Onboard again with the same input converges
// because every step is a replace or a seed-once.
package onboarding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"npitrack/internal/apperr"
	"npitrack/internal/catalog"
	"npitrack/internal/models"
	"npitrack/internal/projectdir"
	"npitrack/internal/validation"
)

// Store is the persistence onboarding writes through.
type Store interface {
	CreateProject(ctx context.Context, product, name string, f models.ProjectFields) (int64, bool, error)
	GetProject(ctx context.Context, name string) (*models.Project, error)
	SaveWorkflow(ctx context.Context, wf models.Workflow) error
	ReplaceMatrix(ctx context.Context, projectID int64, kind models.MatrixKind, pairs []models.MatrixPair) error
	Matrix(ctx context.Context, projectID int64, kind models.MatrixKind) ([]models.MatrixPair, error)
}

// Checklist seeds a project checklist once.
type Checklist interface {
	Initialize(ctx context.Context, projectID int64) (bool, error)
}

// Service creates and onboards projects and imports their files.
type Service struct {
	Store     Store
	Checklist Checklist
	Layout    projectdir.Layout
	Importer  *catalog.Importer
	Log       *zap.Logger
}

// NewProject is the input of Onboard. Nil matrices and a nil workflow are left
// untouched; an empty non-nil matrix clears that kind.
type NewProject struct {
	Product  string               `json:"product" yaml:"product"`
	Name     string               `json:"name" yaml:"name"`
	Fields   models.ProjectFields `json:"fields" yaml:"fields"`
	Workflow *models.Workflow     `json:"workflow,omitempty" yaml:"workflow"`
	Assembly []models.MatrixPair  `json:"assembly,omitempty" yaml:"assembly"`
	Build    []models.MatrixPair  `json:"build,omitempty" yaml:"build"`
	Machine  []models.MatrixPair  `json:"machine,omitempty" yaml:"machine"`
}

// Outcome reports what Onboard did.
type Outcome struct {
	ProjectID int64  `json:"project_id"`
	Created   bool   `json:"created"`
	Seeded    bool   `json:"checklist_seeded"`
	Dir       string `json:"dir"`
}

// StepError names the seeding step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return "onboarding step " + e.Step + ": " + e.Err.Error() }
func (e *StepError) Unwrap() error { return e.Err }

// Onboard creates the project if needed and then runs each seeding step
// explicitly: directory, workflow, the three matrices, checklist.
func (s *Service) Onboard(ctx context.Context, np NewProject) (*Outcome, error) {
	ve := &validation.ValidationErrors{}
	validation.ValidateName(ve, "product", np.Product)
	validation.ValidateName(ve, "name", np.Name)
	validation.ValidateProjectFields(ve, np.Fields)
	if np.Workflow != nil {
		validation.ValidateWorkflow(ve, *np.Workflow)
	}
	for kind, pairs := range np.matrices() {
		if pairs != nil {
			validation.ValidateMatrix(ve, string(kind), pairs)
		}
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}

	id, created, err := s.Store.CreateProject(ctx, np.Product, np.Name, np.Fields)
	if err != nil {
		return nil, &StepError{Step: "create", Err: err}
	}
	out := &Outcome{ProjectID: id, Created: created}
	log := s.logger().With(zap.String("project", np.Name), zap.Int64("project_id", id))
	if !created {
		log.Info("project already exists, seeding children only")
	}

	if out.Dir, err = s.Layout.Ensure(np.Product, np.Name); err != nil {
		return out, &StepError{Step: "directory", Err: err}
	}

	if np.Workflow != nil {
		wf := *np.Workflow
		wf.ProjectID = id
		if err := s.Store.SaveWorkflow(ctx, wf); err != nil {
			return out, &StepError{Step: "workflow", Err: err}
		}
	}

	for _, kind := range models.MatrixKinds {
		pairs := np.matrices()[kind]
		if pairs == nil {
			continue
		}
		if err := s.Store.ReplaceMatrix(ctx, id, kind, pairs); err != nil {
			return out, &StepError{Step: string(kind) + "_matrix", Err: err}
		}
	}

	if out.Seeded, err = s.Checklist.Initialize(ctx, id); err != nil {
		return out, &StepError{Step: "checklist", Err: err}
	}

	log.Info("project onboarded", zap.Bool("created", created), zap.Bool("checklist_seeded", out.Seeded))
	return out, nil
}

func (np NewProject) matrices() map[models.MatrixKind][]models.MatrixPair {
	return map[models.MatrixKind][]models.MatrixPair{
		models.MatrixAssembly: np.Assembly,
		models.MatrixBuild:    np.Build,
		models.MatrixMachine:  np.Machine,
	}
}

// ProjectDir resolves a project by name and ensures its directory exists.
func (s *Service) ProjectDir(ctx context.Context, name string) (*models.Project, string, error) {
	p, err := s.Store.GetProject(ctx, name)
	if err != nil {
		return nil, "", err
	}
	dir, err := s.Layout.Ensure(p.Product, p.Name)
	if err != nil {
		return nil, "", err
	}
	return p, dir, nil
}

// ImportDocuments copies sources into the project's category folder and
// catalogs them. Per-file copy failures are in the result.
func (s *Service) ImportDocuments(ctx context.Context, project, category string, sources []string, progress models.ProgressFunc) (*catalog.ImportResult, error) {
	p, dir, err := s.ProjectDir(ctx, project)
	if err != nil {
		return nil, err
	}
	return s.Importer.Import(ctx, p.ID, dir, category, sources, progress)
}

// AddDrawings copies assembly drawings into the project and appends one
// (path, file name) row per copied drawing to the assembly matrix.
func (s *Service) AddDrawings(ctx context.Context, project string, sources []string, progress models.ProgressFunc) ([]models.MatrixPair, []*apperr.FileCopyError, error) {
	p, dir, err := s.ProjectDir(ctx, project)
	if err != nil {
		return nil, nil, err
	}
	added, failed := s.Importer.CopyDrawings(dir, sources, progress)
	if len(added) == 0 {
		return added, failed, nil
	}
	existing, err := s.Store.Matrix(ctx, p.ID, models.MatrixAssembly)
	if err != nil {
		return nil, failed, err
	}
	if err := s.Store.ReplaceMatrix(ctx, p.ID, models.MatrixAssembly, append(existing, added...)); err != nil {
		return nil, failed, fmt.Errorf("append drawings: %w", err)
	}
	return added, failed, nil
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
