// Package handover assembles the handover package of a project: an optional
// BOM export, the PDF report and the zip archive of the project directory.
//
// The three steps are guarded independently. A BOM export failure only warns,
// a report failure warns and the archive is still attempted, and an archive
// failure ends the run with an error. Nothing is retried and no persisted
// state is modified.
package handover

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"npitrack/internal/apperr"
	"npitrack/internal/archive"
	"npitrack/internal/catalog"
	"npitrack/internal/metrics"
	"npitrack/internal/models"
	"npitrack/internal/projectdir"
	"npitrack/internal/report"
)

// Store is the read-only view of the entity store the assembler needs.
type Store interface {
	GetProject(ctx context.Context, name string) (*models.Project, error)
	Workflow(ctx context.Context, projectID int64) (*models.Workflow, error)
	Matrix(ctx context.Context, projectID int64, kind models.MatrixKind) ([]models.MatrixPair, error)
	Documents(ctx context.Context, projectID int64, category string) ([]models.Document, error)
	ChecklistItems(ctx context.Context, projectID int64) ([]models.ChecklistItem, error)
}

// BOMExporter writes one workbook sheet as a standalone file.
type BOMExporter interface {
	ExportSheet(sheet, dest string) error
}

// Pipeline step names, used in warnings, progress events and metrics.
const (
	StepBOM     = "bom_export"
	StepReport  = "report"
	StepArchive = "archive"
)

// Document summary sources.
const (
	SourceCatalog  = "catalog"
	SourceFallback = "fallback"
)

// Request selects what to assemble.
type Request struct {
	Project string
	// BOMSheet, when set, is exported to <projectDir>/<BOMSheet>.xlsx first.
	BOMSheet string
	// ArchivePath defaults to Handover_<dir>_<timestamp>.zip next to the
	// project directory.
	ArchivePath string
	// Documents is the caller's current view of the document lists. It is
	// used for the report only when the catalog cannot be read.
	Documents []report.DocumentGroup
	// Snapshot lets the package be built when the store cannot resolve the
	// project: the report then shows only the snapshot and Documents.
	Snapshot *Snapshot
	Progress models.ProgressFunc
}

// Snapshot is the caller's own record of a project.
type Snapshot struct {
	Product string
	Name    string
	Dir     string
}

// StepProject names the warning recorded when the store cannot resolve the
// project and the caller's snapshot is used instead.
const StepProject = "project"

// StepWarning is a best-effort step that failed without ending the run.
type StepWarning struct {
	Step string
	Err  error
}

func (w *StepWarning) Error() string { return w.Step + ": " + w.Err.Error() }
func (w *StepWarning) Unwrap() error { return w.Err }

// Result describes one run. It is returned even when the archive step fails.
type Result struct {
	RunID           string
	ProjectDir      string
	BOMPath         string
	ReportPath      string
	ArchivePath     string
	Archive         archive.Stats
	ArchiveSize     string
	DocumentsSource string
	Warnings        []*StepWarning
	Duration        time.Duration
}

// Assembler runs the handover pipeline.
type Assembler struct {
	Store            Store
	Layout           projectdir.Layout
	BOM              BOMExporter
	Metrics          *metrics.Metrics
	Log              *zap.Logger
	ReportName       string
	IncludeChecklist bool
	Now              func() time.Time
}

func (a *Assembler) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// DefaultArchiveName is Handover_<dirName>_<YYYYmmdd_HHMMSS>.zip.
func DefaultArchiveName(dirName string, at time.Time) string {
	return fmt.Sprintf("Handover_%s_%s.zip", dirName, at.Format("20060102_150405"))
}

// Assemble runs BOM export, report and archive for req.Project. The returned
// error is non-nil only when neither the store nor req.Snapshot resolves the
// project, or when the archive step fails; best-effort failures are listed in Result.Warnings.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Result, error) {
	start := a.now()
	res := &Result{RunID: uuid.NewString()}
	log := a.logger().With(zap.String("run_id", res.RunID), zap.String("project", req.Project))
	defer func() {
		res.Duration = a.now().Sub(start)
		if a.Metrics != nil {
			a.Metrics.HandoverDuration.Observe(res.Duration.Seconds())
		}
	}()

	p, dir, lookupErr, err := a.resolve(ctx, req)
	if err != nil {
		return res, fmt.Errorf("handover %s: %w", req.Project, err)
	}
	resolved := lookupErr == nil
	if !resolved {
		res.Warnings = append(res.Warnings, &StepWarning{Step: StepProject, Err: lookupErr})
		log.Warn("project not resolvable in store, using caller snapshot", zap.String("dir", dir), zap.Error(lookupErr))
	}
	res.ProjectDir = dir
	const total = 3

	// 1. optional BOM export
	if req.BOMSheet != "" {
		dest := filepath.Join(dir, req.BOMSheet+".xlsx")
		err := a.exportBOM(req.BOMSheet, dest)
		a.Metrics.Step(StepBOM, err)
		if err != nil {
			res.Warnings = append(res.Warnings, &StepWarning{Step: StepBOM, Err: err})
			log.Warn("BOM export failed, continuing", zap.String("sheet", req.BOMSheet), zap.Error(err))
		} else {
			res.BOMPath = dest
			log.Info("BOM exported", zap.String("path", dest))
		}
	}
	req.Progress.Emit(models.ProgressEvent{Op: "handover", Step: StepBOM, Done: 1, Total: total})

	// 2. report
	reportPath := filepath.Join(dir, a.reportName())
	var (
		in     report.HandoverInput
		source = SourceFallback
		warns  []*StepWarning
	)
	if resolved {
		in, source, warns = a.gather(ctx, p, req.Documents)
	} else {
		in = report.HandoverInput{Project: *p, Documents: req.Documents}
	}
	res.DocumentsSource = source
	for _, w := range warns {
		res.Warnings = append(res.Warnings, w)
		log.Warn("report data degraded", zap.String("part", w.Step), zap.Error(w.Err))
	}
	in.Generated = a.now()
	err = report.WriteFile(report.Handover(in), reportPath)
	a.Metrics.Step(StepReport, err)
	if err != nil {
		res.Warnings = append(res.Warnings, &StepWarning{Step: StepReport, Err: err})
		log.Warn("report generation failed, continuing with archive", zap.Error(err))
	} else {
		res.ReportPath = reportPath
		log.Info("report written", zap.String("path", reportPath), zap.String("documents_source", source))
	}
	req.Progress.Emit(models.ProgressEvent{Op: "handover", Step: StepReport, Done: 2, Total: total})

	// 3. archive
	dest := req.ArchivePath
	if dest == "" {
		dest = filepath.Join(filepath.Dir(dir), DefaultArchiveName(filepath.Base(dir), a.now()))
	}
	st, err := archive.Create(dir, dest, req.Progress)
	a.Metrics.Step(StepArchive, err)
	if err != nil {
		log.Error("archive creation failed", zap.String("dest", dest), zap.Error(err))
		return res, fmt.Errorf("handover %s: %s failed (dest %s): %w", req.Project, StepArchive, dest, err)
	}
	res.ArchivePath = dest
	res.Archive = st
	if info, err := os.Stat(dest); err == nil {
		res.ArchiveSize = humanize.Bytes(uint64(info.Size()))
		if a.Metrics != nil {
			a.Metrics.ArchiveBytes.Set(float64(info.Size()))
		}
	}
	req.Progress.Emit(models.ProgressEvent{Op: "handover", Step: StepArchive, Done: 3, Total: total})

	log.Info("handover package created",
		zap.String("archive", dest), zap.Int("files", st.Files),
		zap.String("size", res.ArchiveSize), zap.Int("warnings", len(res.Warnings)))
	return res, nil
}

// LocalView builds a Snapshot and a document view of project from the
// Projects tree alone: the project's directory and the files in its category
// folders.
func LocalView(l projectdir.Layout, project string) (*Snapshot, []report.DocumentGroup, error) {
	product, dir, err := l.Find(project)
	if err != nil {
		return nil, nil, err
	}
	groups, err := catalog.ScanFolders(dir)
	if err != nil {
		return nil, nil, err
	}
	docs := make([]report.DocumentGroup, len(groups))
	for i, g := range groups {
		docs[i] = report.DocumentGroup{Category: g.Category, Files: g.Files}
	}
	return &Snapshot{Product: product, Name: project, Dir: dir}, docs, nil
}

// resolve finds the project and its directory, from the store when it can
// and from req.Snapshot otherwise. lookupErr is the store failure that made
// the snapshot necessary; err is set when neither source works.
func (a *Assembler) resolve(ctx context.Context, req Request) (p *models.Project, dir string, lookupErr, err error) {
	p, lookupErr = a.Store.GetProject(ctx, req.Project)
	if lookupErr == nil {
		dir, err = a.Layout.Ensure(p.Product, p.Name)
		return p, dir, nil, err
	}
	snap := req.Snapshot
	if snap == nil || snap.Dir == "" {
		return nil, "", lookupErr, lookupErr
	}
	if info, statErr := os.Stat(snap.Dir); statErr != nil || !info.IsDir() {
		return nil, "", lookupErr, lookupErr
	}
	return &models.Project{Product: snap.Product, Name: snap.Name}, snap.Dir, lookupErr, nil
}

func (a *Assembler) exportBOM(sheet, dest string) error {
	if a.BOM == nil {
		return &apperr.ExternalSourceError{Source: "workbook", Sheet: sheet, Err: errors.New("no workbook configured")}
	}
	return a.BOM.ExportSheet(sheet, dest)
}

// gather reads the report inputs. Read failures degrade the matching section
// instead of failing the report. Documents come from the catalog first and
// from fallback when the catalog cannot be read.
func (a *Assembler) gather(ctx context.Context, p *models.Project, fallback []report.DocumentGroup) (report.HandoverInput, string, []*StepWarning) {
	in := report.HandoverInput{Project: *p, IncludeChecklist: a.IncludeChecklist}
	var warns []*StepWarning
	degrade := func(part string, err error) {
		warns = append(warns, &StepWarning{Step: StepReport + "/" + part, Err: err})
	}

	wf, err := a.Store.Workflow(ctx, p.ID)
	switch {
	case err == nil:
		in.Workflow = wf
	case !apperr.IsNotFound(err):
		degrade("workflow", err)
	}

	if in.Build, err = a.Store.Matrix(ctx, p.ID, models.MatrixBuild); err != nil {
		degrade("build_matrix", err)
	}
	if in.Machine, err = a.Store.Matrix(ctx, p.ID, models.MatrixMachine); err != nil {
		degrade("machine_matrix", err)
	}
	if a.IncludeChecklist {
		if in.Checklist, err = a.Store.ChecklistItems(ctx, p.ID); err != nil {
			degrade("checklist", err)
		}
	}

	source := SourceCatalog
	docs, err := a.Store.Documents(ctx, p.ID, "")
	if err != nil {
		degrade("documents", err)
		source = SourceFallback
		in.Documents = fallback
	} else {
		for _, g := range catalog.GroupByCategory(docs) {
			in.Documents = append(in.Documents, report.DocumentGroup{Category: g.Category, Files: g.Files})
		}
	}
	return in, source, warns
}

func (a *Assembler) reportName() string {
	if a.ReportName == "" {
		return "Project_Report.pdf"
	}
	return a.ReportName
}

func (a *Assembler) logger() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}
