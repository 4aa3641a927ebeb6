package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"npitrack/internal/auth"
	"npitrack/internal/catalog"
	"npitrack/internal/checklist"
	"npitrack/internal/config"
	"npitrack/internal/handover"
	"npitrack/internal/logging"
	"npitrack/internal/metrics"
	"npitrack/internal/onboarding"
	"npitrack/internal/projectdir"
	"npitrack/internal/store"
	"npitrack/internal/websocket"
	"npitrack/internal/workbook"
)

// deps is everything a command needs, built from configuration.
type deps struct {
	cfg        *config.Config
	log        *zap.Logger
	store      *store.Store
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	unlocker   *auth.Unlocker
	layout     projectdir.Layout
	checklist  *checklist.Manager
	catalog    *catalog.Catalog
	importer   *catalog.Importer
	onboarding *onboarding.Service
	workbook   *workbook.Workbook
	assembler  *handover.Assembler
	hub        *websocket.Hub
}

func openDeps() (*deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	d := &deps{cfg: cfg, log: log, store: st}
	log.Debug("store opened", zap.String("path", st.Path()))

	tmpl := checklist.DefaultTemplate()
	if cfg.Checklist.TemplatePath != "" {
		if tmpl, err = checklist.LoadTemplate(cfg.Checklist.TemplatePath); err != nil {
			d.close()
			return nil, fmt.Errorf("checklist template: %w", err)
		}
	}
	if d.unlocker, err = auth.NewUnlocker(cfg.Security.UnlockHash); err != nil {
		d.close()
		return nil, err
	}

	d.registry = prometheus.NewRegistry()
	d.metrics = metrics.New(d.registry)
	d.layout = projectdir.Layout{Root: cfg.Projects.Root}
	d.checklist = checklist.NewManager(st, tmpl, log)
	d.catalog = catalog.New(st)
	d.importer = &catalog.Importer{Catalog: d.catalog, Metrics: d.metrics, Log: log}
	d.onboarding = &onboarding.Service{
		Store:     st,
		Checklist: d.checklist,
		Layout:    d.layout,
		Importer:  d.importer,
		Log:       log,
	}
	d.assembler = &handover.Assembler{
		Store:            st,
		Layout:           d.layout,
		Metrics:          d.metrics,
		Log:              log,
		ReportName:       cfg.Handover.ReportName,
		IncludeChecklist: !cfg.Handover.OmitChecklist,
	}
	if cfg.Workbook.Path != "" {
		d.workbook = &workbook.Workbook{
			Path:         cfg.Workbook.Path,
			ProductSheet: cfg.Workbook.ProductSheet,
			Excluded:     cfg.Workbook.ExcludedSheets,
		}
		d.assembler.BOM = d.workbook
	}
	d.hub = websocket.NewHub(log)
	return d, nil
}

func (d *deps) close() {
	if d.store != nil {
		d.store.Close()
	}
	_ = d.log.Sync()
}

// requireUnlock verifies the --unlock token before an edit.
func (d *deps) requireUnlock() error {
	return d.unlocker.Verify("cli", unlockToken)
}

// withDeps adapts a command body that needs deps into a cobra RunE.
func withDeps(fn func(cmd *cobra.Command, args []string, d *deps) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		d, err := openDeps()
		if err != nil {
			return err
		}
		defer d.close()
		return fn(cmd, args, d)
	}
}
