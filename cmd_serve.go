package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"npitrack/internal/handlers/npi"
	"npitrack/internal/server"
)

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.addr)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API, websocket progress events and metrics",
	Long: `Serve the JSON API under /api/v1, progress and change events on /ws,
Prometheus metrics on /metrics and a health check on /healthz.

Edits to project metadata, workflow and matrices, and project deletion, need
the X-Unlock-Token header.`,
	Args: cobra.NoArgs,
	RunE: withDeps(runServe),
}

func runServe(cmd *cobra.Command, _ []string, d *deps) error {
	addr := serveAddr
	if addr == "" {
		addr = d.cfg.Server.Addr
	}
	if !d.unlocker.Enabled() {
		d.log.Warn("no unlock hash configured, edits are disabled")
	}

	app := &server.App{
		NPI: &npi.Handler{
			Store:      d.store,
			Onboarding: d.onboarding,
			Checklist:  d.checklist,
			Catalog:    d.catalog,
			Assembler:  d.assembler,
			Workbook:   d.workbook,
			Hub:        d.hub,
			Log:        d.log,
		},
		Hub:      d.hub,
		Unlocker: d.unlocker,
		Health:   d.store,
		Metrics:  d.metrics,
		Gatherer: d.registry,
		Log:      d.log,
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := server.Serve(ctx, srv, d.cfg.Server.ShutdownTimeout, d.log); err != nil {
		d.log.Error("server stopped", zap.Error(err))
		return err
	}
	return nil
}
