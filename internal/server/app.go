package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"npitrack/internal/auth"
	"npitrack/internal/handlers/npi"
	"npitrack/internal/metrics"
	"npitrack/internal/response"
	"npitrack/internal/websocket"
)

// Health reports the schema version of the open store.
type Health interface {
	SchemaVersion(ctx context.Context) (int, error)
}

// App holds shared dependencies for the HTTP surface.
type App struct {
	NPI      *npi.Handler
	Hub      *websocket.Hub
	Unlocker *auth.Unlocker
	Health   Health
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
}

// Routes builds the HTTP handler. Edits to project metadata, workflow and
// matrices and project deletion require the unlock token.
func (a *App) Routes() http.Handler {
	log := a.Log
	if log == nil {
		log = zap.NewNop()
	}
	h := a.NPI
	unlock := RequireUnlock(a.Unlocker, log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.healthz)
	if a.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(a.Gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.HandleWebSocket(a.Hub, w, r)
	})

	mux.HandleFunc("GET /api/v1/products", h.ListProducts)
	mux.HandleFunc("GET /api/v1/products/{product}/projects", h.ListProjects)

	mux.HandleFunc("POST /api/v1/projects", h.CreateProject)
	mux.HandleFunc("GET /api/v1/projects/{name}", h.GetProject)
	mux.HandleFunc("PUT /api/v1/projects/{name}", unlock(h.UpdateProject))
	mux.HandleFunc("DELETE /api/v1/projects/{name}", unlock(h.DeleteProject))

	mux.HandleFunc("GET /api/v1/projects/{name}/workflow", h.GetWorkflow)
	mux.HandleFunc("PUT /api/v1/projects/{name}/workflow", unlock(h.SaveWorkflow))
	mux.HandleFunc("GET /api/v1/projects/{name}/matrix/{kind}", h.GetMatrix)
	mux.HandleFunc("PUT /api/v1/projects/{name}/matrix/{kind}", unlock(h.ReplaceMatrix))
	mux.HandleFunc("POST /api/v1/projects/{name}/drawings", unlock(h.AddDrawings))

	mux.HandleFunc("GET /api/v1/projects/{name}/checklist", h.GetChecklist)
	mux.HandleFunc("POST /api/v1/projects/{name}/checklist", h.InitChecklist)
	mux.HandleFunc("GET /api/v1/projects/{name}/checklist.pdf", h.ChecklistPDF)
	mux.HandleFunc("PATCH /api/v1/checklist/{id}", h.UpdateChecklistItem)

	mux.HandleFunc("GET /api/v1/projects/{name}/documents", h.ListDocuments)
	mux.HandleFunc("GET /api/v1/projects/{name}/documents.pdf", h.DocumentsPDF)
	mux.HandleFunc("POST /api/v1/projects/{name}/documents", h.ImportDocuments)
	mux.HandleFunc("DELETE /api/v1/projects/{name}/documents", h.RemoveDocumentsByPath)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.RemoveDocument)

	mux.HandleFunc("GET /api/v1/bom/sheets", h.BOMSheets)
	mux.HandleFunc("GET /api/v1/bom/sheets/{sheet}", h.BOMSheet)
	mux.HandleFunc("POST /api/v1/bom/import", h.ImportBOM)
	mux.HandleFunc("POST /api/v1/projects/{name}/handover", h.Handover)

	return LoggingMiddleware(log, a.Metrics)(SecurityHeaders(GzipMiddleware(mux)))
}

func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{"status": "ok", "edits_enabled": a.Unlocker.Enabled()}
	if a.Health != nil {
		v, err := a.Health.SchemaVersion(r.Context())
		if err != nil {
			response.Err(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		status["schema_version"] = v
	}
	if a.Hub != nil {
		status["ws_clients"] = a.Hub.Clients()
	}
	response.JSON(w, status)
}

// Serve runs srv until ctx is done, then shuts it down within timeout.
func Serve(ctx context.Context, srv *http.Server, timeout time.Duration, log *zap.Logger) error {
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", timeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
