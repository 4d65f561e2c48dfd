package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"enforcement-platform/internal/services"
	"enforcement-platform/pkg/logging"
	"enforcement-platform/pkg/metrics"
)

// ImportHandler handles the upload, status and admin endpoints
type ImportHandler struct {
	baseHandler
	imports *services.ImportService
}

// NewImportHandler creates a new import handler
func NewImportHandler(
	importService *services.ImportService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *ImportHandler {
	return &ImportHandler{
		baseHandler: baseHandler{logger: logger, metrics: metricsCollector},
		imports:     importService,
	}
}

// ImportCrashFile handles POST /api/v1/import/crash
func (h *ImportHandler) ImportCrashFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/v1/import/crash").Observe(duration.Seconds())
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.sendError(w, r, "缺少上傳檔案", http.StatusBadRequest)
		return
	}
	defer file.Close()

	result, err := h.imports.ImportCrashes(ctx, file, header.Filename)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/import/crash", "failed to import crash file", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/import/crash", "POST", "200")
	h.sendJSON(w, result, http.StatusOK)
}

// ImportTicketFile handles POST /api/v1/import/ticket
func (h *ImportHandler) ImportTicketFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/v1/import/ticket").Observe(duration.Seconds())
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.sendError(w, r, "缺少上傳檔案", http.StatusBadRequest)
		return
	}
	defer file.Close()

	result, err := h.imports.ImportTickets(ctx, file, header.Filename)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/import/ticket", "failed to import ticket file", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/import/ticket", "POST", "200")
	h.sendJSON(w, result, http.StatusOK)
}

// ImportStatus handles GET /api/v1/import/status
func (h *ImportHandler) ImportStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := h.imports.ImportStatus(ctx)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/import/status", "failed to load import status", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/import/status", "GET", "200")
	h.sendJSON(w, status, http.StatusOK)
}

// ResetDatabase handles POST /api/v1/admin/reset-database
func (h *ImportHandler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.imports.Reset(ctx); err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/admin/reset-database", "failed to reset database", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/admin/reset-database", "POST", "200")
	h.sendJSON(w, map[string]string{
		"status":  "success",
		"message": "資料庫已重置",
	}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *ImportHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// RegisterRoutes registers the import, admin and health routes
func (h *ImportHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/import/crash", h.ImportCrashFile).Methods("POST")
	router.HandleFunc("/api/v1/import/ticket", h.ImportTicketFile).Methods("POST")
	router.HandleFunc("/api/v1/import/status", h.ImportStatus).Methods("GET")
	router.HandleFunc("/api/v1/admin/reset-database", h.ResetDatabase).Methods("POST")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
