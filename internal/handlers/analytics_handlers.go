package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"enforcement-platform/internal/services"
	"enforcement-platform/pkg/logging"
	"enforcement-platform/pkg/metrics"
)

// AnalyticsHandler handles the statistics, hotspot and topic endpoints
type AnalyticsHandler struct {
	baseHandler
	analytics *services.AnalyticsService
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(
	analyticsService *services.AnalyticsService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		baseHandler: baseHandler{logger: logger, metrics: metricsCollector},
		analytics:   analyticsService,
	}
}

// Overview handles GET /api/v1/stats/overview
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/v1/stats/overview").Observe(duration.Seconds())
	}()

	days := queryDays(r, 30)

	response, err := h.analytics.Overview(ctx, days)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/stats/overview", "failed to build overview", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/stats/overview", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// Monthly handles GET /api/v1/stats/monthly
func (h *AnalyticsHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	year := queryInt(r, "year", 0)
	month := queryInt(r, "month", 0)

	response, err := h.analytics.Monthly(ctx, year, month)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/stats/monthly", "failed to build monthly stats", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/stats/monthly", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// Elderly handles GET /api/v1/stats/elderly
func (h *AnalyticsHandler) Elderly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days := queryDays(r, 30)

	response, err := h.analytics.Elderly(ctx, days)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/stats/elderly", "failed to build elderly stats", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/stats/elderly", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// Shifts handles GET /api/v1/stats/shifts
func (h *AnalyticsHandler) Shifts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days := queryDays(r, 30)

	response, err := h.analytics.Shifts(ctx, days)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/stats/shifts", "failed to build shift analysis", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/stats/shifts", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// Violations handles GET /api/v1/stats/violations
func (h *AnalyticsHandler) Violations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days := queryDays(r, 30)

	response, err := h.analytics.Violations(ctx, days)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/stats/violations", "failed to build violation stats", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/stats/violations", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// AccidentHotspots handles GET /api/v1/hotspots/accident-hotspots
func (h *AnalyticsHandler) AccidentHotspots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/v1/hotspots/accident-hotspots").Observe(duration.Seconds())
	}()

	opts := services.HotspotRankingOptions{
		Year:            queryInt(r, "year", 0),
		Month:           queryInt(r, "month", 0),
		Days:            queryDays(r, 30),
		TopN:            queryInt(r, "top_n", 10),
		Severity:        r.URL.Query().Get("severity"),
		CompareBaseline: queryBool(r, "compare_baseline", true),
	}

	response, err := h.analytics.AccidentHotspotRanking(ctx, opts)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/hotspots/accident-hotspots", "failed to build accident hotspot ranking", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/hotspots/accident-hotspots", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// TicketHotspots handles GET /api/v1/hotspots/ticket-hotspots
func (h *AnalyticsHandler) TicketHotspots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	opts := services.HotspotRankingOptions{
		Year:  queryInt(r, "year", 0),
		Month: queryInt(r, "month", 0),
		Days:  queryDays(r, 30),
		TopN:  queryInt(r, "top_n", 10),
	}
	topic := r.URL.Query().Get("topic")

	response, err := h.analytics.TicketHotspotRanking(ctx, opts, topic)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/hotspots/ticket-hotspots", "failed to build ticket hotspot ranking", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/hotspots/ticket-hotspots", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// HotspotOverlap handles GET /api/v1/hotspots/hotspot-overlap
func (h *AnalyticsHandler) HotspotOverlap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days := queryDays(r, 30)
	topN := queryInt(r, "top_n", 10)

	response, err := h.analytics.HotspotOverlap(ctx, days, topN)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/hotspots/hotspot-overlap", "failed to build hotspot overlap", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/hotspots/hotspot-overlap", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// Topics handles GET /api/v1/topics
func (h *AnalyticsHandler) Topics(w http.ResponseWriter, r *http.Request) {
	h.metrics.RecordAPIRequest("/api/v1/topics", "GET", "200")
	h.sendJSON(w, h.analytics.TopicCatalog(), http.StatusOK)
}

// TopicDetail handles GET /api/v1/topics/{code}
func (h *AnalyticsHandler) TopicDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := mux.Vars(r)["code"]

	response, err := h.analytics.TopicDetail(code)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/topics", "failed to load topic", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/topics", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// TopicStats handles GET /api/v1/topics/{code}/stats
func (h *AnalyticsHandler) TopicStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/v1/topics/stats").Observe(duration.Seconds())
	}()

	code := mux.Vars(r)["code"]
	shiftID := r.URL.Query().Get("shift_id")
	days := queryDays(r, 30)

	response, err := h.analytics.TopicStats(ctx, code, shiftID, days)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/topics/stats", "failed to build topic stats", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/topics/stats", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// TopicTrends handles GET /api/v1/topics/{code}/trends
func (h *AnalyticsHandler) TopicTrends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := mux.Vars(r)["code"]
	months := queryInt(r, "months", 12)
	if months < 1 || months > 36 {
		months = 12
	}

	response, err := h.analytics.TopicTrends(ctx, code, months)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/topics/trends", "failed to build topic trends", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/topics/trends", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// RegisterRoutes registers the statistics, hotspot and topic routes
func (h *AnalyticsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/stats/overview", h.Overview).Methods("GET")
	router.HandleFunc("/api/v1/stats/monthly", h.Monthly).Methods("GET")
	router.HandleFunc("/api/v1/stats/elderly", h.Elderly).Methods("GET")
	router.HandleFunc("/api/v1/stats/shifts", h.Shifts).Methods("GET")
	router.HandleFunc("/api/v1/stats/violations", h.Violations).Methods("GET")
	router.HandleFunc("/api/v1/hotspots/accident-hotspots", h.AccidentHotspots).Methods("GET")
	router.HandleFunc("/api/v1/hotspots/ticket-hotspots", h.TicketHotspots).Methods("GET")
	router.HandleFunc("/api/v1/hotspots/hotspot-overlap", h.HotspotOverlap).Methods("GET")
	router.HandleFunc("/api/v1/topics", h.Topics).Methods("GET")
	router.HandleFunc("/api/v1/topics/{code}", h.TopicDetail).Methods("GET")
	router.HandleFunc("/api/v1/topics/{code}/stats", h.TopicStats).Methods("GET")
	router.HandleFunc("/api/v1/topics/{code}/trends", h.TopicTrends).Methods("GET")
}
