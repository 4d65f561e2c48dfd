package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"enforcement-platform/internal/services"
	"enforcement-platform/pkg/logging"
	"enforcement-platform/pkg/metrics"
)

// RecommendationHandler handles the enforcement recommendation endpoints
type RecommendationHandler struct {
	baseHandler
	recommendations *services.RecommendationService
}

// NewRecommendationHandler creates a new recommendation handler
func NewRecommendationHandler(
	recommendationService *services.RecommendationService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *RecommendationHandler {
	return &RecommendationHandler{
		baseHandler:     baseHandler{logger: logger, metrics: metricsCollector},
		recommendations: recommendationService,
	}
}

// Top5 handles GET /api/v1/recommendations/top5
func (h *RecommendationHandler) Top5(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/v1/recommendations/top5").Observe(duration.Seconds())
	}()

	topicCode := r.URL.Query().Get("topic_code")
	shiftID := r.URL.Query().Get("shift_id")
	days := queryDays(r, 30)

	response, err := h.recommendations.Top5(ctx, topicCode, shiftID, days)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/recommendations/top5", "failed to build recommendations", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/recommendations/top5", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// Heatmap handles GET /api/v1/recommendations/heatmap
func (h *RecommendationHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	topicCode := r.URL.Query().Get("topic_code")
	shiftID := r.URL.Query().Get("shift_id")
	days := queryDays(r, 30)

	response, err := h.recommendations.Heatmap(ctx, topicCode, shiftID, days)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/recommendations/heatmap", "failed to build heatmap", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/recommendations/heatmap", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// BriefingCard handles GET /api/v1/recommendations/briefing-card
func (h *RecommendationHandler) BriefingCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	topicCode := r.URL.Query().Get("topic_code")
	shiftID := r.URL.Query().Get("shift_id")
	date := r.URL.Query().Get("date")

	if shiftID == "" {
		h.sendError(w, r, "shift_id is required", http.StatusBadRequest)
		return
	}

	response, err := h.recommendations.Briefing(ctx, topicCode, shiftID, date)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/recommendations/briefing-card", "failed to build briefing card", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/recommendations/briefing-card", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// AccidentHotspots handles GET /api/v1/recommendations/accidents/hotspots
func (h *RecommendationHandler) AccidentHotspots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/v1/recommendations/accidents/hotspots").Observe(duration.Seconds())
	}()

	days := queryDays(r, 30)

	response, err := h.recommendations.AccidentHotspots(ctx, days)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/recommendations/accidents/hotspots", "failed to build accident hotspots", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/recommendations/accidents/hotspots", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// PeakTimes handles GET /api/v1/recommendations/accidents/peak-times/{district}
func (h *RecommendationHandler) PeakTimes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	district := mux.Vars(r)["district"]
	days := queryDays(r, 30)

	response, err := h.recommendations.PeakTimes(ctx, district, days)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/recommendations/accidents/peak-times", "failed to build peak times", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/recommendations/accidents/peak-times", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// AccidentHeatmap handles GET /api/v1/recommendations/heatmap/accidents
func (h *RecommendationHandler) AccidentHeatmap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	shiftID := r.URL.Query().Get("shift_id")
	days := queryDays(r, 30)

	response, err := h.recommendations.AccidentHeatmap(ctx, shiftID, days)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/recommendations/heatmap/accidents", "failed to build accident heatmap", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/recommendations/heatmap/accidents", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// CrossAnalysis handles GET /api/v1/recommendations/cross-analysis
func (h *RecommendationHandler) CrossAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/v1/recommendations/cross-analysis").Observe(duration.Seconds())
	}()

	district := r.URL.Query().Get("district")
	days := queryDays(r, 30)

	response, err := h.recommendations.CrossAnalysis(ctx, district, days)
	if err != nil {
		h.sendServiceError(ctx, w, r, "/api/v1/recommendations/cross-analysis", "failed to build cross analysis", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/v1/recommendations/cross-analysis", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// RegisterRoutes registers the recommendation routes
func (h *RecommendationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/recommendations/top5", h.Top5).Methods("GET")
	router.HandleFunc("/api/v1/recommendations/heatmap", h.Heatmap).Methods("GET")
	router.HandleFunc("/api/v1/recommendations/heatmap/accidents", h.AccidentHeatmap).Methods("GET")
	router.HandleFunc("/api/v1/recommendations/briefing-card", h.BriefingCard).Methods("GET")
	router.HandleFunc("/api/v1/recommendations/accidents/hotspots", h.AccidentHotspots).Methods("GET")
	router.HandleFunc("/api/v1/recommendations/accidents/peak-times/{district}", h.PeakTimes).Methods("GET")
	router.HandleFunc("/api/v1/recommendations/cross-analysis", h.CrossAnalysis).Methods("GET")
}
