package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"enforcement-platform/internal/models"
	"enforcement-platform/internal/repository"
	"enforcement-platform/pkg/logging"
	"enforcement-platform/pkg/metrics"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// baseHandler carries the response plumbing shared by all API handlers.
type baseHandler struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// sendJSON sends a JSON response
func (h *baseHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *baseHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// sendServiceError maps a service error onto the right status code:
// validation failures become 400, missing resources 404, everything else 500.
func (h *baseHandler) sendServiceError(ctx context.Context, w http.ResponseWriter, r *http.Request, route, message string, err error) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		h.sendError(w, r, validationErr.Message, http.StatusBadRequest)
		return
	}

	var notFoundErr *repository.NotFoundError
	if errors.As(err, &notFoundErr) {
		h.sendError(w, r, notFoundErr.Error(), http.StatusNotFound)
		return
	}

	h.logger.Error(ctx, "[API_ERROR] "+message, logging.Fields{
		"route": route,
	}, err)
	h.metrics.RecordAPIError("internal_error", route)
	h.sendError(w, r, message, http.StatusInternalServerError)
}

// queryInt returns the named query parameter as an int, falling back to the
// default when the parameter is absent or not an integer.
func queryInt(r *http.Request, name string, defaultValue int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

// queryDays returns the days window, clamped to the accepted 1-365 range.
func queryDays(r *http.Request, defaultValue int) int {
	days := queryInt(r, "days", defaultValue)
	if days < 1 || days > 365 {
		return defaultValue
	}
	return days
}

// queryBool returns the named query parameter as a bool, falling back to the
// default when the parameter is absent or not a boolean.
func queryBool(r *http.Request, name string, defaultValue bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return v
}
