package handlers

import (
	"encoding/json"
	"net/http"
)

// OpenAPISpec returns the OpenAPI 3.0 specification for the Enforcement Platform API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Enforcement Platform API",
			"description": "De-identified traffic enforcement analytics: Excel import, topic classification, VPI/CRI scoring and hotspot reports",
			"version":     "1.0.0",
			"contact": map[string]string{
				"name": "Enforcement Platform Team",
			},
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/v1/import/crash": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Import crash records",
					"description": "Upload an Excel file of crash cases; rows are de-identified, classified and deduplicated",
					"requestBody": map[string]interface{}{
						"required": true,
						"content": map[string]interface{}{
							"multipart/form-data": map[string]interface{}{
								"schema": map[string]interface{}{
									"type": "object",
									"properties": map[string]interface{}{
										"file": map[string]string{"type": "string", "format": "binary"},
									},
								},
							},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Import summary with new/skipped/error counts"},
						"400": map[string]interface{}{"description": "Unsupported or unreadable file"},
					},
				},
			},
			"/api/v1/import/ticket": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Import violation tickets",
					"description": "Upload an Excel file of violation tickets; rows are de-identified, classified and deduplicated",
					"requestBody": map[string]interface{}{
						"required": true,
						"content": map[string]interface{}{
							"multipart/form-data": map[string]interface{}{
								"schema": map[string]interface{}{
									"type": "object",
									"properties": map[string]interface{}{
										"file": map[string]string{"type": "string", "format": "binary"},
									},
								},
							},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Import summary with per-topic counts"},
						"400": map[string]interface{}{"description": "Unsupported or unreadable file"},
					},
				},
			},
			"/api/v1/import/status": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Import status",
					"description": "Current record volume by type, severity and topic",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Stored record counts"},
					},
				},
			},
			"/api/v1/recommendations/top5": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Top 5 enforcement sites",
					"description": "Districts ranked by the blended VPI/CRI score for one topic",
					"parameters": []map[string]interface{}{
						{
							"name":        "topic_code",
							"in":          "query",
							"description": "DUI, RED_LIGHT or DANGEROUS_DRIVING",
							"required":    true,
							"schema":      map[string]string{"type": "string"},
						},
						{
							"name":        "shift_id",
							"in":          "query",
							"description": "Two-hour shift (01-12)",
							"required":    false,
							"schema":      map[string]string{"type": "string"},
						},
						{
							"name":        "days",
							"in":          "query",
							"description": "Trailing window in days (default: 30)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 30},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Ranked recommendations"},
						"400": map[string]interface{}{"description": "Invalid topic_code"},
					},
				},
			},
			"/api/v1/recommendations/cross-analysis": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Enforcement gap analysis",
					"description": "Crash volume per district/shift discounted by enforcement presence, bucketed into priorities",
					"parameters": []map[string]interface{}{
						{
							"name":        "district",
							"in":          "query",
							"description": "Limit to one district",
							"required":    false,
							"schema":      map[string]string{"type": "string"},
						},
						{
							"name":        "days",
							"in":          "query",
							"description": "Trailing window in days (default: 30)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 30},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Gap entries with priority buckets"},
					},
				},
			},
			"/api/v1/stats/overview": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Dashboard overview",
					"description": "Record volume, topic split and elderly share over the trailing window",
					"parameters": []map[string]interface{}{
						{
							"name":        "days",
							"in":          "query",
							"description": "Trailing window in days (default: 30)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 30},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Summary counts"},
					},
				},
			},
			"/api/v1/hotspots/accident-hotspots": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Ranked crash locations",
					"description": "Crash locations ranked by volume with an optional severity filter and year-over-year trend",
					"parameters": []map[string]interface{}{
						{
							"name":        "year",
							"in":          "query",
							"description": "Calendar year; overrides days together with month",
							"required":    false,
							"schema":      map[string]string{"type": "integer"},
						},
						{
							"name":        "month",
							"in":          "query",
							"description": "Calendar month (1-12)",
							"required":    false,
							"schema":      map[string]string{"type": "integer"},
						},
						{
							"name":        "top_n",
							"in":          "query",
							"description": "Number of locations to return (1-50, default: 10)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 10},
						},
						{
							"name":        "severity",
							"in":          "query",
							"description": "A1, A2 or A1+A2",
							"required":    false,
							"schema":      map[string]string{"type": "string"},
						},
						{
							"name":        "compare_baseline",
							"in":          "query",
							"description": "Compare against the same window last year (default: true)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "boolean", "default": true},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Ranked hotspot list"},
						"400": map[string]interface{}{"description": "top_n out of range"},
					},
				},
			},
			"/api/v1/topics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List enforcement topics",
					"description": "The fixed catalog of enforcement topics",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Topic catalog"},
					},
				},
			},
			"/api/v1/topics/{code}/trends": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Topic trend",
					"description": "Monthly topic volume with year-over-year comparison",
					"parameters": []map[string]interface{}{
						{
							"name":     "code",
							"in":       "path",
							"required": true,
							"schema":   map[string]string{"type": "string"},
						},
						{
							"name":        "months",
							"in":          "query",
							"description": "Number of trailing months (default: 12)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 12},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Trend series"},
						"404": map[string]interface{}{"description": "Unknown topic"},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Check if the API is running",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "API is healthy",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"status": map[string]string{"type": "string"},
										},
									},
								},
							},
						},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
