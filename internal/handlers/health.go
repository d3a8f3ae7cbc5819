package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/ingest"
)

const version = "0.1.0"

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass" or "fail"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Health handles the health check endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	if h.ingest != nil {
		state := h.ingest.State()
		if state == ingest.StateRunning {
			checks["decoder"] = Check{Status: "pass"}
		} else {
			checks["decoder"] = Check{Status: "fail", Message: state.String()}
			allHealthy = false
		}
	}

	for name, svc := range h.services {
		start := time.Now()
		if err := svc.Ping(ctx); err != nil {
			checks[name] = Check{Status: "fail", Message: "connection failed"}
			allHealthy = false
		} else {
			checks[name] = Check{Status: "pass", Latency: time.Since(start).String()}
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	h.JSON(w, statusCode, HealthResponse{
		Status:    status,
		Version:   version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// RootResponse represents the API info response.
type RootResponse struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

// Root handles the API info endpoint.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, RootResponse{
		Name:    "P2000 Receiver",
		Version: version,
		Endpoints: []string{
			"GET /api/messages",
			"GET /api/messages/page?offset=&count=",
			"GET /api/recent?limit=",
			"GET /api/stats",
			"GET /health",
			"GET /metrics",
			"GET /ws",
		},
	})
}
