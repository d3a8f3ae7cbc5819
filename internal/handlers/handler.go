package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/ingest"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/query"
)

// Pinger is a backing service checked by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StateReporter exposes the ingestion loop state.
type StateReporter interface {
	State() ingest.State
}

// RecentSource returns records already pushed to subscribers, newest first.
type RecentSource interface {
	RecentRecords(ctx context.Context, limit int) ([]models.MessageRecord, error)
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	query    *query.Service
	ingest   StateReporter
	services map[string]Pinger
	recent   RecentSource
}

// NewHandler creates a new Handler. ingest may be nil; services maps a
// check name to an optional backing service.
func NewHandler(q *query.Service, ingest StateReporter, services map[string]Pinger) *Handler {
	return &Handler{query: q, ingest: ingest, services: services}
}

// WithRecent enables /api/recent backed by src.
func (h *Handler) WithRecent(src RecentSource) *Handler {
	h.recent = src
	return h
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
