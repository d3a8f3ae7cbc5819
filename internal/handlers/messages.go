package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/query"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/store"
)

// DefaultRecentLimit is the /api/recent page size without ?limit=.
const DefaultRecentLimit = 50

// Messages returns the whole history, newest first.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, h.query.Messages())
}

// PageResponse is one window of the history.
type PageResponse struct {
	Offset   int                    `json:"offset"`
	Count    int                    `json:"count"`
	Total    int                    `json:"total"`
	Messages []models.MessageRecord `json:"messages"`
}

// Page returns ?count= records starting at ?offset=.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		h.Error(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	count, err := intParam(r, "count", query.DefaultPageSize)
	if err != nil || count < 0 {
		h.Error(w, http.StatusBadRequest, "count must be a non-negative integer")
		return
	}

	messages := h.query.Page(offset, count)
	h.JSON(w, http.StatusOK, PageResponse{
		Offset:   offset,
		Count:    len(messages),
		Total:    h.query.Total(),
		Messages: messages,
	})
}

// Stats returns store counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, h.query.Stats())
}

// Recent returns records already pushed to subscribers, read back from the
// Redis recent list.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.recent == nil {
		h.Error(w, http.StatusNotFound, "recent feed requires Redis")
		return
	}
	limit, err := intParam(r, "limit", DefaultRecentLimit)
	if err != nil || limit <= 0 || limit > store.RecentLimit {
		h.Error(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", store.RecentLimit))
		return
	}

	records, err := h.recent.RecentRecords(r.Context(), limit)
	if err != nil {
		h.Error(w, http.StatusServiceUnavailable, "recent feed unavailable")
		return
	}
	h.JSON(w, http.StatusOK, records)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
