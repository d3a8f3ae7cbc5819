package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/ingest"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/query"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/store"
)

type fixedState ingest.State

func (f fixedState) State() ingest.State { return ingest.State(f) }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newHandler(t *testing.T, n int) *Handler {
	t.Helper()
	s := store.NewMessageStore(100)
	for i := 0; i < n; i++ {
		s.Upsert(store.Entry{
			Body:          fmt.Sprintf("A1 page %d", i),
			ReceiverLabel: "Ambulance (001523172)",
			Capcode:       "001523172",
			GroupID:       "10.120",
			Priority:      models.Priority1,
			Sender:        models.SenderAmbulance,
			Timestamp:     "2018-07-29 11:43:27",
		})
	}
	return NewHandler(query.NewService(s), fixedState(ingest.StateRunning), nil)
}

func TestMessagesReturnsSnapshot(t *testing.T) {
	h := newHandler(t, 2)
	rec := httptest.NewRecorder()
	h.Messages(rec, httptest.NewRequest(http.MethodGet, "/api/messages", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var raw []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Len(t, raw, 2)
	assert.Equal(t, "A1 page 1", raw[0]["bodyText"])
	assert.Equal(t, "ambulance", raw[0]["sender"])
	assert.Equal(t, float64(1), raw[0]["priority"])
	assert.Equal(t, []interface{}{"001523172"}, raw[0]["capcodes"])
	for _, key := range []string{"id", "timestampDisplay", "receivedAt", "groupId", "receiverLabels", "posted"} {
		assert.Contains(t, raw[0], key)
	}
}

func TestMessagesEmptyStoreIsArray(t *testing.T) {
	h := newHandler(t, 0)
	rec := httptest.NewRecorder()
	h.Messages(rec, httptest.NewRequest(http.MethodGet, "/api/messages", nil))

	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestPage(t *testing.T) {
	h := newHandler(t, 5)

	rec := httptest.NewRecorder()
	h.Page(rec, httptest.NewRequest(http.MethodGet, "/api/messages/page?offset=3&count=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Offset)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, "A1 page 1", resp.Messages[0].BodyText)

	rec = httptest.NewRecorder()
	h.Page(rec, httptest.NewRequest(http.MethodGet, "/api/messages/page?offset=50", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Messages)
	assert.NotNil(t, resp.Messages)
}

func TestPageRejectsBadParams(t *testing.T) {
	h := newHandler(t, 1)
	for _, target := range []string{"/api/messages/page?offset=-1", "/api/messages/page?count=abc"} {
		rec := httptest.NewRecorder()
		h.Page(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestStats(t *testing.T) {
	h := newHandler(t, 3)
	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	var stats query.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Size)
	assert.Equal(t, 100, stats.Capacity)
	assert.Equal(t, 3, stats.Pending)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		state    ingest.State
		services map[string]Pinger
		code     int
		status   string
	}{
		{"running", ingest.StateRunning, nil, http.StatusOK, "healthy"},
		{"decoder stopped", ingest.StateStopped, nil, http.StatusServiceUnavailable, "degraded"},
		{"decoder starting", ingest.StateStarting, nil, http.StatusServiceUnavailable, "degraded"},
		{"redis up", ingest.StateRunning, map[string]Pinger{"redis": pinger{}}, http.StatusOK, "healthy"},
		{"archive down", ingest.StateRunning, map[string]Pinger{"sqlite": pinger{errors.New("locked")}}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(query.NewService(store.NewMessageStore(1)), fixedState(tt.state), tt.services)
			rec := httptest.NewRecorder()
			h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.code, rec.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Contains(t, resp.Checks, "decoder")
		})
	}
}

type fakeRecent struct {
	records []models.MessageRecord
	err     error
	limit   int
}

func (f *fakeRecent) RecentRecords(_ context.Context, limit int) ([]models.MessageRecord, error) {
	f.limit = limit
	return f.records, f.err
}

func TestRecent(t *testing.T) {
	src := &fakeRecent{records: []models.MessageRecord{{ID: "b", BodyText: "P 1 Brand"}, {ID: "a"}}}
	h := newHandler(t, 0).WithRecent(src)

	rec := httptest.NewRecorder()
	h.Recent(rec, httptest.NewRequest(http.MethodGet, "/api/recent?limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, src.limit)
	var got []models.MessageRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)

	rec = httptest.NewRecorder()
	h.Recent(rec, httptest.NewRequest(http.MethodGet, "/api/recent", nil))
	assert.Equal(t, DefaultRecentLimit, src.limit)
}

func TestRecentErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(t, 0).Recent(rec, httptest.NewRequest(http.MethodGet, "/api/recent", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "without Redis")

	h := newHandler(t, 0).WithRecent(&fakeRecent{err: errors.New("connection refused")})
	for target, code := range map[string]int{
		"/api/recent?limit=0":    http.StatusBadRequest,
		"/api/recent?limit=501":  http.StatusBadRequest,
		"/api/recent?limit=many": http.StatusBadRequest,
		"/api/recent":            http.StatusServiceUnavailable,
	} {
		rec := httptest.NewRecorder()
		h.Recent(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, code, rec.Code, target)
	}
}
