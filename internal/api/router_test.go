package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/broadcast"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/handlers"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/query"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/store"
)

func newServer(t *testing.T) (*httptest.Server, *store.MessageStore, *broadcast.Hub) {
	t.Helper()
	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<!doctype html><title>P2000</title>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(static, "app.js"), []byte("connect();"), 0o644))

	s := store.NewMessageStore(10)
	hub := broadcast.NewHub(zerolog.Nop())
	h := handlers.NewHandler(query.NewService(s), nil, nil)
	srv := httptest.NewServer(NewRouter(zerolog.Nop(), h, hub, static))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return srv, s, hub
}

func TestRoutes(t *testing.T) {
	srv, s, _ := newServer(t)
	s.Upsert(store.Entry{Body: "P 2 Brand", ReceiverLabel: "1", Capcode: "1"})

	tests := []struct {
		path string
		code int
	}{
		{"/", http.StatusOK},
		{"/api", http.StatusOK},
		{"/api/messages", http.StatusOK},
		{"/api/messages/page?offset=0&count=1", http.StatusOK},
		{"/api/stats", http.StatusOK},
		{"/api/recent", http.StatusNotFound},
		{"/static/app.js", http.StatusOK},
		{"/static/missing.js", http.StatusNotFound},
		{"/health", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}
}

func TestRootServesWebPage(t *testing.T) {
	srv, _, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<title>P2000</title>")
}

func TestRootWithoutWebPage(t *testing.T) {
	h := handlers.NewHandler(query.NewService(store.NewMessageStore(1)), nil, nil)
	srv := httptest.NewServer(NewRouter(zerolog.Nop(), h, nil, ""))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestMessagesCORS(t *testing.T) {
	srv, _, _ := newServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/messages", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://dashboard.local")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWebSocketThroughMiddleware(t *testing.T) {
	srv, _, hub := newServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Deliver(context.Background(), models.MessageRecord{ID: "abc", BodyText: "A1 test"}))

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var got models.MessageRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "abc", got.ID)
}
