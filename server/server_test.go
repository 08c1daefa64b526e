package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/torrentsnag/backend"
	"github.com/s0up4200/torrentsnag/metrics"
	"github.com/s0up4200/torrentsnag/orchestrator"
	"github.com/s0up4200/torrentsnag/session"
	"github.com/s0up4200/torrentsnag/settings"
	"github.com/s0up4200/torrentsnag/tracker"
)

const (
	magnetA = "magnet:?xt=urn:btih:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa&dn=Album"
	magnetB = "magnet:?xt=urn:btih:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb&dn=Live"
)

type stubHandler struct {
	added [][]string
}

func (h *stubHandler) Name() string                { return "qBittorrent" }
func (h *stubHandler) Login(context.Context) error { return nil }
func (h *stubHandler) TestConnection(context.Context) *backend.TestResult {
	return &backend.TestResult{Success: true, Message: "Connected to qBittorrent v5.0.0", Version: "v5.0.0"}
}

func (h *stubHandler) AddTorrents(ctx context.Context, urls, labels []string) (*backend.Result, error) {
	h.added = append(h.added, urls)
	return backend.RunBatch(ctx, urls, labels, backend.BatchOptions{Delay: -1}, func(context.Context, string, string) error {
		return nil
	}), nil
}

type testEnv struct {
	router   http.Handler
	sessions *session.Manager
	tracker  *tracker.Tracker
	handler  *stubHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	svc := settings.NewService(&settings.MemoryRepository{}, logger)
	trk := tracker.New(tracker.NewMemoryStore(), logger)
	sessions := session.NewManager(trk, logger)
	t.Cleanup(sessions.Shutdown)
	require.NoError(t, orchestrator.Follow(ctx, svc, sessions, trk, logger))

	h := &stubHandler{}
	orch := orchestrator.New(svc, trk, sessions, logger, orchestrator.WithFactory(func(string, settings.HandlerConfig) (backend.Handler, error) {
		return h, nil
	}))

	srv := NewServer(&Dependencies{
		Settings:     svc,
		Tracker:      trk,
		Sessions:     sessions,
		Orchestrator: orch,
		Metrics:      metrics.NewManager(func() float64 { return float64(trk.Count(ctx)) }),
		Version:      "test",
		Logger:       logger,
	})

	return &testEnv{router: srv.Handler(), sessions: sessions, tracker: trk, handler: h}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"test"`)
}

func TestScanDispatchFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/contexts/tab-1/links?now=1", map[string]any{
		"url": "https://tracker.example/browse",
		"links": []map[string]string{
			{"href": magnetA, "text": "Album"},
			{"href": "https://tracker.example/about", "text": "About"},
			{"href": magnetB, "text": "Live"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var scan scanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scan))
	assert.Equal(t, 2, scan.Added)
	require.Len(t, scan.Candidates, 2)

	rec = env.do(t, http.MethodDelete, "/api/contexts/tab-1/candidates/remove?url="+url.QueryEscape(magnetB), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/contexts/tab-1/send-all", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res backend.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, [][]string{{magnetA}}, env.handler.added)

	assert.Empty(t, env.sessions.Candidates("tab-1"))
	assert.Equal(t, 1, env.tracker.Count(context.Background()))

	// a rescan of the same page does not offer the sent link again
	rec = env.do(t, http.MethodPost, "/api/contexts/tab-1/links?now=1", map[string]any{
		"links": []map[string]string{{"href": magnetA, "text": "Album"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scan))
	assert.Equal(t, 0, scan.Added)

	rec = env.do(t, http.MethodPost, "/api/contexts/tab-1/send-all", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDispatchValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/contexts/tab-1/dispatch", map[string]any{"urls": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/contexts/tab-1/dispatch", map[string]any{
		"urls":   []string{magnetA},
		"labels": []string{"music"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var res backend.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Results, 1)
	assert.Equal(t, "music", res.Results[0].Label)
}

func TestCandidatesEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/contexts/unknown/candidates", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(t, http.MethodDelete, "/api/contexts/tab-2/candidates/remove?url=nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/contexts/tab-2/navigate", map[string]string{"url": "https://a.example/"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"changed":true,"generation":1}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/contexts/tab-2/links", map[string]any{"links": []map[string]string{}})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/contexts/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"tab-2"`)

	rec = env.do(t, http.MethodDelete, "/api/contexts/tab-2/", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := env.sessions.Lookup("tab-2")
	assert.False(t, ok)
}

func TestHandlerEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/handlers/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list handlersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Handlers, 4)
	assert.Equal(t, settings.KindQBittorrent, list.Selected)

	rec = env.do(t, http.MethodPost, "/api/handlers/qbittorrent/test", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res backend.TestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "v5.0.0", res.Version)

	rec = env.do(t, http.MethodPut, "/api/handlers/selected", map[string]string{"type": "utorrent"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/handlers/selected", map[string]string{"type": settings.KindDeluge})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSettingsImportRejectsInvalidFilter(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/settings/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "torrent-snag-settings-")
	assert.Contains(t, rec.Body.String(), `"extensionName": "Torrent Snag"`)

	rec = env.do(t, http.MethodPost, "/api/settings/import", map[string]any{
		"settings": map[string]any{
			"filters": []map[string]any{{"name": "Bad Filter", "regex": "([", "enabled": true}},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `Invalid regex pattern in \"Bad Filter\"`)
}

func TestTrackingEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.tracker.Record(ctx, "fp-1", nil)
	env.tracker.Record(ctx, "fp-2", nil)

	rec := env.do(t, http.MethodGet, "/api/tracking/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats trackingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Count)

	rec = env.do(t, http.MethodPost, "/api/tracking/compact", map[string]int{"maxEntries": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":1,"count":1}`, rec.Body.String())

	rec = env.do(t, http.MethodDelete, "/api/tracking/", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, env.tracker.Count(ctx))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/contexts/tab-1/dispatch", map[string]any{"urls": []string{magnetA}})

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "torrentsnag_tracker_entries")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/handlers/", nil)
	req.Header.Set("Origin", "moz-extension://abc")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "moz-extension://abc", rec.Header().Get("Access-Control-Allow-Origin"))
}
