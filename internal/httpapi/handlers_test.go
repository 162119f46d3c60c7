package httpapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacques/jacques/internal/analytics"
	"github.com/jacques/jacques/internal/catalog"
	"github.com/jacques/jacques/internal/config"
	"github.com/jacques/jacques/internal/eventpipe"
	"github.com/jacques/jacques/internal/httpapi"
	"github.com/jacques/jacques/internal/searchindex"
	"github.com/jacques/jacques/internal/sessionregistry"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Host = "127.0.0.1"
	cfg.Port = 8089
	return cfg
}

func testServer(t *testing.T) (*httpapi.Server, *sessionregistry.Registry) {
	t.Helper()
	var pipe *eventpipe.Pipe
	registry := sessionregistry.New(func(sig sessionregistry.Signal) { pipe.OnRegistrySignal(sig) })
	hub := eventpipe.NewHub()
	notifier := eventpipe.NewNotifier(eventpipe.DefaultNotifySettings())
	pipe = eventpipe.NewPipe(registry, hub, notifier, nil)

	db, err := analytics.Open(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := httpapi.New(testConfig(t), registry, pipe, db, searchindex.New())
	return s, registry
}

func TestHandleListSessionsEmpty(t *testing.T) {
	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8089/api/v1/sessions", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []any{}, body["sessions"])
}

func TestHandleSessionDetailFromRegistry(t *testing.T) {
	s, registry := testServer(t)
	registry.Register(sessionregistry.StartEvent{SessionID: "abc", Title: "hi"})

	req := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8089/api/v1/sessions/abc", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var sess sessionregistry.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "abc", sess.SessionID)
}

func TestHandleSessionDetailNotFound(t *testing.T) {
	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8089/api/v1/sessions/missing", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSessionDetailFallsBackToArchive(t *testing.T) {
	s, _ := testServer(t)
	project := t.TempDir()
	writeManifest(t, project, "s1", &catalog.SessionManifest{
		SessionID: "s1", Title: "archived session", StartedAt: time.Now(),
	})

	req := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8089/api/v1/sessions/s1?project="+project, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var m catalog.SessionManifest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "archived session", m.Title)
}

func TestHandleProjectCatalogRequiresProject(t *testing.T) {
	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8089/api/v1/catalog", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalyticsSummary(t *testing.T) {
	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8089/api/v1/analytics/summary", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHostCheckRejectsUnknownHost(t *testing.T) {
	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Host = "evil.example.com"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCorsBlocksMutatingWithoutOrigin(t *testing.T) {
	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "http://127.0.0.1:8089/api/v1/archive/reindex", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func writeManifest(t *testing.T, projectRoot, sessionID string, m *catalog.SessionManifest) {
	t.Helper()
	dir := filepath.Join(projectRoot, ".jacques", "sessions")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, sessionID+".json"), data, 0o644))
}
