package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotamail/quotamail/internal/config"
	"github.com/quotamail/quotamail/internal/logging"
	"github.com/quotamail/quotamail/internal/mailer"
	"github.com/quotamail/quotamail/internal/metrics"
	"github.com/quotamail/quotamail/internal/models"
	"github.com/quotamail/quotamail/internal/pipeline"
	"github.com/quotamail/quotamail/internal/store"
)

type recordingTransport struct {
	mu    sync.Mutex
	count int
}

func (t *recordingTransport) Send(recipients []string, subject, body string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count++
	return nil
}

func (t *recordingTransport) sendCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func setupTestServer(t *testing.T, apiCfg config.APIConfig) (*Server, *store.MemoryStore, *recordingTransport) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := logging.NewLogger(logging.WithOutput(&buf))

	s := store.NewMemoryStore()
	transport := &recordingTransport{}
	resolver := mailer.NewDirectoryResolver(nil, "example.org")
	notifier := mailer.NewNotifier(resolver, transport, mailer.WithLogger(logger))

	thresholds, err := models.NewThresholdSetFromRatios(0.5, 0.8)
	require.NoError(t, err)

	p := pipeline.New(s, notifier, thresholds, 24*time.Hour, pipeline.WithLogger(logger))

	cfg := config.ServerConfig{Host: "localhost", HTTPPort: 8812}
	if apiCfg.BasePath == "" {
		apiCfg.BasePath = "/v1"
	}

	return NewServer(cfg, apiCfg, p, s, metrics.NewMetrics("apitest"), logger), s, transport
}

func TestHandleHealth(t *testing.T) {
	server, _, _ := setupTestServer(t, config.APIConfig{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/healthz", nil)
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestHandleUsageNotifies(t *testing.T) {
	server, s, transport := setupTestServer(t, config.APIConfig{})

	update := models.UsageUpdate{
		User:      "alice",
		SizeUsed:  90,
		SizeLimit: 100,
	}
	jsonBody, _ := json.Marshal(update)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/usage", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp UsageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Notified)
	assert.Equal(t, "just_crossed", resp.Crossings["size"].Outcome)
	assert.Equal(t, 80, resp.Crossings["size"].Percent)
	assert.Equal(t, "no_change", resp.Crossings["count"].Outcome)

	assert.Equal(t, 1, transport.sendCount())

	history, err := s.Retrieve("alice", models.DimensionSize)
	require.NoError(t, err)
	assert.Equal(t, 1, history.Len())
}

func TestHandleUsageInvalidUpdate(t *testing.T) {
	server, _, transport := setupTestServer(t, config.APIConfig{})

	jsonBody := []byte(`{"size_used": 10}`)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/usage", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, transport.sendCount())
}

func TestHandleUsageMalformedJSON(t *testing.T) {
	server, _, _ := setupTestServer(t, config.APIConfig{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/usage", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHistory(t *testing.T) {
	server, s, _ := setupTestServer(t, config.APIConfig{})

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append("bob", models.DimensionSize, models.ThresholdChange{
		Threshold: models.MustThreshold(0.5),
		At:        at,
	}))
	require.NoError(t, s.Append("bob", models.DimensionCount, models.ThresholdChange{
		Threshold: models.MustThreshold(0.8),
		At:        at,
	}))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/history/bob", nil)
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		User    string         `json:"user"`
		Changes []HistoryEntry `json:"changes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bob", resp.User)
	require.Len(t, resp.Changes, 2)
	assert.Equal(t, "size", resp.Changes[0].Dimension)
	assert.Equal(t, 50, resp.Changes[0].Percent)
	assert.Equal(t, "count", resp.Changes[1].Dimension)

	// Dimension filter
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/v1/history/bob?dimension=count", nil)
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Changes, 1)
	assert.Equal(t, "count", resp.Changes[0].Dimension)
}

func TestHandleHistoryUnknownDimension(t *testing.T) {
	server, _, _ := setupTestServer(t, config.APIConfig{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/history/bob?dimension=weight", nil)
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown dimension")
}

func TestHandleUsers(t *testing.T) {
	server, s, _ := setupTestServer(t, config.APIConfig{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/users", nil)
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"users":[]`)

	require.NoError(t, s.Append("carol", models.DimensionSize, models.ThresholdChange{
		Threshold: models.MustThreshold(0.5),
		At:        time.Now().UTC(),
	}))

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/v1/users", nil)
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "carol")
}

func TestMetricsEndpointBypassesAuth(t *testing.T) {
	server, _, _ := setupTestServer(t, config.APIConfig{
		Auth: config.AuthConfig{Enabled: true, APIKeys: []string{"secret"}},
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUsageEndpointRequiresAuth(t *testing.T) {
	server, _, _ := setupTestServer(t, config.APIConfig{
		Auth: config.AuthConfig{Enabled: true, APIKeys: []string{"secret"}},
	})

	update := models.UsageUpdate{User: "alice", SizeUsed: 90, SizeLimit: 100}
	jsonBody, _ := json.Marshal(update)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/usage", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	server.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/v1/usage", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", "secret")
	server.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
