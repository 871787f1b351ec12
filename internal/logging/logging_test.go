package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "JSON", "debug")
	logger.Debug("hello", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "v", line["k"])
}

func TestNewTextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "text", "warn")
	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func serve(t *testing.T, path string, status int) string {
	t.Helper()
	var buf bytes.Buffer
	logger := New(&buf, "text", "debug")

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("body"))
	})
	handler := middleware.RequestID(RequestLogger(logger)(inner))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return buf.String()
}

func TestRequestLogger(t *testing.T) {
	out := serve(t, "/items", http.StatusOK)
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "method=GET")
	assert.Contains(t, out, "path=/items")
	assert.Contains(t, out, "status=200")
	assert.Contains(t, out, "bytes=4")
	assert.Contains(t, out, "request_id=")
}

func TestRequestLoggerLevels(t *testing.T) {
	assert.Contains(t, serve(t, "/items/x", http.StatusNotFound), "level=WARN")
	assert.Contains(t, serve(t, "/items", http.StatusInternalServerError), "level=ERROR")
}

func TestRequestLoggerSkipsHealth(t *testing.T) {
	assert.Empty(t, serve(t, "/healthz", http.StatusOK))
	assert.Empty(t, serve(t, "/api/healthz", http.StatusOK))
}
