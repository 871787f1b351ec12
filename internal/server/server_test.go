package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lostfound-board/apiserver/config"
	"github.com/lostfound-board/apiserver/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	return config.Config{
		ServerPort: 0,
		Auth:       config.AuthConfig{JWTSecret: "server-secret", TokenTTL: time.Hour, BcryptCost: 4},
		Store:      config.StoreConfig{Backend: config.BackendMemory, Timeout: time.Second},
		MQ:         config.MQConfig{Backend: config.BackendNone},
		Storage:    config.StorageConfig{Backend: config.BackendNone},
	}
}

func TestNewRequiresSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = ""
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewRejectsUnknownStore(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = "cassandra"
	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown store backend")
}

func TestNewMemoryBackend(t *testing.T) {
	srv, err := New(context.Background(), testConfig())
	require.NoError(t, err)
	assert.NotNil(t, srv.Router())
	assert.Nil(t, srv.db)
}

func TestRoutesMountedTwice(t *testing.T) {
	handler, err := NewHandler(Repositories{
		Items: store.NewMemoryItemRepository(),
		Users: store.NewMemoryUserRepository(),
	}, nil, nil, testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	defer ts.Close()

	for _, path := range []string{"/healthz", "/api/healthz", "/items", "/api/items"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	body, _ := json.Marshal(map[string]string{"username": "dana", "email": "dana@example.com", "password": "secret123"})
	resp, err := http.Post(ts.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))
}
