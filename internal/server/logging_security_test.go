package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingMiddleware_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	// Debug level is needed to log headers
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(previous) })

	handler := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dialogs/d-1", nil)
	req.Header.Set("X-API-Key", "secret-key-123")
	req.Header.Set("Authorization", "Bearer mytoken")
	req.Header.Set("User-Agent", "TestAgent")

	handler.ServeHTTP(httptest.NewRecorder(), req)

	logOutput := buf.String()
	require.Contains(t, logOutput, LogMsgRequestHeaders)
	assert.NotContains(t, logOutput, "secret-key-123")
	assert.NotContains(t, logOutput, "Bearer mytoken")
	assert.Contains(t, logOutput, "TestAgent")
}
