package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loggedEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestRequestLoggerGeneratesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: "info", Format: "json"}, &buf)

	var seenID string
	handler := RequestLogger(logger.Logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/documents", nil))

	require.NotEmpty(t, seenID, "request id must reach the handler's context")
	assert.Equal(t, seenID, rec.Header().Get(HeaderRequestID))

	entry := loggedEntry(t, &buf)
	assert.Equal(t, seenID, entry["request_id"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/documents", entry["path"])
	assert.Equal(t, float64(http.StatusOK), entry["status"])
}

func TestRequestLoggerHonorsIncomingHeaders(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: "info", Format: "json"}, &buf)

	handler := RequestLogger(logger.Logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderRequestID, "req-abc")
	req.Header.Set(HeaderTraceID, "trace-xyz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-abc", rec.Header().Get(HeaderRequestID))
	assert.Equal(t, "trace-xyz", rec.Header().Get(HeaderTraceID))

	entry := loggedEntry(t, &buf)
	assert.Equal(t, "req-abc", entry["request_id"])
	assert.Equal(t, "trace-xyz", entry["trace_id"])
}

func TestRequestLoggerLevelTracksStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
	}{
		{"success logs info", http.StatusOK, "INFO"},
		{"client error logs warn", http.StatusNotFound, "WARN"},
		{"server error logs error", http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(Config{Level: "info", Format: "json"}, &buf)

			handler := RequestLogger(logger.Logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

			entry := loggedEntry(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, float64(tt.status), entry["status"])
		})
	}
}

func TestRequestLoggerCountsResponseBytes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: "info", Format: "json"}, &buf)

	handler := RequestLogger(logger.Logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
		w.Write([]byte(" world"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	entry := loggedEntry(t, &buf)
	assert.Equal(t, float64(len("hello world")), entry["response_bytes"])
}

func TestRequestLoggerContextFlowsToHandlerLogs(t *testing.T) {
	// A handler logging through the same logger picks up the ids the
	// middleware stored in the request context.
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: "info", Format: "json"}, &buf)

	handler := RequestLogger(logger.Logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.InfoContext(r.Context(), "handling")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderRequestID, "req-flow")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	// First line is the handler's, second the middleware summary.
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	for _, line := range lines {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		assert.Equal(t, "req-flow", entry["request_id"])
	}
}
