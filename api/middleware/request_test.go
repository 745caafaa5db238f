package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heraerp/hera-api/pkg/logger"
)

func TestRequestIDPropagatesWellFormedHeader(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "edge-7f3a.01")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, "edge-7f3a.01", seen)
	assert.Equal(t, "edge-7f3a.01", resp.Header().Get(requestIDHeader))
}

func TestRequestIDReplacesMalformedHeader(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	for _, supplied := range []string{"", "has space", strings.Repeat("a", maxRequestIDLength+1)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, supplied)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		require.NotEqual(t, supplied, seen)
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, resp.Header().Get(requestIDHeader))
	}
}

func TestRecovererWritesInternalEnvelope(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &buf})
	handler := RequestID(logg)(Recoverer(logg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v2/transactions", nil))

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, resp.Body.String(), `"INTERNAL_ERROR"`)
	assert.NotContains(t, resp.Body.String(), "boom")
	assert.Contains(t, buf.String(), `"panic":"boom"`)
}

func TestRecovererRepanicsAbort(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestLoggingRecordsRouteAndStatus(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &buf})

	r := chi.NewRouter()
	r.Use(Logging(logg))
	r.Get("/api/v2/entities/{entityId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("gone"))
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v2/entities/abc", nil))

	line := buf.String()
	assert.Contains(t, line, `"message":"request.complete"`)
	assert.Contains(t, line, `"status":404`)
	assert.Contains(t, line, `"bytes":4`)
	assert.Contains(t, line, `"route":"/api/v2/entities/{entityId}"`)
	assert.Contains(t, line, `"level":"info"`)
}

func TestCORSAllowsTenantSubdomainAndExposesWriteHeaders(t *testing.T) {
	handler := CORS(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v2/entities", nil)
	req.Header.Set("Origin", "https://acme.heraerp.com")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, "https://acme.heraerp.com", resp.Header().Get("Access-Control-Allow-Origin"))
	exposed := resp.Header().Get("Access-Control-Expose-Headers")
	assert.Contains(t, exposed, replayedHeader)
	assert.Contains(t, exposed, "X-Ratelimit-Reset")

	req = httptest.NewRequest(http.MethodGet, "/api/v2/entities", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))
}
