package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("success"))
	})
}

func TestAPIKeyAuth(t *testing.T) {
	handler := APIKeyAuth([]string{"valid-key-1", "valid-key-2"})(okHandler())

	tests := []struct {
		name     string
		header   string
		value    string
		expected int
	}{
		{"valid key header", "X-API-Key", "valid-key-1", http.StatusOK},
		{"valid bearer", "Authorization", "Bearer valid-key-2", http.StatusOK},
		{"invalid key", "X-API-Key", "invalid-key", http.StatusUnauthorized},
		{"wrong scheme", "Authorization", "Basic valid-key-1", http.StatusUnauthorized},
		{"missing key", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/tables", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expected, w.Code)
			if tt.expected == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"code":"unauthorized"`)
			}
		})
	}
}

func TestAPIKeyAuth_NoKeysConfigured(t *testing.T) {
	handler := APIKeyAuth(nil)(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	t.Run("wildcard", func(t *testing.T) {
		handler := CORS("*")(okHandler())
		req := httptest.NewRequest(http.MethodPost, "/api/v1/query", nil)
		req.Header.Set("Origin", "https://example.com")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		handler := CORS("*")(okHandler())
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/query", nil)
		req.Header.Set("Origin", "https://example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
		assert.Empty(t, w.Body.String())
	})

	t.Run("listed origin", func(t *testing.T) {
		handler := CORS("https://app.example.com")(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", w.Header().Get("Vary"))
	})

	t.Run("unlisted origin", func(t *testing.T) {
		handler := CORS("https://app.example.com")(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRateLimiter(t *testing.T) {
	l := NewLimiter(1)
	handler := l.Middleware(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	// burst is 2x rps
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "limits are per client")
}

func TestRateLimiter_Disabled(t *testing.T) {
	handler := NewLimiter(0).Middleware(okHandler())
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestLimiter_Evict(t *testing.T) {
	l := NewLimiter(5)
	l.visitor("10.0.0.1")
	l.visitor("10.0.0.2")
	l.visitors["10.0.0.2"].lastSeen = time.Now().Add(-time.Hour)

	l.evict(time.Now())

	assert.Len(t, l.visitors, 1)
	assert.Contains(t, l.visitors, "10.0.0.1")
}

func TestLimiter_CleanupStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewLimiter(1).Cleanup(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not stop")
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	handler := m.Collector(okHandler())

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	m.RecordOutcome("completed")
	m.RecordOutcome("access_denied")
	m.RecordOutcome("completed")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()

	assert.Contains(t, body, "query_gateway_requests_total 2\n")
	assert.Contains(t, body, `query_gateway_responses_total{status="200"} 2`)
	assert.Contains(t, body, `query_gateway_query_outcomes_total{kind="completed"} 2`)
	assert.Contains(t, body, `query_gateway_query_outcomes_total{kind="access_denied"} 1`)
	assert.Less(t,
		strings.Index(body, `kind="access_denied"`),
		strings.Index(body, `kind="completed"`))
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	Logger(logger)(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	Logger(logger)(failing).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/denied", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(http.StatusForbidden), entries[1].ContextMap()["status"])
}
