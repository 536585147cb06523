package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tckz/visitor-counter/internal/counter"
	"go.uber.org/zap"
)

type brokenCounter struct {
	err error
}

func (c brokenCounter) Up(ctx context.Context) (int64, error) {
	return 0, fmt.Errorf("%w: redis.TxPipelined: %w", counter.ErrStoreUnavailable, c.err)
}

func (c brokenCounter) Get(ctx context.Context) (int64, error) {
	return 0, fmt.Errorf("%w: redis.HGet: %w", counter.ErrStoreUnavailable, c.err)
}

// blockingCounter waits for the request deadline.
type blockingCounter struct{}

func (blockingCounter) Up(ctx context.Context) (int64, error) {
	<-ctx.Done()
	return 0, fmt.Errorf("%w: %w", counter.ErrStoreUnavailable, ctx.Err())
}

func (blockingCounter) Get(ctx context.Context) (int64, error) {
	return blockingCounter{}.Up(ctx)
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestHandler_Scenario(t *testing.T) {
	c := counter.NewLocalCounter("visitors")
	h := NewHandler(c, zap.NewNop().Sugar())

	w := do(t, h, http.MethodPost, PathVisitorCount)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count": 1}`, w.Body.String())

	w = do(t, h, http.MethodPost, PathVisitorCount)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count": 2}`, w.Body.String())

	w = do(t, h, http.MethodGet, PathVisitorCount)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count": 2}`, w.Body.String())

	v, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestHandler_CommonHeaders(t *testing.T) {
	h := NewHandler(counter.NewLocalCounter("visitors"), zap.NewNop().Sugar(), WithAllowOrigin("https://example.com"))

	for _, tt := range []struct {
		method, path string
	}{
		{http.MethodPost, PathVisitorCount},
		{http.MethodGet, PathVisitorCount},
		{http.MethodDelete, PathVisitorCount},
		{http.MethodGet, PathHealth},
		{http.MethodGet, "/"},
		{http.MethodGet, "/nope"},
	} {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestHandler_Preflight(t *testing.T) {
	c := counter.NewLocalCounter("visitors")
	h := NewHandler(c, zap.NewNop().Sugar())

	w := do(t, h, http.MethodOptions, PathVisitorCount)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))

	v, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := NewHandler(counter.NewLocalCounter("visitors"), zap.NewNop().Sugar())

	w := do(t, h, http.MethodPut, PathVisitorCount)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Allow"))
	assert.Equal(t, "method not allowed", decode(t, w)["error"])

	w = do(t, h, http.MethodPost, PathHealth)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandler_StoreUnavailable(t *testing.T) {
	h := NewHandler(brokenCounter{err: errors.New("dial tcp 10.0.0.1:6379: connection refused")}, zap.NewNop().Sugar())

	w := do(t, h, http.MethodPost, PathVisitorCount)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error": "Failed to update visitor count"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "10.0.0.1")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, h, http.MethodGet, PathVisitorCount)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error": "Failed to read visitor count"}`, w.Body.String())
}

func TestHandler_Timeout(t *testing.T) {
	h := NewHandler(blockingCounter{}, zap.NewNop().Sugar(), WithTimeout(20*time.Millisecond))

	w := do(t, h, http.MethodPost, PathVisitorCount)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandler_HealthAndIndex(t *testing.T) {
	h := NewHandler(counter.NewLocalCounter("visitors"), zap.NewNop().Sugar(), WithVersion("visitor-counter", "1.2.3"))

	w := do(t, h, http.MethodGet, PathHealth)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "healthy"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	m := decode(t, w)
	assert.Equal(t, "1.2.3", m["version"])
	assert.Contains(t, m["endpoints"], "POST "+PathVisitorCount)

	w = do(t, h, http.MethodGet, "/api/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_ConcurrentPosts(t *testing.T) {
	c := counter.NewLocalCounter("visitors")
	h := NewHandler(c, zap.NewNop().Sugar())

	const num = 100
	wg := &sync.WaitGroup{}
	for i := 0; i < num; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, PathVisitorCount, strings.NewReader(""))
			h.ServeHTTP(httptest.NewRecorder(), req)
		}()
	}
	wg.Wait()

	w := do(t, h, http.MethodGet, PathVisitorCount)
	assert.JSONEq(t, fmt.Sprintf(`{"count": %d}`, num), w.Body.String())
}

func TestHandler_CounterAtRoot(t *testing.T) {
	h := NewHandler(counter.NewLocalCounter("visitors"), zap.NewNop().Sugar(), WithCounterAtRoot())

	w := do(t, h, http.MethodPost, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count": 1}`, w.Body.String())

	w = do(t, h, http.MethodOptions, "/")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodPost, PathVisitorCount)
	assert.JSONEq(t, `{"count": 2}`, w.Body.String())
}
