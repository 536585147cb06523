package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tckz/visitor-counter/internal/api"
	"github.com/tckz/visitor-counter/internal/counter"
	"go.uber.org/zap"
)

type downCounter struct{}

func (downCounter) Up(ctx context.Context) (int64, error) {
	return 0, errors.New("down")
}

func (downCounter) Get(ctx context.Context) (int64, error) {
	return 0, errors.New("down")
}

func TestCountClient(t *testing.T) {
	srv := httptest.NewServer(api.NewHandler(counter.NewLocalCounter("visitors"), zap.NewNop().Sugar()))
	defer srv.Close()

	c := &countClient{url: srv.URL + api.PathVisitorCount, client: srv.Client()}
	ctx := context.Background()

	n, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = c.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCountClient_Error(t *testing.T) {
	srv := httptest.NewServer(api.NewHandler(downCounter{}, zap.NewNop().Sugar()))
	defer srv.Close()

	c := &countClient{url: srv.URL + api.PathVisitorCount, client: srv.Client()}
	_, err := c.Up(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=500")
	assert.Contains(t, err.Error(), "Failed to update visitor count")
}

func TestCountClient_NotCounter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	c := &countClient{url: srv.URL, client: srv.Client()}
	_, err := c.Get(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing count")
}
