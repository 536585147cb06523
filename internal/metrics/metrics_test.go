package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tckz/visitor-counter/internal/counter"
)

type failingCounter struct{}

func (failingCounter) Up(ctx context.Context) (int64, error) {
	return 0, counter.ErrStoreUnavailable
}

func (failingCounter) Get(ctx context.Context) (int64, error) {
	return 0, counter.ErrStoreUnavailable
}

func TestInstrument(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := New(reg)
	c := m.Instrument(counter.NewLocalCounter("visitors"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Up(ctx)
		require.NoError(t, err)
	}
	v, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.operations.WithLabelValues("up", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.operations.WithLabelValues("get", "ok")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.value))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestInstrument_Error(t *testing.T) {
	m := New(prometheus.NewRegistry())
	c := m.Instrument(failingCounter{})

	_, err := c.Up(context.Background())
	assert.True(t, errors.Is(err, counter.ErrStoreUnavailable))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.operations.WithLabelValues("up", "error")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.value))
}
