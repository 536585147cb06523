package counter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// testCounterContract runs the behaviour every adapter must share against
// fresh counters produced by newCounter.
func testCounterContract(t *testing.T, newCounter func(t *testing.T) Counter) {
	t.Run("absent counter starts at one", func(t *testing.T) {
		c := newCounter(t)
		ctx := context.Background()

		v, err := c.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), v)

		n, err := c.Up(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		v, err = c.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
	})

	t.Run("get does not mutate", func(t *testing.T) {
		c := newCounter(t)
		ctx := context.Background()

		_, err := c.Up(ctx)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			v, err := c.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), v)
		}
		n, err := c.Up(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	for _, num := range []int{1, 10, 100} {
		t.Run(fmt.Sprintf("no lost updates n=%d", num), func(t *testing.T) {
			c := newCounter(t)
			ctx := context.Background()

			var mu sync.Mutex
			got := make([]int64, 0, num)
			eg, ctx := errgroup.WithContext(ctx)
			for i := 0; i < num; i++ {
				eg.Go(func() error {
					n, err := c.Up(ctx)
					if err != nil {
						return err
					}
					mu.Lock()
					got = append(got, n)
					mu.Unlock()
					return nil
				})
			}
			require.NoError(t, eg.Wait())

			v, err := c.Get(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int64(num), v)

			// every caller saw a distinct post-increment value
			sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
			for i, n := range got {
				assert.Equal(t, int64(i+1), n)
			}
		})
	}
}
