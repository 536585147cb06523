package counter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStoreUnavailable is returned when the backing store could not complete
// an operation. The stored value is left as it was.
var ErrStoreUnavailable = errors.New("counter store unavailable")

// Counter is a single named visit counter.
type Counter interface {
	// Up increments the counter and returns the value after the increment.
	// An absent counter is created with the value 1.
	Up(ctx context.Context) (int64, error)
	// Get returns the current value, 0 if the counter does not exist yet.
	Get(ctx context.Context) (int64, error)
}

// Recorder is implemented by counters that can return the whole record.
type Recorder interface {
	Record(ctx context.Context) (Record, error)
}

// Record is the persisted shape of a counter.
type Record struct {
	ID          string
	Count       int64
	LastUpdated time.Time
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
