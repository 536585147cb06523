package counter

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

var (
	_ Counter  = (*LocalCounter)(nil)
	_ Recorder = (*LocalCounter)(nil)
)

// LocalCounter keeps the counter in process memory. It is reset whenever the
// process restarts.
type LocalCounter struct {
	id    string
	mu    sync.Mutex
	cache *cache.Cache
	now   func() time.Time
}

func NewLocalCounter(id string) *LocalCounter {
	return &LocalCounter{
		id:    id,
		cache: cache.New(cache.NoExpiration, 0),
		now:   time.Now,
	}
}

func (c *LocalCounter) Get(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, unavailable("local.Get", err)
	}
	return c.load().Count, nil
}

func (c *LocalCounter) Up(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// nothing has been written yet, so a cancelled caller leaves the value untouched
	if err := ctx.Err(); err != nil {
		return 0, unavailable("local.Up", err)
	}

	rec := c.load()
	rec.Count++
	rec.LastUpdated = c.now().UTC()
	c.cache.Set(c.id, rec, cache.NoExpiration)
	return rec.Count, nil
}

func (c *LocalCounter) Record(ctx context.Context) (Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Record{}, unavailable("local.Record", err)
	}
	return c.load(), nil
}

// load must be called with mu held.
func (c *LocalCounter) load() Record {
	if v, ok := c.cache.Get(c.id); ok {
		return v.(Record)
	}
	return Record{ID: c.id}
}
