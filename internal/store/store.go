package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/datastore"
	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/tckz/visitor-counter/internal/config"
	"github.com/tckz/visitor-counter/internal/counter"
)

// Backend is the counter selected by configuration together with the
// clients it owns.
type Backend struct {
	counter.Counter
	Kind    string
	closers []func() error
}

// Close releases every client opened for the backend.
func (b *Backend) Close() error {
	var result *multierror.Error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Open connects to the store named by cfg.Store.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	b := &Backend{Kind: cfg.Store}

	switch cfg.Store {
	case config.StoreMemory:
		b.Counter = counter.NewLocalCounter(cfg.CounterID)

	case config.StoreRedis:
		cl := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:       []string{cfg.Redis.Addr},
			DialTimeout: cfg.Redis.DialTimeout,
			PoolSize:    cfg.Redis.PoolSize,
		})
		b.closers = append(b.closers, cl.Close)
		b.Counter = counter.NewRedisCounter(cl, cfg.Redis.KeyPrefix+cfg.CounterID)

	case config.StoreDatastore:
		cl, err := datastore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("datastore.NewClient: %w", err)
		}
		b.closers = append(b.closers, cl.Close)
		b.Counter = counter.NewDatastoreCounter(cl, cfg.Datastore.Kind, cfg.CounterID,
			counter.WithNamespace(cfg.Datastore.Namespace),
			counter.WithMaxAttempts(cfg.Datastore.MaxAttempts))

	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("pgxpool.New: %w", err)
		}
		b.closers = append(b.closers, func() error {
			pool.Close()
			return nil
		})
		c := counter.NewPostgresCounter(pool, cfg.Postgres.Table, cfg.CounterID)
		if err := c.EnsureSchema(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("EnsureSchema: %w", err)
		}
		b.Counter = c

	default:
		return nil, fmt.Errorf("%w: unknown store %q", config.ErrNotConfigured, cfg.Store)
	}

	return b, nil
}
