package counter

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/datastore"
)

// DefaultMaxAttempts is how many times a conflicting transaction is run
// before Up gives up.
const DefaultMaxAttempts = 3

// MinMaxAttempts leaves room for at least one retry after a conflict.
const MinMaxAttempts = 2

type counterEntity struct {
	Count       int64     `datastore:"count"`
	LastUpdated time.Time `datastore:"lastUpdated,noindex"`
}

var (
	_ Counter  = (*DatastoreCounter)(nil)
	_ Recorder = (*DatastoreCounter)(nil)
)

// DatastoreCounter keeps the counter in a single entity and increments it in
// a read-modify-write transaction.
type DatastoreCounter struct {
	client      *datastore.Client
	key         *datastore.Key
	maxAttempts int
	now         func() time.Time
	runInTx     func(ctx context.Context, f func(tx *datastore.Transaction) error, opts ...datastore.TransactionOption) (*datastore.Commit, error)
}

type DatastoreOption func(c *DatastoreCounter)

func WithNamespace(ns string) DatastoreOption {
	return DatastoreOption(func(c *DatastoreCounter) {
		c.key.Namespace = ns
	})
}

// WithMaxAttempts ignores n below MinMaxAttempts.
func WithMaxAttempts(n int) DatastoreOption {
	return DatastoreOption(func(c *DatastoreCounter) {
		if n >= MinMaxAttempts {
			c.maxAttempts = n
		}
	})
}

func NewDatastoreCounter(client *datastore.Client, kind, id string, opts ...DatastoreOption) *DatastoreCounter {
	c := &DatastoreCounter{
		client:      client,
		key:         datastore.NameKey(kind, id, nil),
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
	if client != nil {
		c.runInTx = client.RunInTransaction
	}
	for _, e := range opts {
		e(c)
	}
	return c
}

func (c *DatastoreCounter) Get(ctx context.Context) (int64, error) {
	var rec counterEntity
	err := c.client.Get(ctx, c.key, &rec)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable("datastore.Get", err)
	}
	return rec.Count, nil
}

func (c *DatastoreCounter) Up(ctx context.Context) (int64, error) {
	var n int64
	_, err := c.runInTx(ctx, func(tx *datastore.Transaction) error {
		// the func is run again when the commit loses to a concurrent transaction
		var rec counterEntity
		if err := tx.Get(c.key, &rec); err != nil && !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}

		rec.Count++
		rec.LastUpdated = c.now().UTC()
		if _, err := tx.Put(c.key, &rec); err != nil {
			return err
		}
		n = rec.Count
		return nil
	}, datastore.MaxAttempts(c.maxAttempts))
	if err != nil {
		return 0, unavailable("datastore.RunInTransaction", err)
	}
	return n, nil
}

func (c *DatastoreCounter) Record(ctx context.Context) (Record, error) {
	var rec counterEntity
	err := c.client.Get(ctx, c.key, &rec)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return Record{ID: c.key.Name}, nil
	}
	if err != nil {
		return Record{}, unavailable("datastore.Get", err)
	}
	return Record{ID: c.key.Name, Count: rec.Count, LastUpdated: rec.LastUpdated}, nil
}
