package counter

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	_ Counter  = (*PostgresCounter)(nil)
	_ Recorder = (*PostgresCounter)(nil)
)

// PostgresCounter keeps one row per counter id. Up is a single upsert
// statement, so the row lock taken by ON CONFLICT serializes writers.
type PostgresCounter struct {
	pool  *pgxpool.Pool
	table string
	id    string

	upSQL     string
	getSQL    string
	recordSQL string
}

func NewPostgresCounter(pool *pgxpool.Pool, table, id string) *PostgresCounter {
	t := pgx.Identifier{table}.Sanitize()
	upSQL := fmt.Sprintf(`INSERT INTO %[1]s (id, count, last_updated) VALUES ($1, 1, now())
ON CONFLICT (id) DO UPDATE SET count = %[1]s.count + 1, last_updated = now()
RETURNING count`, t)

	return &PostgresCounter{
		pool:      pool,
		table:     t,
		id:        id,
		upSQL:     upSQL,
		getSQL:    fmt.Sprintf(`SELECT count FROM %s WHERE id = $1`, t),
		recordSQL: fmt.Sprintf(`SELECT count, last_updated FROM %s WHERE id = $1`, t),
	}
}

// EnsureSchema creates the counter table when it does not exist.
func (c *PostgresCounter) EnsureSchema(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	count BIGINT NOT NULL,
	last_updated TIMESTAMPTZ NOT NULL
)`, c.table))
	if err != nil {
		return unavailable("pgx.Exec", err)
	}
	return nil
}

func (c *PostgresCounter) Get(ctx context.Context) (int64, error) {
	var n int64
	err := c.pool.QueryRow(ctx, c.getSQL, c.id).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable("pgx.QueryRow", err)
	}
	return n, nil
}

func (c *PostgresCounter) Up(ctx context.Context) (int64, error) {
	var n int64
	if err := c.pool.QueryRow(ctx, c.upSQL, c.id).Scan(&n); err != nil {
		return 0, unavailable("pgx.QueryRow", err)
	}
	return n, nil
}

func (c *PostgresCounter) Record(ctx context.Context) (Record, error) {
	rec := Record{ID: c.id}
	err := c.pool.QueryRow(ctx, c.recordSQL, c.id).Scan(&rec.Count, &rec.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, nil
	}
	if err != nil {
		return Record{}, unavailable("pgx.QueryRow", err)
	}
	return rec, nil
}
