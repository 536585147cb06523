package counter

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisFieldCount       = "count"
	redisFieldLastUpdated = "lastUpdated"
)

var (
	_ Counter  = (*RedisCounter)(nil)
	_ Recorder = (*RedisCounter)(nil)
)

// RedisCounter stores the counter in a hash. HINCRBY treats a missing field as
// 0, so the first increment yields 1 and Redis serializes concurrent writers.
type RedisCounter struct {
	key    string
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisCounter(client redis.UniversalClient, key string) *RedisCounter {
	return &RedisCounter{
		key:    key,
		client: client,
		now:    time.Now,
	}
}

func (c *RedisCounter) Get(ctx context.Context) (int64, error) {
	n, err := c.client.HGet(ctx, c.key, redisFieldCount).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable("redis.HGet", err)
	}
	return n, nil
}

func (c *RedisCounter) Up(ctx context.Context) (int64, error) {
	var incr *redis.IntCmd
	// MULTI/EXEC keeps the timestamp and the count in step
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, c.key, redisFieldCount, 1)
		pipe.HSet(ctx, c.key, redisFieldLastUpdated, c.now().UTC().Format(time.RFC3339Nano))
		return nil
	})
	if err != nil {
		return 0, unavailable("redis.TxPipelined", err)
	}
	return incr.Val(), nil
}

// Record reads the whole hash.
func (c *RedisCounter) Record(ctx context.Context) (Record, error) {
	m, err := c.client.HGetAll(ctx, c.key).Result()
	if err != nil {
		return Record{}, unavailable("redis.HGetAll", err)
	}
	rec := Record{ID: c.key}
	if v, ok := m[redisFieldCount]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Record{}, unavailable("strconv.ParseInt", err)
		}
		rec.Count = n
	}
	if v, ok := m[redisFieldLastUpdated]; ok {
		// advisory only, ignore a malformed value
		rec.LastUpdated, _ = time.Parse(time.RFC3339Nano, v)
	}
	return rec, nil
}
