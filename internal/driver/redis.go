package driver

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/fedsql/fedsql/internal/sql/types"
)

// redisScanCount is the batch size for SCAN iterations.
const redisScanCount = 100

// RedisDriver serves tables stored as hashes under "table:id" keys.
// Redis has no server-side filtering for hashes, so filters apply
// client-side after HGETALL; field values arrive as strings and rely
// on numeric-string coercion during comparison.
type RedisDriver struct {
	name   string
	client *redis.Client
}

// NewRedisDriver connects to a Redis instance.
func NewRedisDriver(name, addr string, db int) *RedisDriver {
	return &RedisDriver{
		name:   name,
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
	}
}

// Name returns the source name.
func (d *RedisDriver) Name() string { return d.name }

// Kind returns "redis".
func (d *RedisDriver) Kind() string { return "redis" }

// Fetch scans "table:*" keys and filters the hashes locally.
func (d *RedisDriver) Fetch(ctx context.Context, query *RemoteQuery) (*types.RowBatch, error) {
	pattern := query.Table + ":*"

	var docs []map[string]types.Value
	var cursor uint64
	for {
		keys, next, err := d.client.Scan(ctx, cursor, pattern, redisScanCount).Result()
		if err != nil {
			return nil, err
		}

		for _, key := range keys {
			hash, err := d.client.HGetAll(ctx, key).Result()
			if err != nil {
				return nil, err
			}
			if len(hash) == 0 {
				continue
			}

			row := make(map[string]types.Value, len(hash))
			for k, v := range hash {
				row[k] = types.FromAny(v)
			}
			if !MatchFilters(row, query.Filters) {
				continue
			}
			docs = append(docs, row)

			if query.Limit > 0 && len(docs) >= query.Limit {
				return docsToBatch(d.columnsFor(query, docs), docs), nil
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return docsToBatch(d.columnsFor(query, docs), docs), nil
}

func (d *RedisDriver) columnsFor(query *RemoteQuery, docs []map[string]types.Value) []string {
	if len(query.Columns) > 0 {
		return query.Columns
	}
	return docColumns(docs)
}

// Ping verifies the instance is reachable.
func (d *RedisDriver) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

// Close closes the client.
func (d *RedisDriver) Close() error {
	return d.client.Close()
}
