package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsql/fedsql/internal/sql/types"
	"github.com/fedsql/fedsql/internal/util/timeutil"
)

func testBatch() *types.ResultSet {
	batch := types.NewRowBatch(types.Schema{Columns: []types.Column{{Name: "v"}}})
	batch.Append(types.Row{types.NewInt(1)})
	batch.Append(types.Row{types.NewInt(2)})
	return batch
}

func TestCachePutGet(t *testing.T) {
	c := NewCache(4, time.Minute)
	c.Put("k", testBatch(), time.Minute)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, got.NumRows())

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCacheEntriesAreIsolated(t *testing.T) {
	c := NewCache(4, time.Minute)
	original := testBatch()
	c.Put("k", original, time.Minute)

	// Mutating the original or a lookup result must not leak into the
	// cached copy.
	original.Rows[0][0] = types.NewInt(99)
	first, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "1", first.Rows[0].Get(0).String())

	first.Rows[1][0] = types.Null()
	second, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "2", second.Rows[1].Get(0).String())
}

func TestCacheTTLExpiry(t *testing.T) {
	base := time.Now()
	timeutil.Now = func() time.Time { return base }
	defer func() { timeutil.Now = time.Now }()

	c := NewCache(4, time.Hour)
	c.Put("k", testBatch(), 10*time.Second)

	_, ok := c.Get("k")
	assert.True(t, ok)

	timeutil.Now = func() time.Time { return base.Add(11 * time.Second) }
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestCacheCapacityEviction(t *testing.T) {
	c := NewCache(2, time.Minute)
	c.Put("a", testBatch(), time.Minute)
	c.Put("b", testBatch(), time.Minute)
	c.Put("c", testBatch(), time.Minute)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCacheClear(t *testing.T) {
	c := NewCache(4, time.Minute)
	c.Put("a", testBatch(), time.Minute)
	c.Clear()
	assert.Zero(t, c.Len())
}

func TestCacheKey(t *testing.T) {
	base := CacheKey("SELECT u.id FROM pg.users u", nil)

	assert.Equal(t, base, CacheKey("SELECT u.id FROM pg.users u", nil))
	assert.NotEqual(t, base, CacheKey("SELECT u.name FROM pg.users u", nil))
	assert.NotEqual(t, base, CacheKey("SELECT u.id FROM pg.users u", []types.Value{types.NewInt(1)}))

	// Parameter kind participates: 1 and "1" must not collide.
	asInt := CacheKey("q", []types.Value{types.NewInt(1)})
	asStr := CacheKey("q", []types.Value{types.NewString("1")})
	assert.NotEqual(t, asInt, asStr)
}

func TestNilCacheIsInert(t *testing.T) {
	var c *Cache
	_, ok := c.Get("k")
	assert.False(t, ok)
	c.Put("k", testBatch(), time.Minute)
	c.Clear()
	assert.Zero(t, c.Len())
}

func TestStatisticsNilSafe(t *testing.T) {
	var s *Statistics
	s.RecordQuery(1)
	s.RecordFailure()
	s.RecordCacheHit()
	s.RecordCacheMiss()
	s.RecordFetch("pg", 1, 1, 1)
	s.Reset()
	snap := s.Snapshot()
	assert.Zero(t, snap.Queries)
	assert.NotNil(t, snap.Sources)
}

func TestStatisticsSnapshot(t *testing.T) {
	s := NewStatistics()
	s.RecordQuery(5)
	s.RecordQuery(3)
	s.RecordFailure()
	s.RecordCacheHit()
	s.RecordCacheMiss()
	s.RecordFetch("pg", 10, 1024, 7)
	s.RecordFetch("pg", 5, 512, 3)
	s.RecordFetch("mongo", 2, 64, 1)

	snap := s.Snapshot()
	assert.Equal(t, int64(2), snap.Queries)
	assert.Equal(t, int64(1), snap.Failures)
	assert.Equal(t, int64(8), snap.RowsReturned)
	assert.Equal(t, int64(17), snap.RowsFetched)
	assert.Equal(t, int64(1600), snap.BytesFetched)
	assert.Equal(t, SourceSnapshot{Queries: 2, Rows: 15, TimeMs: 10}, snap.Sources["pg"])

	// The snapshot is a copy, not a view.
	snap.Sources["pg"] = SourceSnapshot{}
	assert.Equal(t, int64(2), s.Snapshot().Sources["pg"].Queries)

	s.Reset()
	after := s.Snapshot()
	assert.Zero(t, after.Queries)
	assert.Empty(t, after.Sources)
}
