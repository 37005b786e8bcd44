package engine

import (
	"sync"
)

// Statistics accumulates process-lifetime counters. Increments are
// side effects of query execution and never fail the caller: every
// method is safe on a nil receiver and holds the single lock only for
// the update itself. Counters are monotonic until Reset.
type Statistics struct {
	mu           sync.Mutex
	queries      int64
	failures     int64
	cacheHits    int64
	cacheMisses  int64
	rowsReturned int64
	rowsFetched  int64
	bytesFetched int64
	perSource    map[string]*sourceCounters
}

type sourceCounters struct {
	queries int64
	rows    int64
	timeMs  int64
}

// SourceSnapshot is the per-source slice of a statistics snapshot.
type SourceSnapshot struct {
	Queries int64
	Rows    int64
	TimeMs  int64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Queries      int64
	Failures     int64
	CacheHits    int64
	CacheMisses  int64
	RowsReturned int64
	RowsFetched  int64
	BytesFetched int64
	Sources      map[string]SourceSnapshot
}

// NewStatistics creates a zeroed counter set.
func NewStatistics() *Statistics {
	return &Statistics{perSource: make(map[string]*sourceCounters)}
}

// RecordQuery counts one completed query and the rows it returned.
func (s *Statistics) RecordQuery(rowsReturned int64) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	s.rowsReturned += rowsReturned
}

// RecordFailure counts one failed query.
func (s *Statistics) RecordFailure() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
}

// RecordCacheHit counts one result served from cache.
func (s *Statistics) RecordCacheHit() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheHits++
}

// RecordCacheMiss counts one cache lookup that went to execution.
func (s *Statistics) RecordCacheMiss() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheMisses++
}

// RecordFetch counts one remote fetch against its source.
func (s *Statistics) RecordFetch(source string, rows, bytes int64, elapsedMs int64) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowsFetched += rows
	s.bytesFetched += bytes
	sc := s.perSource[source]
	if sc == nil {
		sc = &sourceCounters{}
		s.perSource[source] = sc
	}
	sc.queries++
	sc.rows += rows
	sc.timeMs += elapsedMs
}

// Snapshot copies the counters out.
func (s *Statistics) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{Sources: map[string]SourceSnapshot{}}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Queries:      s.queries,
		Failures:     s.failures,
		CacheHits:    s.cacheHits,
		CacheMisses:  s.cacheMisses,
		RowsReturned: s.rowsReturned,
		RowsFetched:  s.rowsFetched,
		BytesFetched: s.bytesFetched,
		Sources:      make(map[string]SourceSnapshot, len(s.perSource)),
	}
	for name, sc := range s.perSource {
		snap.Sources[name] = SourceSnapshot{Queries: sc.queries, Rows: sc.rows, TimeMs: sc.timeMs}
	}
	return snap
}

// Reset zeroes every counter. Only an explicit request gets here.
func (s *Statistics) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = 0
	s.failures = 0
	s.cacheHits = 0
	s.cacheMisses = 0
	s.rowsReturned = 0
	s.rowsFetched = 0
	s.bytesFetched = 0
	s.perSource = make(map[string]*sourceCounters)
}
