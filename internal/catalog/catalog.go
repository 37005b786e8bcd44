package catalog

import (
	"sort"
	"sync"
	"time"

	"github.com/fedsql/fedsql/internal/errors"
)

// DefaultRowEstimate is assumed for tables with no recorded statistics.
const DefaultRowEstimate = 1000

// Catalog tracks the registered data sources and per-table statistics
// the planner uses for join strategy selection.
type Catalog interface {
	RegisterSource(meta *SourceMeta) error
	Source(name string) (*SourceMeta, error)
	Sources() []*SourceMeta
	SetTableStats(source, table string, stats TableStats)
	TableStats(source, table string) (TableStats, bool)
	EstimateRows(source, table string) int64
}

// SourceMeta describes one registered data source.
type SourceMeta struct {
	Name        string
	Kind        string // driver kind: memory, postgres, sqlite, mongo, redis
	Description string
}

// TableStats holds planner statistics for one remote table.
type TableStats struct {
	RowCount  int64
	UpdatedAt time.Time
}

// MemoryCatalog is the in-memory Catalog implementation. Sources are
// registered at startup; statistics update as queries observe real
// cardinalities.
type MemoryCatalog struct {
	mu      sync.RWMutex
	sources map[string]*SourceMeta
	stats   map[string]TableStats // "source.table" -> stats
}

// NewMemoryCatalog creates an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		sources: make(map[string]*SourceMeta),
		stats:   make(map[string]TableStats),
	}
}

// RegisterSource adds a source to the catalog. Registering the same
// name twice is an error.
func (c *MemoryCatalog) RegisterSource(meta *SourceMeta) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.sources[meta.Name]; exists {
		return errors.Newf(errors.DuplicateObject, "data source %q is already registered", meta.Name).
			WithSource(meta.Name)
	}
	c.sources[meta.Name] = meta
	return nil
}

// Source returns the metadata for a registered source.
func (c *MemoryCatalog) Source(name string) (*SourceMeta, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	meta, exists := c.sources[name]
	if !exists {
		return nil, errors.UnknownSourceError(name)
	}
	return meta, nil
}

// Sources returns all registered sources sorted by name.
func (c *MemoryCatalog) Sources() []*SourceMeta {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sources := make([]*SourceMeta, 0, len(c.sources))
	for _, meta := range c.sources {
		sources = append(sources, meta)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return sources
}

// SetTableStats records the observed cardinality of a table.
func (c *MemoryCatalog) SetTableStats(source, table string, stats TableStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats[source+"."+table] = stats
}

// TableStats returns the recorded statistics for a table, if any.
func (c *MemoryCatalog) TableStats(source, table string) (TableStats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats, ok := c.stats[source+"."+table]
	return stats, ok
}

// EstimateRows returns the recorded row count for a table, or
// DefaultRowEstimate when the table has never been observed.
func (c *MemoryCatalog) EstimateRows(source, table string) int64 {
	if stats, ok := c.TableStats(source, table); ok {
		return stats.RowCount
	}
	return DefaultRowEstimate
}
