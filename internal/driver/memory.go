package driver

import (
	"context"
	"sync"

	"github.com/fedsql/fedsql/internal/errors"
	"github.com/fedsql/fedsql/internal/sql/types"
)

// MemoryDriver serves seeded in-process tables. It behaves like a real
// remote: filters, projection and limit apply inside Fetch, and every
// returned batch is an independent copy of the stored data.
type MemoryDriver struct {
	name   string
	mu     sync.RWMutex
	tables map[string]*memTable
}

type memTable struct {
	columns []string
	rows    []types.Row
}

// NewMemoryDriver creates an empty memory driver for a source name.
func NewMemoryDriver(name string) *MemoryDriver {
	return &MemoryDriver{
		name:   name,
		tables: make(map[string]*memTable),
	}
}

// Name returns the source name.
func (d *MemoryDriver) Name() string { return d.name }

// Kind returns "memory".
func (d *MemoryDriver) Kind() string { return "memory" }

// Seed installs a table. Row values go through the standard value
// conversion, so plain Go ints, floats, strings and nils work.
func (d *MemoryDriver) Seed(table string, columns []string, rows [][]any) {
	converted := make([]types.Row, len(rows))
	for i, raw := range rows {
		row := make(types.Row, len(columns))
		for j := range columns {
			if j < len(raw) {
				row[j] = types.FromAny(raw[j])
			} else {
				row[j] = types.Null()
			}
		}
		converted[i] = row
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[table] = &memTable{columns: append([]string(nil), columns...), rows: converted}
}

// SeedMaps installs a table from row maps, with an explicit column
// order.
func (d *MemoryDriver) SeedMaps(table string, columns []string, rows []map[string]any) {
	raw := make([][]any, len(rows))
	for i, m := range rows {
		vals := make([]any, len(columns))
		for j, col := range columns {
			vals[j] = m[col]
		}
		raw[i] = vals
	}
	d.Seed(table, columns, raw)
}

// Fetch returns the matching rows of a seeded table.
func (d *MemoryDriver) Fetch(ctx context.Context, query *RemoteQuery) (*types.RowBatch, error) {
	if err := ctxDone(ctx); err != nil {
		return nil, err
	}

	d.mu.RLock()
	table, ok := d.tables[query.Table]
	d.mu.RUnlock()
	if !ok {
		return nil, errors.UnknownTableError(d.name, query.Table)
	}

	outCols := table.columns
	if len(query.Columns) > 0 {
		outCols = query.Columns
	}

	colIndex := make(map[string]int, len(table.columns))
	for i, col := range table.columns {
		colIndex[col] = i
	}
	for _, col := range outCols {
		if _, ok := colIndex[col]; !ok {
			return nil, errors.ColumnNotFoundError(query.Table, col).WithSource(d.name)
		}
	}

	schema := types.Schema{}
	for _, col := range outCols {
		schema.Columns = append(schema.Columns, types.Column{Name: col})
	}
	batch := types.NewRowBatch(schema)

	for _, row := range table.rows {
		if err := ctxDone(ctx); err != nil {
			return nil, err
		}
		if !d.rowMatches(row, colIndex, query.Filters) {
			continue
		}
		out := make(types.Row, len(outCols))
		for i, col := range outCols {
			out[i] = row[colIndex[col]]
		}
		batch.Append(out)
		if query.Limit > 0 && batch.NumRows() >= query.Limit {
			break
		}
	}
	return batch, nil
}

func (d *MemoryDriver) rowMatches(row types.Row, colIndex map[string]int, filters []Filter) bool {
	for _, f := range filters {
		v := types.Null()
		if i, ok := colIndex[f.Column]; ok {
			v = row.Get(i)
		}
		if !MatchFilter(v, f.Op, f.Value) {
			return false
		}
	}
	return true
}

// Ping always succeeds.
func (d *MemoryDriver) Ping(context.Context) error { return nil }

// Close drops the seeded tables.
func (d *MemoryDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables = make(map[string]*memTable)
	return nil
}
