// Package driver connects the federation engine to external data
// sources. Each driver translates a RemoteQuery, the planner's
// push-down unit, into the source's native access path and returns
// rows in engine representation.
package driver

import (
	"context"

	"github.com/fedsql/fedsql/internal/sql/types"
)

// FilterOp is a push-down comparison operator.
type FilterOp int

const (
	OpEq FilterOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpIsNull
	OpIsNotNull
)

// String returns the SQL spelling of the operator.
func (op FilterOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	default:
		return "?"
	}
}

// Filter is one pushed-down conjunct: column op value. Value is unused
// for the null-check operators.
type Filter struct {
	Column string
	Op     FilterOp
	Value  types.Value
}

// RemoteQuery describes one fetch against a single table of a single
// source. Filters combine with AND. An empty Columns list requests
// every column. Limit 0 means no limit.
type RemoteQuery struct {
	Table   string
	Columns []string
	Filters []Filter
	Limit   int
}

// Driver fetches rows from one external data source.
type Driver interface {
	// Name returns the source name the driver is registered under.
	Name() string
	// Kind identifies the backend family (memory, postgres, sqlite,
	// mongo, redis).
	Kind() string
	// Fetch runs the remote query and returns the matching rows. The
	// returned batch is owned by the caller.
	Fetch(ctx context.Context, query *RemoteQuery) (*types.RowBatch, error)
	// Ping verifies the source is reachable.
	Ping(ctx context.Context) error
	// Close releases the underlying connection.
	Close() error
}

// MatchFilter evaluates one filter against a value using SQL
// comparison semantics: comparisons involving NULL or values that
// cannot be coerced to a common kind do not match.
func MatchFilter(v types.Value, op FilterOp, want types.Value) bool {
	switch op {
	case OpIsNull:
		return v.IsNull()
	case OpIsNotNull:
		return !v.IsNull()
	}

	if v.IsNull() || want.IsNull() {
		return false
	}
	cmp, err := types.CompareValues(v, want)
	if err != nil {
		return false
	}

	switch op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	default:
		return false
	}
}

// MatchFilters reports whether a row of named values satisfies every
// filter. Columns absent from the row are treated as NULL.
func MatchFilters(values map[string]types.Value, filters []Filter) bool {
	for _, f := range filters {
		v, ok := values[f.Column]
		if !ok {
			v = types.Null()
		}
		if !MatchFilter(v, f.Op, f.Value) {
			return false
		}
	}
	return true
}

// ctxDone is a cheap cancellation check for drivers that iterate
// locally instead of waiting on a network round trip.
func ctxDone(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
