package executor

import (
	"sort"

	"github.com/fedsql/fedsql/internal/sql/planner"
	"github.com/fedsql/fedsql/internal/sql/types"
)

// sortBatch orders the input by the step's keys. NULLs sort first on
// ascending keys, last on descending, following the NULLs-first
// comparison in types. The sort is stable so equal keys keep their
// input order, which keeps results reproducible.
func sortBatch(keys []planner.SortKey, input *types.RowBatch, ev *evaluator, st *execState) *types.RowBatch {
	if len(keys) == 0 || len(input.Rows) < 2 {
		return input
	}

	// Evaluate every key once up front; a failing key sorts as NULL
	// and is recorded as a row error.
	keyMatrix := make([][]types.Value, len(input.Rows))
	for i, row := range input.Rows {
		vals := make([]types.Value, len(keys))
		for k, key := range keys {
			v, err := ev.eval(key.Expr, input.Schema, row)
			if err != nil {
				st.addRowError(rowError(err, i+1))
				v = types.Null()
			}
			vals[k] = v
		}
		keyMatrix[i] = vals
	}

	indices := make([]int, len(input.Rows))
	for i := range indices {
		indices[i] = i
	}

	sort.SliceStable(indices, func(x, y int) bool {
		a, b := keyMatrix[indices[x]], keyMatrix[indices[y]]
		for k, key := range keys {
			cmp, err := types.CompareValues(a[k], b[k])
			if err != nil {
				continue // incomparable keys rank equal
			}
			if cmp == 0 {
				continue
			}
			if key.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})

	out := types.NewRowBatch(input.Schema)
	for _, idx := range indices {
		out.Append(input.Rows[idx])
	}
	return out
}
