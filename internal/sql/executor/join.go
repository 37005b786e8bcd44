package executor

import (
	"context"

	"github.com/fedsql/fedsql/internal/errors"
	"github.com/fedsql/fedsql/internal/sql/parser"
	"github.com/fedsql/fedsql/internal/sql/planner"
	"github.com/fedsql/fedsql/internal/sql/types"
)

// JoinOperator is one join algorithm. The planner picks the variant
// once; the executor never re-dispatches inside the row loop. All
// variants produce the same row multiset for the same logical join,
// only performance differs.
type JoinOperator interface {
	Name() string
	Join(ctx context.Context, step *planner.ExecutionStep, left, right *types.RowBatch, ev *evaluator, st *execState) (*types.RowBatch, error)
}

// JoinOperatorFor maps a planned strategy to its operator.
func JoinOperatorFor(strategy planner.Strategy) JoinOperator {
	switch strategy {
	case planner.HashJoin:
		return hashJoin{}
	case planner.MergeJoin:
		return mergeJoin{}
	default:
		return nestedLoopJoin{}
	}
}

// preservesLeft reports whether unmatched left rows survive the join.
func preservesLeft(t parser.JoinType) bool {
	return t == parser.LeftJoin || t == parser.FullJoin
}

func preservesRight(t parser.JoinType) bool {
	return t == parser.RightJoin || t == parser.FullJoin
}

func combineRows(l, r types.Row) types.Row {
	out := make(types.Row, 0, len(l)+len(r))
	out = append(out, l...)
	return append(out, r...)
}

func nullRow(n int) types.Row {
	row := make(types.Row, n)
	for i := range row {
		row[i] = types.Null()
	}
	return row
}

// checkEvery is how many outer rows a join processes between context
// checks.
const checkEvery = 1024

// nestedLoopJoin evaluates the full join condition for every row pair.
// It is the only operator that handles non-equi conditions.
type nestedLoopJoin struct{}

func (nestedLoopJoin) Name() string { return "nested-loop" }

func (nestedLoopJoin) Join(ctx context.Context, step *planner.ExecutionStep, left, right *types.RowBatch, ev *evaluator, st *execState) (*types.RowBatch, error) {
	schema := left.Schema.Concat(right.Schema)
	out := types.NewRowBatch(schema)
	rightMatched := make([]bool, len(right.Rows))

	for li, l := range left.Rows {
		if li%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.FromContext(err, errors.StageExecute)
			}
		}
		matched := false
		for ri, r := range right.Rows {
			row := combineRows(l, r)
			ok, err := ev.truthy(step.Condition, schema, row)
			if err != nil {
				st.addRowError(rowError(err, li+1))
				continue
			}
			if ok {
				out.Append(row)
				matched = true
				rightMatched[ri] = true
			}
		}
		if !matched && preservesLeft(step.JoinType) {
			out.Append(combineRows(l, nullRow(len(right.Schema.Columns))))
		}
	}

	if preservesRight(step.JoinType) {
		for ri, r := range right.Rows {
			if !rightMatched[ri] {
				out.Append(combineRows(nullRow(len(left.Schema.Columns)), r))
			}
		}
	}
	return out, nil
}

// hashJoin builds a hash table on the smaller input and probes with
// the larger. Requires the planner-extracted equi-key pair.
type hashJoin struct{}

func (hashJoin) Name() string { return "hash" }

func (hashJoin) Join(ctx context.Context, step *planner.ExecutionStep, left, right *types.RowBatch, ev *evaluator, st *execState) (*types.RowBatch, error) {
	schema := left.Schema.Concat(right.Schema)
	out := types.NewRowBatch(schema)

	leftKeys, err := joinKeys(left, step.LeftKey, step.ID)
	if err != nil {
		return nil, err
	}
	rightKeys, err := joinKeys(right, step.RightKey, step.ID)
	if err != nil {
		return nil, err
	}

	// Build on the smaller actual input, not the estimate.
	buildLeft := len(left.Rows) <= len(right.Rows)
	build, probe := left, right
	buildKeys, probeKeys := leftKeys, rightKeys
	if !buildLeft {
		build, probe = right, left
		buildKeys, probeKeys = rightKeys, leftKeys
	}

	index := make(map[string][]int, len(build.Rows))
	for i, key := range buildKeys {
		if key == "" {
			continue // NULL keys never match
		}
		index[key] = append(index[key], i)
	}
	buildMatched := make([]bool, len(build.Rows))

	// Preservation follows the logical side, not the build/probe role.
	buildPreserved := preservesLeft(step.JoinType)
	probePreserved := preservesRight(step.JoinType)
	if !buildLeft {
		buildPreserved, probePreserved = probePreserved, buildPreserved
	}

	emit := func(buildRow, probeRow types.Row) {
		if buildLeft {
			out.Append(combineRows(buildRow, probeRow))
		} else {
			out.Append(combineRows(probeRow, buildRow))
		}
	}

	for pi, p := range probe.Rows {
		if pi%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.FromContext(err, errors.StageExecute)
			}
		}
		key := probeKeys[pi]
		var matches []int
		if key != "" {
			matches = index[key]
		}
		if len(matches) == 0 {
			if probePreserved {
				if buildLeft {
					out.Append(combineRows(nullRow(len(build.Schema.Columns)), p))
				} else {
					out.Append(combineRows(p, nullRow(len(build.Schema.Columns))))
				}
			}
			continue
		}
		for _, bi := range matches {
			buildMatched[bi] = true
			emit(build.Rows[bi], p)
		}
	}

	if buildPreserved {
		nulls := nullRow(len(probe.Schema.Columns))
		for bi, b := range build.Rows {
			if !buildMatched[bi] {
				if buildLeft {
					out.Append(combineRows(b, nulls))
				} else {
					out.Append(combineRows(nulls, b))
				}
			}
		}
	}
	return out, nil
}

// joinKeys extracts the canonical hashable key of every row. NULL keys
// encode as "" and never match. A value that cannot serve as a key is
// fatal for the join step, not a row-level error.
func joinKeys(batch *types.RowBatch, key *parser.Identifier, stepID int) ([]string, error) {
	if key == nil {
		return nil, errors.InternalErrorf("join step %d has no equi-key", stepID).
			WithStage(errors.StageExecute).
			WithStep(stepID)
	}
	idx, err := batch.Schema.Index(key.Qualifier, key.Name)
	if err != nil {
		return nil, errors.GetError(err).WithStage(errors.StageExecute).WithStep(stepID)
	}

	keys := make([]string, len(batch.Rows))
	for i, row := range batch.Rows {
		v := row.Get(idx)
		if v.IsNull() {
			continue
		}
		canonical, err := types.CanonicalKey(v)
		if err != nil {
			return nil, errors.JoinKeyCoercionError(key.String(), v.Any()).
				WithStep(stepID).
				WithRow(i + 1)
		}
		keys[i] = types.EncodeKey(canonical)
	}
	return keys, nil
}
