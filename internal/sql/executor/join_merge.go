package executor

import (
	"context"

	"github.com/fedsql/fedsql/internal/errors"
	"github.com/fedsql/fedsql/internal/sql/planner"
	"github.com/fedsql/fedsql/internal/sql/types"
)

// mergeJoin walks two inputs pre-sorted on the join key with one
// forward cursor per side, emitting the cross product of each tie
// group. The planner inserts the Sort steps that guarantee the
// ordering.
type mergeJoin struct{}

func (mergeJoin) Name() string { return "merge" }

func (mergeJoin) Join(ctx context.Context, step *planner.ExecutionStep, left, right *types.RowBatch, ev *evaluator, st *execState) (*types.RowBatch, error) {
	schema := left.Schema.Concat(right.Schema)
	out := types.NewRowBatch(schema)

	leftIdx, err := left.Schema.Index(step.LeftKey.Qualifier, step.LeftKey.Name)
	if err != nil {
		return nil, errors.GetError(err).WithStage(errors.StageExecute).WithStep(step.ID)
	}
	rightIdx, err := right.Schema.Index(step.RightKey.Qualifier, step.RightKey.Name)
	if err != nil {
		return nil, errors.GetError(err).WithStage(errors.StageExecute).WithStep(step.ID)
	}

	leftWidth := len(left.Schema.Columns)
	rightWidth := len(right.Schema.Columns)

	emitLeft := func(l types.Row) {
		if preservesLeft(step.JoinType) {
			out.Append(combineRows(l, nullRow(rightWidth)))
		}
	}
	emitRight := func(r types.Row) {
		if preservesRight(step.JoinType) {
			out.Append(combineRows(nullRow(leftWidth), r))
		}
	}

	i, j := 0, 0
	for i < len(left.Rows) && j < len(right.Rows) {
		if (i+j)%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.FromContext(err, errors.StageExecute)
			}
		}

		lv := left.Rows[i].Get(leftIdx)
		rv := right.Rows[j].Get(rightIdx)

		// NULL keys sort first and never match anything.
		if lv.IsNull() {
			emitLeft(left.Rows[i])
			i++
			continue
		}
		if rv.IsNull() {
			emitRight(right.Rows[j])
			j++
			continue
		}

		cmp, err := types.CompareValues(lv, rv)
		if err != nil {
			return nil, errors.JoinKeyCoercionError(step.LeftKey.String(), lv.Any()).
				WithStep(step.ID).
				WithRow(i + 1)
		}
		switch {
		case cmp < 0:
			emitLeft(left.Rows[i])
			i++
		case cmp > 0:
			emitRight(right.Rows[j])
			j++
		default:
			// Tie group: every left row with this key joins every
			// right row with it.
			iEnd := i + 1
			for iEnd < len(left.Rows) {
				v := left.Rows[iEnd].Get(leftIdx)
				if v.IsNull() {
					break
				}
				if c, err := types.CompareValues(v, lv); err != nil || c != 0 {
					break
				}
				iEnd++
			}
			jEnd := j + 1
			for jEnd < len(right.Rows) {
				v := right.Rows[jEnd].Get(rightIdx)
				if v.IsNull() {
					break
				}
				if c, err := types.CompareValues(v, rv); err != nil || c != 0 {
					break
				}
				jEnd++
			}
			for a := i; a < iEnd; a++ {
				for b := j; b < jEnd; b++ {
					out.Append(combineRows(left.Rows[a], right.Rows[b]))
				}
			}
			i, j = iEnd, jEnd
		}
	}

	for ; i < len(left.Rows); i++ {
		emitLeft(left.Rows[i])
	}
	for ; j < len(right.Rows); j++ {
		emitRight(right.Rows[j])
	}
	return out, nil
}
