package executor

import (
	"github.com/fedsql/fedsql/internal/errors"
	"github.com/fedsql/fedsql/internal/sql/parser"
	"github.com/fedsql/fedsql/internal/sql/planner"
	"github.com/fedsql/fedsql/internal/sql/types"
)

// aggregateBatch hash-groups the input by the step's GROUP BY
// expressions and computes the step's aggregate calls per group.
// Without GROUP BY there is exactly one group, even over zero rows.
// HAVING filters groups strictly after aggregation.
func aggregateBatch(step *planner.ExecutionStep, input *types.RowBatch, ev *evaluator, st *execState) (*types.RowBatch, error) {
	schema := aggregateSchema(step)

	type group struct {
		keyValues types.Row
		accs      []*accumulator
	}
	newGroup := func(keyValues types.Row) *group {
		g := &group{keyValues: keyValues, accs: make([]*accumulator, len(step.Aggregates))}
		for i, call := range step.Aggregates {
			g.accs[i] = &accumulator{fn: call.Name}
		}
		return g
	}

	groups := make(map[string]*group)
	var order []string // first-appearance order, deterministic output

	global := len(step.GroupBy) == 0
	if global {
		groups[""] = newGroup(nil)
		order = append(order, "")
	}

	for ri, row := range input.Rows {
		key := ""
		var keyValues types.Row
		if !global {
			keyValues = make(types.Row, len(step.GroupBy))
			canonical := make([]types.Value, len(step.GroupBy))
			bad := false
			for i, expr := range step.GroupBy {
				v, err := ev.eval(expr, input.Schema, row)
				if err != nil {
					st.addRowError(rowError(err, ri+1))
					bad = true
					break
				}
				keyValues[i] = v
				c, err := types.CanonicalKey(v)
				if err != nil {
					st.addRowError(rowError(
						errors.CoercionError(expr.String(), v.Any(), "grouping key"), ri+1))
					bad = true
					break
				}
				canonical[i] = c
			}
			if bad {
				continue
			}
			key = types.EncodeKey(canonical...)
		}

		g, ok := groups[key]
		if !ok {
			g = newGroup(keyValues)
			groups[key] = g
			order = append(order, key)
		}

		for i, call := range step.Aggregates {
			if err := g.accs[i].update(call, input.Schema, row, ev); err != nil {
				st.addRowError(rowError(err, ri+1))
			}
		}
	}

	out := types.NewRowBatch(schema)
	for _, key := range order {
		g := groups[key]
		row := make(types.Row, 0, len(schema.Columns))
		row = append(row, g.keyValues...)
		for _, acc := range g.accs {
			row = append(row, acc.final())
		}
		out.Append(row)
	}

	if step.Having != nil {
		out = filterBatch(out, step.Having, ev, st)
	}
	return out, nil
}

// aggregateSchema is the layout of an aggregated batch: the GROUP BY
// columns first, then one column per aggregate call, named by the
// call's canonical rendering so later clauses can resolve it.
func aggregateSchema(step *planner.ExecutionStep) types.Schema {
	schema := types.Schema{}
	for _, expr := range step.GroupBy {
		if id, ok := expr.(*parser.Identifier); ok {
			schema.Columns = append(schema.Columns, types.Column{Name: id.Name, Qualifier: id.Qualifier})
			continue
		}
		schema.Columns = append(schema.Columns, types.Column{Name: expr.String()})
	}
	for _, call := range step.Aggregates {
		schema.Columns = append(schema.Columns, types.Column{Name: call.String()})
	}
	return schema
}

// accumulator folds one aggregate over one group. NULL inputs are
// skipped, per SQL; COUNT(*) counts rows regardless.
type accumulator struct {
	fn       string
	count    int64
	sumInt   int64
	sumFloat float64
	isFloat  bool
	seen     bool
	min, max types.Value
}

func (a *accumulator) update(call *parser.FunctionCall, schema types.Schema, row types.Row, ev *evaluator) error {
	if call.Star {
		a.count++
		return nil
	}

	v, err := ev.eval(call.Args[0], schema, row)
	if err != nil {
		return err
	}
	if v.IsNull() {
		return nil
	}

	switch a.fn {
	case "COUNT":
		a.count++

	case "SUM", "AVG":
		n, err := types.ToNumber(v)
		if err != nil {
			return errors.CoercionError(call.Args[0].String(), v.Any(), "number")
		}
		a.count++
		a.seen = true
		if n.Kind == types.KindFloat {
			a.isFloat = true
			a.sumFloat += n.Float
		} else {
			a.sumInt += n.Int
			a.sumFloat += float64(n.Int)
		}

	case "MIN":
		if !a.seen {
			a.min = v
			a.seen = true
			return nil
		}
		cmp, err := types.CompareValues(v, a.min)
		if err != nil {
			return errors.CoercionError(call.Args[0].String(), v.Any(), a.min.Kind.String())
		}
		if cmp < 0 {
			a.min = v
		}

	case "MAX":
		if !a.seen {
			a.max = v
			a.seen = true
			return nil
		}
		cmp, err := types.CompareValues(v, a.max)
		if err != nil {
			return errors.CoercionError(call.Args[0].String(), v.Any(), a.max.Kind.String())
		}
		if cmp > 0 {
			a.max = v
		}
	}
	return nil
}

func (a *accumulator) final() types.Value {
	switch a.fn {
	case "COUNT":
		return types.NewInt(a.count)
	case "SUM":
		if !a.seen {
			return types.Null()
		}
		if a.isFloat {
			return types.NewFloat(a.sumFloat)
		}
		return types.NewInt(a.sumInt)
	case "AVG":
		if a.count == 0 {
			return types.Null()
		}
		return types.NewFloat(a.sumFloat / float64(a.count))
	case "MIN":
		if !a.seen {
			return types.Null()
		}
		return a.min
	case "MAX":
		if !a.seen {
			return types.Null()
		}
		return a.max
	}
	return types.Null()
}
