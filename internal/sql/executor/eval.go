package executor

import (
	"github.com/fedsql/fedsql/internal/errors"
	"github.com/fedsql/fedsql/internal/sql/parser"
	"github.com/fedsql/fedsql/internal/sql/types"
)

// evaluator evaluates scalar expressions against a row. Aggregate
// calls resolve to columns of an aggregated batch, published under the
// call's canonical rendering; outside an aggregation schema they fail.
type evaluator struct {
	params []types.Value
}

func (ev *evaluator) eval(expr parser.Expression, schema types.Schema, row types.Row) (types.Value, error) {
	switch e := expr.(type) {
	case *parser.Literal:
		return e.Value, nil

	case *parser.Identifier:
		idx, err := schema.Index(e.Qualifier, e.Name)
		if err != nil {
			return types.Null(), err
		}
		return row.Get(idx), nil

	case *parser.ParameterRef:
		if e.Index > len(ev.params) {
			return types.Null(), errors.InternalErrorf("parameter $%d is not bound", e.Index).
				WithStage(errors.StageExecute)
		}
		return ev.params[e.Index-1], nil

	case *parser.ParenExpr:
		return ev.eval(e.Expr, schema, row)

	case *parser.ComparisonExpr:
		return ev.evalComparison(e, schema, row)

	case *parser.BinaryExpr:
		return ev.evalBinary(e, schema, row)

	case *parser.UnaryExpr:
		return ev.evalUnary(e, schema, row)

	case *parser.IsNullExpr:
		v, err := ev.eval(e.Expr, schema, row)
		if err != nil {
			return types.Null(), err
		}
		return types.NewBool(v.IsNull() != e.Not), nil

	case *parser.FunctionCall:
		// Aggregates are computed by the aggregate step and published
		// as columns named after the call.
		idx, err := schema.Index("", e.String())
		if err != nil {
			return types.Null(), errors.InternalErrorf("aggregate %s referenced outside aggregation", e.String()).
				WithStage(errors.StageExecute)
		}
		return row.Get(idx), nil

	case *parser.Star:
		return types.Null(), errors.InternalErrorf("* cannot be evaluated as a scalar").
			WithStage(errors.StageExecute)

	default:
		return types.Null(), errors.InternalErrorf("unsupported expression %T", expr).
			WithStage(errors.StageExecute)
	}
}

// evalComparison applies SQL three-valued comparison: a NULL operand
// yields NULL, and incomparable kinds are a coercion error.
func (ev *evaluator) evalComparison(e *parser.ComparisonExpr, schema types.Schema, row types.Row) (types.Value, error) {
	left, err := ev.eval(e.Left, schema, row)
	if err != nil {
		return types.Null(), err
	}
	right, err := ev.eval(e.Right, schema, row)
	if err != nil {
		return types.Null(), err
	}
	if left.IsNull() || right.IsNull() {
		return types.Null(), nil
	}

	cmp, err := types.CompareValues(left, right)
	if err != nil {
		return types.Null(), errors.CoercionError(e.Left.String(), left.Any(), right.Kind.String())
	}

	switch e.Operator {
	case parser.TokenEqual:
		return types.NewBool(cmp == 0), nil
	case parser.TokenNotEqual:
		return types.NewBool(cmp != 0), nil
	case parser.TokenLess:
		return types.NewBool(cmp < 0), nil
	case parser.TokenLessEqual:
		return types.NewBool(cmp <= 0), nil
	case parser.TokenGreater:
		return types.NewBool(cmp > 0), nil
	case parser.TokenGreaterEqual:
		return types.NewBool(cmp >= 0), nil
	default:
		return types.Null(), errors.InternalErrorf("unsupported comparison operator %s", e.Operator)
	}
}

func (ev *evaluator) evalBinary(e *parser.BinaryExpr, schema types.Schema, row types.Row) (types.Value, error) {
	switch e.Operator {
	case parser.TokenAnd, parser.TokenOr:
		return ev.evalLogical(e, schema, row)
	}

	left, err := ev.eval(e.Left, schema, row)
	if err != nil {
		return types.Null(), err
	}
	right, err := ev.eval(e.Right, schema, row)
	if err != nil {
		return types.Null(), err
	}
	if left.IsNull() || right.IsNull() {
		return types.Null(), nil
	}
	return arithmetic(e, left, right)
}

// evalLogical implements three-valued AND/OR. A dominant operand
// (FALSE for AND, TRUE for OR) decides the result even when the other
// side is NULL.
func (ev *evaluator) evalLogical(e *parser.BinaryExpr, schema types.Schema, row types.Row) (types.Value, error) {
	left, err := ev.evalBool(e.Left, schema, row)
	if err != nil {
		return types.Null(), err
	}
	right, err := ev.evalBool(e.Right, schema, row)
	if err != nil {
		return types.Null(), err
	}

	if e.Operator == parser.TokenAnd {
		switch {
		case !left.IsNull() && !left.Bool, !right.IsNull() && !right.Bool:
			return types.NewBool(false), nil
		case left.IsNull() || right.IsNull():
			return types.Null(), nil
		default:
			return types.NewBool(true), nil
		}
	}
	switch {
	case !left.IsNull() && left.Bool, !right.IsNull() && right.Bool:
		return types.NewBool(true), nil
	case left.IsNull() || right.IsNull():
		return types.Null(), nil
	default:
		return types.NewBool(false), nil
	}
}

func (ev *evaluator) evalUnary(e *parser.UnaryExpr, schema types.Schema, row types.Row) (types.Value, error) {
	if e.Operator == parser.TokenNot {
		v, err := ev.evalBool(e.Expr, schema, row)
		if err != nil || v.IsNull() {
			return types.Null(), err
		}
		return types.NewBool(!v.Bool), nil
	}

	// Unary minus.
	v, err := ev.eval(e.Expr, schema, row)
	if err != nil || v.IsNull() {
		return types.Null(), err
	}
	n, err := types.ToNumber(v)
	if err != nil {
		return types.Null(), errors.CoercionError(e.Expr.String(), v.Any(), "number")
	}
	if n.Kind == types.KindInt {
		return types.NewInt(-n.Int), nil
	}
	return types.NewFloat(-n.Float), nil
}

// evalBool evaluates an expression expected to produce a boolean or
// NULL. Non-boolean results are an error, not a truthiness guess.
func (ev *evaluator) evalBool(expr parser.Expression, schema types.Schema, row types.Row) (types.Value, error) {
	v, err := ev.eval(expr, schema, row)
	if err != nil {
		return types.Null(), err
	}
	switch v.Kind {
	case types.KindNull, types.KindBool:
		return v, nil
	default:
		return types.Null(), errors.CoercionError(expr.String(), v.Any(), "boolean")
	}
}

// truthy reports whether a predicate accepts the row. NULL does not
// accept, matching SQL WHERE semantics.
func (ev *evaluator) truthy(expr parser.Expression, schema types.Schema, row types.Row) (bool, error) {
	v, err := ev.evalBool(expr, schema, row)
	if err != nil {
		return false, err
	}
	return !v.IsNull() && v.Bool, nil
}

// arithmetic applies +, -, *, / and % under the fixed coercion table.
// Integer operands stay integral except for division overflowing into
// a remainder, which truncates like SQL integer division.
func arithmetic(e *parser.BinaryExpr, left, right types.Value) (types.Value, error) {
	l, err := types.ToNumber(left)
	if err != nil {
		return types.Null(), errors.CoercionError(e.Left.String(), left.Any(), "number")
	}
	r, err := types.ToNumber(right)
	if err != nil {
		return types.Null(), errors.CoercionError(e.Right.String(), right.Any(), "number")
	}

	if l.Kind == types.KindInt && r.Kind == types.KindInt {
		a, b := l.Int, r.Int
		switch e.Operator {
		case parser.TokenPlus:
			return types.NewInt(a + b), nil
		case parser.TokenMinus:
			return types.NewInt(a - b), nil
		case parser.TokenStar:
			return types.NewInt(a * b), nil
		case parser.TokenSlash:
			if b == 0 {
				return types.Null(), errors.Newf(errors.DivisionByZero, "division by zero").
					WithStage(errors.StageExecute)
			}
			return types.NewInt(a / b), nil
		case parser.TokenPercent:
			if b == 0 {
				return types.Null(), errors.Newf(errors.DivisionByZero, "division by zero").
					WithStage(errors.StageExecute)
			}
			return types.NewInt(a % b), nil
		}
	}

	a, _ := l.AsFloat()
	b, _ := r.AsFloat()
	switch e.Operator {
	case parser.TokenPlus:
		return types.NewFloat(a + b), nil
	case parser.TokenMinus:
		return types.NewFloat(a - b), nil
	case parser.TokenStar:
		return types.NewFloat(a * b), nil
	case parser.TokenSlash:
		if b == 0 {
			return types.Null(), errors.Newf(errors.DivisionByZero, "division by zero").
				WithStage(errors.StageExecute)
		}
		return types.NewFloat(a / b), nil
	case parser.TokenPercent:
		return types.Null(), errors.Newf(errors.DataException, "%% requires integer operands").
			WithStage(errors.StageExecute)
	}
	return types.Null(), errors.InternalErrorf("unsupported arithmetic operator %s", e.Operator)
}
