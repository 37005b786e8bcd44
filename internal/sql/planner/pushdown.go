package planner

import (
	"github.com/fedsql/fedsql/internal/driver"
	"github.com/fedsql/fedsql/internal/errors"
	"github.com/fedsql/fedsql/internal/sql/parser"
	"github.com/fedsql/fedsql/internal/sql/types"
)

// splitConjuncts flattens the AND tree of a predicate into its
// conjuncts. Parentheses around AND chains are transparent; anything
// else (OR, NOT, comparisons) is a single conjunct.
func splitConjuncts(expr parser.Expression) []parser.Expression {
	switch e := expr.(type) {
	case nil:
		return nil
	case *parser.ParenExpr:
		return splitConjuncts(e.Expr)
	case *parser.BinaryExpr:
		if e.Operator == parser.TokenAnd {
			return append(splitConjuncts(e.Left), splitConjuncts(e.Right)...)
		}
	}
	return []parser.Expression{expr}
}

// andJoin rebuilds a predicate from conjuncts. Returns nil for an empty
// list.
func andJoin(conjuncts []parser.Expression) parser.Expression {
	var out parser.Expression
	for _, c := range conjuncts {
		if out == nil {
			out = c
			continue
		}
		out = &parser.BinaryExpr{Left: out, Operator: parser.TokenAnd, Right: c}
	}
	return out
}

// conjunctTables reports which declared tables a conjunct touches.
// Unqualified column references can only be attributed when the query
// reads a single table; otherwise the conjunct is unattributable and
// must stay as a residual filter. The bool result is false when
// attribution failed.
func conjunctTables(expr parser.Expression, declared map[string]bool, soleTable string) (map[string]bool, bool) {
	tables := make(map[string]bool)
	ok := true
	parser.WalkExpr(expr, func(e parser.Expression) bool {
		id, isID := e.(*parser.Identifier)
		if !isID {
			return true
		}
		switch {
		case id.Qualifier != "":
			if !declared[id.Qualifier] {
				ok = false
				return false
			}
			tables[id.Qualifier] = true
		case soleTable != "":
			tables[soleTable] = true
		default:
			ok = false
			return false
		}
		return true
	})
	return tables, ok
}

// remoteFilter tries to express a conjunct as a driver.Filter, the
// push-down unit: `column op literal`, `literal op column`, or
// `column IS [NOT] NULL`. Parameters count as literals and are bound
// here. A nil result with a nil error means the conjunct has to run
// locally.
func remoteFilter(expr parser.Expression, params []types.Value) (*driver.Filter, error) {
	switch e := expr.(type) {
	case *parser.ParenExpr:
		return remoteFilter(e.Expr, params)

	case *parser.IsNullExpr:
		id, ok := e.Expr.(*parser.Identifier)
		if !ok {
			return nil, nil
		}
		op := driver.OpIsNull
		if e.Not {
			op = driver.OpIsNotNull
		}
		return &driver.Filter{Column: id.Name, Op: op}, nil

	case *parser.ComparisonExpr:
		op, ok := filterOp(e.Operator)
		if !ok {
			return nil, nil
		}
		if id, isID := e.Left.(*parser.Identifier); isID {
			if val, bound, err := bindScalar(e.Right, params); err != nil {
				return nil, err
			} else if bound {
				return &driver.Filter{Column: id.Name, Op: op, Value: val}, nil
			}
		}
		if id, isID := e.Right.(*parser.Identifier); isID {
			if val, bound, err := bindScalar(e.Left, params); err != nil {
				return nil, err
			} else if bound {
				return &driver.Filter{Column: id.Name, Op: flipOp(op), Value: val}, nil
			}
		}
	}
	return nil, nil
}

// bindScalar resolves a literal or parameter to a concrete value.
func bindScalar(expr parser.Expression, params []types.Value) (types.Value, bool, error) {
	switch e := expr.(type) {
	case *parser.Literal:
		return e.Value, true, nil
	case *parser.ParameterRef:
		if e.Index > len(params) {
			return types.Null(), false, errors.PlanErrorf("parameter $%d is not bound (%d given)", e.Index, len(params))
		}
		return params[e.Index-1], true, nil
	}
	return types.Null(), false, nil
}

func filterOp(tok parser.TokenType) (driver.FilterOp, bool) {
	switch tok {
	case parser.TokenEqual:
		return driver.OpEq, true
	case parser.TokenNotEqual:
		return driver.OpNe, true
	case parser.TokenLess:
		return driver.OpLt, true
	case parser.TokenLessEqual:
		return driver.OpLe, true
	case parser.TokenGreater:
		return driver.OpGt, true
	case parser.TokenGreaterEqual:
		return driver.OpGe, true
	default:
		return driver.OpEq, false
	}
}

// flipOp mirrors an operator for `literal op column` conjuncts.
func flipOp(op driver.FilterOp) driver.FilterOp {
	switch op {
	case driver.OpLt:
		return driver.OpGt
	case driver.OpLe:
		return driver.OpGe
	case driver.OpGt:
		return driver.OpLt
	case driver.OpGe:
		return driver.OpLe
	default:
		return op
	}
}
