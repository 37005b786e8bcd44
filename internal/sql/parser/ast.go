package parser

import (
	"strconv"
	"strings"

	"github.com/fedsql/fedsql/internal/sql/types"
)

// Node is the interface for all AST nodes.
type Node interface {
	String() string
}

// Statement is the interface for all statement nodes.
type Statement interface {
	Node
	statementNode()
}

// Expression is the interface for all expression nodes.
type Expression interface {
	Node
	expressionNode()
}

// JoinType represents the type of join.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	FullJoin
)

// String returns the string representation of a join type.
func (j JoinType) String() string {
	switch j {
	case InnerJoin:
		return "INNER JOIN"
	case LeftJoin:
		return "LEFT JOIN"
	case RightJoin:
		return "RIGHT JOIN"
	case FullJoin:
		return "FULL OUTER JOIN"
	default:
		return "JOIN"
	}
}

// TableRef names a table inside a federated source, as written
// `source.table [AS alias]`.
type TableRef struct {
	Source string
	Table  string
	Alias  string
}

func (t *TableRef) String() string {
	s := t.Table
	if t.Source != "" {
		s = t.Source + "." + t.Table
	}
	if t.Alias != "" {
		s += " AS " + t.Alias
	}
	return s
}

// Name returns the name other clauses may use to qualify columns of
// this table: the alias when one is declared, the table name otherwise.
func (t *TableRef) Name() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Table
}

// JoinClause joins the tables accumulated so far with one more table.
type JoinClause struct {
	Type      JoinType
	Table     *TableRef
	Condition Expression
}

func (j *JoinClause) String() string {
	return j.Type.String() + " " + j.Table.String() + " ON " + j.Condition.String()
}

// SelectStmt represents a SELECT statement. Joins chain left to right:
// each clause joins the result of everything before it with its table.
type SelectStmt struct {
	Columns []SelectColumn
	From    *TableRef
	Joins   []*JoinClause
	Where   Expression
	GroupBy []Expression
	Having  Expression
	OrderBy []OrderByClause
	Limit   *int
	Offset  *int
}

func (s *SelectStmt) statementNode() {}

// String renders the statement in canonical form: upper-case keywords,
// single spaces, explicit INNER JOIN. Semantically equal statements
// render identically, which the result cache relies on.
func (s *SelectStmt) String() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")

	cols := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		cols[i] = col.String()
	}
	sb.WriteString(strings.Join(cols, ", "))

	sb.WriteString(" FROM ")
	sb.WriteString(s.From.String())
	for _, join := range s.Joins {
		sb.WriteString(" ")
		sb.WriteString(join.String())
	}

	if s.Where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(s.Where.String())
	}

	if len(s.GroupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		groups := make([]string, len(s.GroupBy))
		for i, g := range s.GroupBy {
			groups[i] = g.String()
		}
		sb.WriteString(strings.Join(groups, ", "))
	}

	if s.Having != nil {
		sb.WriteString(" HAVING ")
		sb.WriteString(s.Having.String())
	}

	if len(s.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		orders := make([]string, len(s.OrderBy))
		for i, o := range s.OrderBy {
			orders[i] = o.String()
		}
		sb.WriteString(strings.Join(orders, ", "))
	}

	if s.Limit != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(*s.Limit))
	}

	if s.Offset != nil {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(*s.Offset))
	}

	return sb.String()
}

// Tables returns the FROM table followed by every joined table.
func (s *SelectStmt) Tables() []*TableRef {
	tables := make([]*TableRef, 0, 1+len(s.Joins))
	tables = append(tables, s.From)
	for _, join := range s.Joins {
		tables = append(tables, join.Table)
	}
	return tables
}

// HasAggregates reports whether any select column or the HAVING clause
// contains an aggregate call.
func (s *SelectStmt) HasAggregates() bool {
	for _, col := range s.Columns {
		if ContainsAggregate(col.Expr) {
			return true
		}
	}
	return ContainsAggregate(s.Having)
}

// SelectColumn represents a column in the select list.
type SelectColumn struct {
	Expr  Expression
	Alias string
}

func (c SelectColumn) String() string {
	s := c.Expr.String()
	if c.Alias != "" {
		s += " AS " + c.Alias
	}
	return s
}

// OrderByClause represents an ORDER BY expression with direction.
type OrderByClause struct {
	Expr Expression
	Desc bool
}

func (o OrderByClause) String() string {
	if o.Desc {
		return o.Expr.String() + " DESC"
	}
	return o.Expr.String() + " ASC"
}

// Star represents the * in SELECT * or COUNT(*).
type Star struct{}

func (s *Star) expressionNode() {}
func (s *Star) String() string  { return "*" }

// Literal represents a literal value.
type Literal struct {
	Value types.Value
}

func (l *Literal) expressionNode() {}

func (l *Literal) String() string {
	switch l.Value.Kind {
	case types.KindString:
		return "'" + strings.ReplaceAll(l.Value.Str, "'", "''") + "'"
	case types.KindBool:
		if l.Value.Bool {
			return "TRUE"
		}
		return "FALSE"
	case types.KindNull:
		return "NULL"
	default:
		return l.Value.String()
	}
}

// Identifier represents a column reference, optionally qualified by a
// table name or alias.
type Identifier struct {
	Qualifier string
	Name      string
}

func (i *Identifier) expressionNode() {}

func (i *Identifier) String() string {
	if i.Qualifier != "" {
		return i.Qualifier + "." + i.Name
	}
	return i.Name
}

// ParameterRef represents a positional parameter like $1. Index starts
// at 1.
type ParameterRef struct {
	Index int
}

func (p *ParameterRef) expressionNode() {}
func (p *ParameterRef) String() string  { return "$" + strconv.Itoa(p.Index) }

// ComparisonExpr represents a comparison between two expressions.
type ComparisonExpr struct {
	Left     Expression
	Operator TokenType
	Right    Expression
}

func (c *ComparisonExpr) expressionNode() {}

func (c *ComparisonExpr) String() string {
	return c.Left.String() + " " + c.Operator.String() + " " + c.Right.String()
}

// BinaryExpr represents a logical or arithmetic binary expression.
type BinaryExpr struct {
	Left     Expression
	Operator TokenType
	Right    Expression
}

func (b *BinaryExpr) expressionNode() {}

func (b *BinaryExpr) String() string {
	return "(" + b.Left.String() + " " + b.Operator.String() + " " + b.Right.String() + ")"
}

// UnaryExpr represents NOT and unary minus.
type UnaryExpr struct {
	Operator TokenType
	Expr     Expression
}

func (u *UnaryExpr) expressionNode() {}

func (u *UnaryExpr) String() string {
	if u.Operator == TokenNot {
		return "NOT " + u.Expr.String()
	}
	return u.Operator.String() + u.Expr.String()
}

// IsNullExpr represents IS NULL and IS NOT NULL.
type IsNullExpr struct {
	Expr Expression
	Not  bool
}

func (i *IsNullExpr) expressionNode() {}

func (i *IsNullExpr) String() string {
	if i.Not {
		return i.Expr.String() + " IS NOT NULL"
	}
	return i.Expr.String() + " IS NULL"
}

// ParenExpr preserves explicit parentheses.
type ParenExpr struct {
	Expr Expression
}

func (p *ParenExpr) expressionNode() {}
func (p *ParenExpr) String() string  { return "(" + p.Expr.String() + ")" }

// FunctionCall represents an aggregate call. Star marks COUNT(*).
type FunctionCall struct {
	Name string
	Args []Expression
	Star bool
}

func (f *FunctionCall) expressionNode() {}

func (f *FunctionCall) String() string {
	if f.Star {
		return f.Name + "(*)"
	}
	args := make([]string, len(f.Args))
	for i, arg := range f.Args {
		args[i] = arg.String()
	}
	return f.Name + "(" + strings.Join(args, ", ") + ")"
}

// aggregateNames holds the supported aggregate functions.
var aggregateNames = map[string]bool{
	"COUNT": true,
	"SUM":   true,
	"AVG":   true,
	"MIN":   true,
	"MAX":   true,
}

// IsAggregateName reports whether name is a supported aggregate
// function. The name must already be upper case.
func IsAggregateName(name string) bool {
	return aggregateNames[name]
}

// IsAggregate reports whether the call is an aggregate.
func (f *FunctionCall) IsAggregate() bool {
	return IsAggregateName(f.Name)
}

// ContainsAggregate reports whether expr contains an aggregate call at
// any depth. A nil expression contains none.
func ContainsAggregate(expr Expression) bool {
	found := false
	WalkExpr(expr, func(e Expression) bool {
		if fc, ok := e.(*FunctionCall); ok && fc.IsAggregate() {
			found = true
			return false
		}
		return true
	})
	return found
}

// WalkExpr visits expr and every subexpression in depth-first order.
// The visitor returns false to stop descending.
func WalkExpr(expr Expression, visit func(Expression) bool) {
	if expr == nil {
		return
	}
	if !visit(expr) {
		return
	}
	switch e := expr.(type) {
	case *ComparisonExpr:
		WalkExpr(e.Left, visit)
		WalkExpr(e.Right, visit)
	case *BinaryExpr:
		WalkExpr(e.Left, visit)
		WalkExpr(e.Right, visit)
	case *UnaryExpr:
		WalkExpr(e.Expr, visit)
	case *IsNullExpr:
		WalkExpr(e.Expr, visit)
	case *ParenExpr:
		WalkExpr(e.Expr, visit)
	case *FunctionCall:
		for _, arg := range e.Args {
			WalkExpr(arg, visit)
		}
	}
}

