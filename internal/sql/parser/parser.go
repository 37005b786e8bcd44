package parser

import (
	"strconv"
	"strings"

	"github.com/fedsql/fedsql/internal/errors"
	"github.com/fedsql/fedsql/internal/sql/types"
)

// Parser parses federated SELECT statements.
type Parser struct {
	lexer      *Lexer
	current    Token
	previous   Token
	errors     []error
	tableNames map[string]bool
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer:      NewLexer(input),
		tableNames: make(map[string]bool),
	}
	p.advance()
	return p
}

// Parse parses input as a single federated SELECT statement.
func Parse(input string) (*SelectStmt, error) {
	return NewParser(input).Parse()
}

// Parse parses the input as a single SELECT statement. It returns the
// first error encountered; qualified column references that do not
// match any declared table are rejected here, before any planning.
func (p *Parser) Parse() (*SelectStmt, error) {
	if p.check(TokenWith) {
		return nil, p.notSupported("WITH (common table expressions)", p.current)
	}
	if !p.check(TokenSelect) {
		if p.check(TokenError) {
			return nil, errors.NewLexError(p.current.Value, p.current.Line, p.current.Column)
		}
		return nil, errors.NewParseError(
			"only SELECT statements are supported, found "+p.current.String(),
			p.current.Line, p.current.Column)
	}

	stmt := p.parseSelect()
	if p.firstError() != nil {
		return nil, p.firstError()
	}

	switch p.current.Type {
	case TokenUnion:
		return nil, p.notSupported("UNION", p.current)
	case TokenIntersect:
		return nil, p.notSupported("INTERSECT", p.current)
	case TokenExcept:
		return nil, p.notSupported("EXCEPT", p.current)
	}

	p.match(TokenSemicolon)
	if !p.check(TokenEOF) {
		if p.check(TokenError) {
			return nil, errors.NewLexError(p.current.Value, p.current.Line, p.current.Column)
		}
		return nil, errors.NewParseError(
			"unexpected "+p.current.String()+" after statement",
			p.current.Line, p.current.Column)
	}

	if err := p.resolve(stmt); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseSelect() *SelectStmt {
	if !p.expect(TokenSelect) {
		return nil
	}
	stmt := &SelectStmt{}

	if p.check(TokenDistinct) {
		p.errors = append(p.errors, p.notSupported("SELECT DISTINCT", p.current))
		return nil
	}

	for {
		col, ok := p.parseSelectColumn()
		if !ok {
			return nil
		}
		stmt.Columns = append(stmt.Columns, col)
		if !p.match(TokenComma) {
			break
		}
	}

	if !p.expect(TokenFrom) {
		return nil
	}
	stmt.From = p.parseTableRef()
	if stmt.From == nil {
		return nil
	}

	for p.peekJoin() || p.check(TokenComma) {
		if p.check(TokenComma) {
			p.errors = append(p.errors, p.notSupported("comma-separated FROM lists", p.current))
			return nil
		}
		join := p.parseJoin()
		if join == nil {
			return nil
		}
		stmt.Joins = append(stmt.Joins, join)
	}

	if p.match(TokenWhere) {
		stmt.Where = p.parseExpression()
		if stmt.Where == nil {
			return nil
		}
	}

	if p.match(TokenGroupBy) {
		for {
			expr := p.parseExpression()
			if expr == nil {
				return nil
			}
			stmt.GroupBy = append(stmt.GroupBy, expr)
			if !p.match(TokenComma) {
				break
			}
		}
	}

	if p.match(TokenHaving) {
		stmt.Having = p.parseExpression()
		if stmt.Having == nil {
			return nil
		}
	}

	if p.match(TokenOrderBy) {
		for {
			expr := p.parseExpression()
			if expr == nil {
				return nil
			}
			clause := OrderByClause{Expr: expr}
			if p.match(TokenDesc) {
				clause.Desc = true
			} else {
				p.match(TokenAsc)
			}
			stmt.OrderBy = append(stmt.OrderBy, clause)
			if !p.match(TokenComma) {
				break
			}
		}
	}

	if p.match(TokenLimit) {
		n, ok := p.parseNonNegativeInt("LIMIT")
		if !ok {
			return nil
		}
		stmt.Limit = &n
	}

	if p.match(TokenOffset) {
		n, ok := p.parseNonNegativeInt("OFFSET")
		if !ok {
			return nil
		}
		stmt.Offset = &n
	}

	return stmt
}

func (p *Parser) parseSelectColumn() (SelectColumn, bool) {
	if p.match(TokenStar) {
		return SelectColumn{Expr: &Star{}}, true
	}

	expr := p.parseExpression()
	if expr == nil {
		return SelectColumn{}, false
	}
	col := SelectColumn{Expr: expr}

	if p.match(TokenAs) {
		if !p.check(TokenIdentifier) {
			p.error("expected alias after AS, found " + p.current.String())
			return SelectColumn{}, false
		}
		col.Alias = p.current.Value
		p.advance()
	} else if p.check(TokenIdentifier) {
		// Implicit alias: SELECT u.name username
		col.Alias = p.current.Value
		p.advance()
	}
	return col, true
}

// parseTableRef parses `[source.]table [AS alias]`. A reference
// without a source qualifier is left with an empty Source; the planner
// substitutes its configured default source.
func (p *Parser) parseTableRef() *TableRef {
	if p.check(TokenLeftParen) {
		p.errors = append(p.errors, p.notSupported("subqueries in FROM", p.current))
		return nil
	}
	if !p.check(TokenIdentifier) {
		p.error("expected table reference, found " + p.current.String())
		return nil
	}
	name := p.current.Value
	aliasTok := p.current
	p.advance()

	ref := &TableRef{Table: name}
	if p.match(TokenDot) {
		if !p.check(TokenIdentifier) {
			p.error("expected table name after '.', found " + p.current.String())
			return nil
		}
		ref.Source = name
		ref.Table = p.current.Value
		aliasTok = p.current
		p.advance()
	}

	if p.match(TokenAs) {
		aliasTok = p.current
		if !p.check(TokenIdentifier) {
			p.error("expected alias after AS, found " + p.current.String())
			return nil
		}
		ref.Alias = p.current.Value
		p.advance()
	} else if p.check(TokenIdentifier) {
		aliasTok = p.current
		ref.Alias = p.current.Value
		p.advance()
	}

	name = ref.Name()
	if p.tableNames[name] {
		p.errors = append(p.errors, errors.DuplicateAliasError(name, aliasTok.Line, aliasTok.Column))
		return nil
	}
	p.tableNames[name] = true
	return ref
}

func (p *Parser) peekJoin() bool {
	switch p.current.Type {
	case TokenJoin, TokenInner, TokenLeft, TokenRight, TokenFull, TokenCross:
		return true
	default:
		return false
	}
}

func (p *Parser) parseJoin() *JoinClause {
	joinTok := p.current
	var joinType JoinType

	switch {
	case p.check(TokenCross):
		p.errors = append(p.errors, p.notSupported("CROSS JOIN", joinTok))
		return nil
	case p.match(TokenInner):
		joinType = InnerJoin
	case p.match(TokenLeft):
		joinType = LeftJoin
		p.match(TokenOuter)
	case p.match(TokenRight):
		joinType = RightJoin
		p.match(TokenOuter)
	case p.match(TokenFull):
		joinType = FullJoin
		p.match(TokenOuter)
	default:
		joinType = InnerJoin
	}

	if !p.expect(TokenJoin) {
		return nil
	}
	table := p.parseTableRef()
	if table == nil {
		return nil
	}
	if !p.check(TokenOn) {
		p.error(joinType.String() + " requires an ON condition, found " + p.current.String())
		return nil
	}
	p.advance()

	condition := p.parseExpression()
	if condition == nil {
		return nil
	}
	return &JoinClause{Type: joinType, Table: table, Condition: condition}
}

func (p *Parser) parseNonNegativeInt(clause string) (int, bool) {
	if !p.check(TokenNumber) {
		p.error("expected number after " + clause + ", found " + p.current.String())
		return 0, false
	}
	n, err := strconv.Atoi(p.current.Value)
	if err != nil || n < 0 {
		p.error(clause + " must be a non-negative integer, found " + p.current.Value)
		return 0, false
	}
	p.advance()
	return n, true
}

// Expression parsing, by descending precedence:
// OR < AND < NOT < comparison < additive < multiplicative < unary.

func (p *Parser) parseExpression() Expression {
	return p.parseOr()
}

func (p *Parser) parseOr() Expression {
	left := p.parseAnd()
	if left == nil {
		return nil
	}
	for p.match(TokenOr) {
		right := p.parseAnd()
		if right == nil {
			return nil
		}
		left = &BinaryExpr{Left: left, Operator: TokenOr, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() Expression {
	left := p.parseNot()
	if left == nil {
		return nil
	}
	for p.match(TokenAnd) {
		right := p.parseNot()
		if right == nil {
			return nil
		}
		left = &BinaryExpr{Left: left, Operator: TokenAnd, Right: right}
	}
	return left
}

func (p *Parser) parseNot() Expression {
	if p.match(TokenNot) {
		expr := p.parseNot()
		if expr == nil {
			return nil
		}
		return &UnaryExpr{Operator: TokenNot, Expr: expr}
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() Expression {
	left := p.parseTerm()
	if left == nil {
		return nil
	}

	switch p.current.Type {
	case TokenEqual, TokenNotEqual, TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual:
		op := p.current.Type
		p.advance()
		right := p.parseTerm()
		if right == nil {
			return nil
		}
		return &ComparisonExpr{Left: left, Operator: op, Right: right}
	case TokenIs:
		p.advance()
		not := p.match(TokenNot)
		if !p.expect(TokenNull) {
			return nil
		}
		return &IsNullExpr{Expr: left, Not: not}
	}
	return left
}

func (p *Parser) parseTerm() Expression {
	left := p.parseFactor()
	if left == nil {
		return nil
	}
	for p.check(TokenPlus) || p.check(TokenMinus) {
		op := p.current.Type
		p.advance()
		right := p.parseFactor()
		if right == nil {
			return nil
		}
		left = &BinaryExpr{Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) parseFactor() Expression {
	left := p.parseUnary()
	if left == nil {
		return nil
	}
	for p.check(TokenStar) || p.check(TokenSlash) || p.check(TokenPercent) {
		op := p.current.Type
		p.advance()
		right := p.parseUnary()
		if right == nil {
			return nil
		}
		left = &BinaryExpr{Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() Expression {
	if p.match(TokenMinus) {
		expr := p.parseUnary()
		if expr == nil {
			return nil
		}
		return &UnaryExpr{Operator: TokenMinus, Expr: expr}
	}
	if p.match(TokenPlus) {
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() Expression {
	switch p.current.Type {
	case TokenNumber:
		value := p.current.Value
		p.advance()
		if !strings.Contains(value, ".") {
			if i, err := strconv.ParseInt(value, 10, 64); err == nil {
				return &Literal{Value: types.NewInt(i)}
			}
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			p.error("invalid number " + value)
			return nil
		}
		return &Literal{Value: types.NewFloat(f)}

	case TokenString:
		value := p.current.Value
		p.advance()
		return &Literal{Value: types.NewString(value)}

	case TokenTrue:
		p.advance()
		return &Literal{Value: types.NewBool(true)}

	case TokenFalse:
		p.advance()
		return &Literal{Value: types.NewBool(false)}

	case TokenNull:
		p.advance()
		return &Literal{Value: types.Null()}

	case TokenParam:
		value := p.current.Value
		index, err := strconv.Atoi(value[1:])
		if err != nil || index < 1 {
			p.error("invalid parameter reference " + value)
			return nil
		}
		p.advance()
		return &ParameterRef{Index: index}

	case TokenLeftParen:
		open := p.current
		p.advance()
		if p.check(TokenSelect) {
			p.errors = append(p.errors, p.notSupported("subqueries", open))
			return nil
		}
		expr := p.parseExpression()
		if expr == nil {
			return nil
		}
		if !p.expect(TokenRightParen) {
			return nil
		}
		return &ParenExpr{Expr: expr}

	case TokenIdentifier:
		nameTok := p.current
		p.advance()
		if p.check(TokenLeftParen) {
			return p.parseFunctionCall(nameTok)
		}
		if p.match(TokenDot) {
			if !p.check(TokenIdentifier) {
				p.error("expected column name after '.', found " + p.current.String())
				return nil
			}
			column := p.current.Value
			p.advance()
			return &Identifier{Qualifier: nameTok.Value, Name: column}
		}
		return &Identifier{Name: nameTok.Value}

	case TokenDistinct:
		p.errors = append(p.errors, p.notSupported("DISTINCT", p.current))
		return nil

	case TokenError:
		p.errors = append(p.errors, errors.NewLexError(p.current.Value, p.current.Line, p.current.Column))
		return nil

	default:
		p.error("unexpected " + p.current.String())
		return nil
	}
}

// parseFunctionCall parses an aggregate call. The opening paren is the
// current token. Only the five aggregates are callable; anything else
// is rejected by name.
func (p *Parser) parseFunctionCall(nameTok Token) Expression {
	name := strings.ToUpper(nameTok.Value)
	p.advance() // (

	if !IsAggregateName(name) {
		p.errors = append(p.errors, p.notSupported("function "+name, nameTok))
		return nil
	}

	call := &FunctionCall{Name: name}
	switch {
	case p.check(TokenStar):
		if name != "COUNT" {
			p.error(name + "(*) is not valid; only COUNT accepts *")
			return nil
		}
		p.advance()
		call.Star = true
	case p.check(TokenDistinct):
		p.errors = append(p.errors, p.notSupported("DISTINCT aggregates", p.current))
		return nil
	default:
		arg := p.parseExpression()
		if arg == nil {
			return nil
		}
		if p.check(TokenComma) {
			p.error(name + " takes exactly one argument")
			return nil
		}
		call.Args = []Expression{arg}
	}

	if !p.expect(TokenRightParen) {
		return nil
	}
	return call
}

// resolve checks every qualified column reference against the declared
// table names and aliases, and rejects aggregates outside the clauses
// that may hold them.
func (p *Parser) resolve(stmt *SelectStmt) error {
	declared := make(map[string]bool, len(p.tableNames))
	for _, table := range stmt.Tables() {
		declared[table.Name()] = true
	}

	checkRefs := func(expr Expression) error {
		var err error
		WalkExpr(expr, func(e Expression) bool {
			id, ok := e.(*Identifier)
			if !ok || id.Qualifier == "" || declared[id.Qualifier] {
				return true
			}
			err = errors.UnresolvedColumnError(id.Qualifier, id.Name)
			return false
		})
		return err
	}

	for _, col := range stmt.Columns {
		if err := checkRefs(col.Expr); err != nil {
			return err
		}
	}
	for _, join := range stmt.Joins {
		if err := checkRefs(join.Condition); err != nil {
			return err
		}
		if ContainsAggregate(join.Condition) {
			return errors.NewParseError("aggregate functions are not allowed in JOIN conditions", 0, 0)
		}
	}
	if err := checkRefs(stmt.Where); err != nil {
		return err
	}
	if ContainsAggregate(stmt.Where) {
		return errors.NewParseError("aggregate functions are not allowed in WHERE", 0, 0)
	}
	for _, g := range stmt.GroupBy {
		if err := checkRefs(g); err != nil {
			return err
		}
		if ContainsAggregate(g) {
			return errors.NewParseError("aggregate functions are not allowed in GROUP BY", 0, 0)
		}
	}
	if err := checkRefs(stmt.Having); err != nil {
		return err
	}
	for _, o := range stmt.OrderBy {
		if err := checkRefs(o.Expr); err != nil {
			return err
		}
	}
	return nil
}

// Helper methods

func (p *Parser) advance() {
	p.previous = p.current
	p.current = p.lexer.NextToken()
}

func (p *Parser) check(tokenType TokenType) bool {
	return p.current.Type == tokenType
}

func (p *Parser) match(tokenType TokenType) bool {
	if p.check(tokenType) {
		p.advance()
		return true
	}
	return false
}

// expect consumes a token of the given type or records an error.
func (p *Parser) expect(tokenType TokenType) bool {
	if p.check(tokenType) {
		p.advance()
		return true
	}
	if p.check(TokenError) {
		p.errors = append(p.errors, errors.NewLexError(p.current.Value, p.current.Line, p.current.Column))
		return false
	}
	p.errors = append(p.errors, errors.UnexpectedTokenError(
		tokenType.String(), p.current.String(), p.current.Line, p.current.Column))
	return false
}

func (p *Parser) error(message string) {
	p.errors = append(p.errors, errors.NewParseError(message, p.current.Line, p.current.Column))
}

func (p *Parser) notSupported(feature string, tok Token) error {
	return errors.NotSupportedError(feature).
		WithStage(errors.StageParse).
		WithPosition(tok.Line, tok.Column)
}

func (p *Parser) firstError() error {
	if len(p.errors) > 0 {
		return p.errors[0]
	}
	return nil
}
