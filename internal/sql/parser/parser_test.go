package parser

import (
	"strings"
	"testing"

	"github.com/fedsql/fedsql/internal/errors"
	"github.com/fedsql/fedsql/internal/sql/types"
)

func TestParseSelect(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "Simple SELECT",
			input:    "SELECT * FROM db1.users",
			expected: "SELECT * FROM db1.users",
		},
		{
			name:     "Qualified columns with alias",
			input:    "SELECT u.id, u.name FROM db1.users AS u",
			expected: "SELECT u.id, u.name FROM db1.users AS u",
		},
		{
			name:     "Implicit table alias is canonicalized",
			input:    "SELECT u.name FROM db1.users u",
			expected: "SELECT u.name FROM db1.users AS u",
		},
		{
			name:     "Column alias",
			input:    "SELECT u.name AS username FROM db1.users u",
			expected: "SELECT u.name AS username FROM db1.users AS u",
		},
		{
			name:     "Lower case keywords are canonicalized",
			input:    "select u.name from db1.users u where u.id = 1",
			expected: "SELECT u.name FROM db1.users AS u WHERE u.id = 1",
		},
		{
			name:     "WHERE with AND and OR",
			input:    "SELECT * FROM db1.users WHERE age > 21 AND city = 'NY' OR vip = TRUE",
			expected: "SELECT * FROM db1.users WHERE ((age > 21 AND city = 'NY') OR vip = TRUE)",
		},
		{
			name:     "NOT binds tighter than AND",
			input:    "SELECT * FROM db1.users WHERE NOT deleted AND active",
			expected: "SELECT * FROM db1.users WHERE (NOT deleted AND active)",
		},
		{
			name:     "INNER JOIN",
			input:    "SELECT u.name FROM db1.users u INNER JOIN db2.orders o ON u.id = o.user_id",
			expected: "SELECT u.name FROM db1.users AS u INNER JOIN db2.orders AS o ON u.id = o.user_id",
		},
		{
			name:     "Bare JOIN defaults to INNER",
			input:    "SELECT u.name FROM db1.users u JOIN db2.orders o ON u.id = o.user_id",
			expected: "SELECT u.name FROM db1.users AS u INNER JOIN db2.orders AS o ON u.id = o.user_id",
		},
		{
			name:     "LEFT OUTER JOIN",
			input:    "SELECT u.name FROM db1.users u LEFT OUTER JOIN db2.orders o ON u.id = o.user_id",
			expected: "SELECT u.name FROM db1.users AS u LEFT JOIN db2.orders AS o ON u.id = o.user_id",
		},
		{
			name:     "RIGHT JOIN",
			input:    "SELECT u.name FROM db1.users u RIGHT JOIN db2.orders o ON u.id = o.user_id",
			expected: "SELECT u.name FROM db1.users AS u RIGHT JOIN db2.orders AS o ON u.id = o.user_id",
		},
		{
			name:     "FULL OUTER JOIN",
			input:    "SELECT u.name FROM db1.users u FULL OUTER JOIN db2.orders o ON u.id = o.user_id",
			expected: "SELECT u.name FROM db1.users AS u FULL OUTER JOIN db2.orders AS o ON u.id = o.user_id",
		},
		{
			name:     "GROUP BY with HAVING",
			input:    "SELECT o.region, SUM(o.total) FROM db2.orders o GROUP BY o.region HAVING SUM(o.total) > 1000",
			expected: "SELECT o.region, SUM(o.total) FROM db2.orders AS o GROUP BY o.region HAVING SUM(o.total) > 1000",
		},
		{
			name:     "COUNT star",
			input:    "SELECT COUNT(*) FROM db1.users",
			expected: "SELECT COUNT(*) FROM db1.users",
		},
		{
			name:     "ORDER BY with directions",
			input:    "SELECT * FROM db2.orders o ORDER BY o.total DESC, o.id",
			expected: "SELECT * FROM db2.orders AS o ORDER BY o.total DESC, o.id ASC",
		},
		{
			name:     "LIMIT and OFFSET",
			input:    "SELECT * FROM db1.users LIMIT 10 OFFSET 20",
			expected: "SELECT * FROM db1.users LIMIT 10 OFFSET 20",
		},
		{
			name:     "Parameters",
			input:    "SELECT * FROM db2.orders o WHERE o.total > $1 AND o.region = $2",
			expected: "SELECT * FROM db2.orders AS o WHERE (o.total > $1 AND o.region = $2)",
		},
		{
			name:     "IS NULL and IS NOT NULL",
			input:    "SELECT * FROM db1.users u WHERE u.email IS NULL OR u.phone IS NOT NULL",
			expected: "SELECT * FROM db1.users AS u WHERE (u.email IS NULL OR u.phone IS NOT NULL)",
		},
		{
			name:     "Arithmetic in select list",
			input:    "SELECT o.price * o.quantity AS amount FROM db2.orders o",
			expected: "SELECT (o.price * o.quantity) AS amount FROM db2.orders AS o",
		},
		{
			name:     "Trailing semicolon",
			input:    "SELECT * FROM db1.users;",
			expected: "SELECT * FROM db1.users",
		},
		{
			name:    "Missing FROM",
			input:   "SELECT 1 + 2",
			wantErr: true,
		},
		{
			name:     "Unqualified table falls back to default source",
			input:    "SELECT * FROM users",
			expected: "SELECT * FROM users",
		},
		{
			name:    "JOIN without ON",
			input:   "SELECT * FROM db1.users u JOIN db2.orders o",
			wantErr: true,
		},
		{
			name:    "Garbage after statement",
			input:   "SELECT * FROM db1.users 42",
			wantErr: true,
		},
		{
			name:    "LIMIT without number",
			input:   "SELECT * FROM db1.users LIMIT x",
			wantErr: true,
		},
		{
			name:    "Aggregate with two arguments",
			input:   "SELECT SUM(a, b) FROM db1.users",
			wantErr: true,
		},
		{
			name:    "Star inside SUM",
			input:   "SELECT SUM(*) FROM db1.users",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := Parse(tt.input)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}

			if got := stmt.String(); got != tt.expected {
				t.Errorf("Expected:\n%s\nGot:\n%s", tt.expected, got)
			}
		})
	}
}

func TestParseRejectsUnsupported(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{
			name:    "SELECT DISTINCT",
			input:   "SELECT DISTINCT name FROM db1.users",
			message: "SELECT DISTINCT is not supported",
		},
		{
			name:    "CROSS JOIN",
			input:   "SELECT * FROM db1.users u CROSS JOIN db2.orders o",
			message: "CROSS JOIN is not supported",
		},
		{
			name:    "Comma join",
			input:   "SELECT * FROM db1.users, db2.orders",
			message: "comma-separated FROM lists is not supported",
		},
		{
			name:    "Subquery in FROM",
			input:   "SELECT * FROM (SELECT * FROM db1.users) u",
			message: "subqueries in FROM is not supported",
		},
		{
			name:    "Subquery in WHERE",
			input:   "SELECT * FROM db1.users WHERE id = (SELECT 1)",
			message: "subqueries is not supported",
		},
		{
			name:    "UNION",
			input:   "SELECT * FROM db1.users UNION SELECT * FROM db2.users",
			message: "UNION is not supported",
		},
		{
			name:    "INTERSECT",
			input:   "SELECT * FROM db1.users INTERSECT SELECT * FROM db2.users",
			message: "INTERSECT is not supported",
		},
		{
			name:    "WITH",
			input:   "WITH t AS (SELECT 1) SELECT * FROM t",
			message: "WITH (common table expressions) is not supported",
		},
		{
			name:    "DISTINCT aggregate",
			input:   "SELECT COUNT(DISTINCT name) FROM db1.users",
			message: "DISTINCT aggregates is not supported",
		},
		{
			name:    "Scalar function",
			input:   "SELECT UPPER(name) FROM db1.users",
			message: "function UPPER is not supported",
		},
		{
			name:    "Non-SELECT statement",
			input:   "INSERT INTO db1.users VALUES (1)",
			message: "only SELECT statements are supported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.message)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("Expected error containing %q, got %q", tt.message, err.Error())
			}
		})
	}
}

func TestParseResolvesQualifiers(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		code    string
	}{
		{
			name:  "Alias resolves",
			input: "SELECT u.name FROM db1.users u",
		},
		{
			name:  "Table name resolves without alias",
			input: "SELECT users.name FROM db1.users",
		},
		{
			name:    "Table name hidden by alias",
			input:   "SELECT users.name FROM db1.users u",
			wantErr: true,
			code:    errors.UndefinedColumn,
		},
		{
			name:    "Unknown qualifier in WHERE",
			input:   "SELECT u.name FROM db1.users u WHERE x.id = 1",
			wantErr: true,
			code:    errors.UndefinedColumn,
		},
		{
			name:    "Unknown qualifier in ON",
			input:   "SELECT u.name FROM db1.users u INNER JOIN db2.orders o ON u.id = z.user_id",
			wantErr: true,
			code:    errors.UndefinedColumn,
		},
		{
			name:    "Unknown qualifier in ORDER BY",
			input:   "SELECT u.name FROM db1.users u ORDER BY q.name",
			wantErr: true,
			code:    errors.UndefinedColumn,
		},
		{
			name:    "Duplicate alias",
			input:   "SELECT * FROM db1.users u INNER JOIN db2.orders u ON u.id = u.id",
			wantErr: true,
			code:    errors.DuplicateAlias,
		},
		{
			name:    "Duplicate bare table name",
			input:   "SELECT * FROM db1.users INNER JOIN db2.users ON users.id = users.id",
			wantErr: true,
			code:    errors.DuplicateAlias,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)

			if !tt.wantErr {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}

			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.IsError(err, tt.code) {
				t.Errorf("Expected SQLSTATE %s, got %v", tt.code, err)
			}
		})
	}
}

func TestParseAggregatePlacement(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:  "Aggregate in select list",
			input: "SELECT COUNT(*) FROM db1.users",
		},
		{
			name:  "Aggregate in HAVING",
			input: "SELECT o.region FROM db2.orders o GROUP BY o.region HAVING MAX(o.total) > 10",
		},
		{
			name:    "Aggregate in WHERE",
			input:   "SELECT * FROM db2.orders o WHERE SUM(o.total) > 10",
			wantErr: true,
		},
		{
			name:    "Aggregate in GROUP BY",
			input:   "SELECT o.region FROM db2.orders o GROUP BY SUM(o.total)",
			wantErr: true,
		},
		{
			name:    "Aggregate in JOIN condition",
			input:   "SELECT * FROM db1.users u INNER JOIN db2.orders o ON COUNT(u.id) = o.user_id",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if tt.wantErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestParseJoinChain(t *testing.T) {
	stmt, err := Parse(`SELECT u.name, o.total, s.status
		FROM db1.users u
		INNER JOIN db2.orders o ON u.id = o.user_id
		LEFT JOIN db3.shipments s ON o.id = s.order_id`)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if stmt.From.Source != "db1" || stmt.From.Table != "users" || stmt.From.Alias != "u" {
		t.Errorf("Unexpected FROM table: %+v", stmt.From)
	}
	if len(stmt.Joins) != 2 {
		t.Fatalf("Expected 2 joins, got %d", len(stmt.Joins))
	}
	if stmt.Joins[0].Type != InnerJoin || stmt.Joins[0].Table.Source != "db2" {
		t.Errorf("Unexpected first join: %v", stmt.Joins[0])
	}
	if stmt.Joins[1].Type != LeftJoin || stmt.Joins[1].Table.Source != "db3" {
		t.Errorf("Unexpected second join: %v", stmt.Joins[1])
	}

	tables := stmt.Tables()
	if len(tables) != 3 {
		t.Fatalf("Expected 3 tables, got %d", len(tables))
	}
	if tables[2].Name() != "s" {
		t.Errorf("Expected alias s, got %s", tables[2].Name())
	}
}

func TestParseLiteralKinds(t *testing.T) {
	stmt, err := Parse("SELECT 1, 2.5, 'x', TRUE, NULL FROM db1.users")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	kinds := []types.ValueKind{types.KindInt, types.KindFloat, types.KindString, types.KindBool, types.KindNull}
	if len(stmt.Columns) != len(kinds) {
		t.Fatalf("Expected %d columns, got %d", len(kinds), len(stmt.Columns))
	}
	for i, want := range kinds {
		lit, ok := stmt.Columns[i].Expr.(*Literal)
		if !ok {
			t.Errorf("Column %d: expected literal, got %T", i, stmt.Columns[i].Expr)
			continue
		}
		if lit.Value.Kind != want {
			t.Errorf("Column %d: expected kind %v, got %v", i, want, lit.Value.Kind)
		}
	}
}

func TestParseParameterIndexes(t *testing.T) {
	stmt, err := Parse("SELECT * FROM db1.users u WHERE u.id = $2 OR u.id = $1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var indexes []int
	WalkExpr(stmt.Where, func(e Expression) bool {
		if p, ok := e.(*ParameterRef); ok {
			indexes = append(indexes, p.Index)
		}
		return true
	})
	if len(indexes) != 2 || indexes[0] != 2 || indexes[1] != 1 {
		t.Errorf("Expected parameter indexes [2 1], got %v", indexes)
	}

	if _, err := Parse("SELECT * FROM db1.users WHERE id = $0"); err == nil {
		t.Error("Expected error for $0 parameter")
	}
}

func TestParseCanonicalDeterminism(t *testing.T) {
	variants := []string{
		"SELECT u.name, o.total FROM db1.users u INNER JOIN db2.orders o ON u.id = o.user_id WHERE o.total > 100 ORDER BY o.total DESC LIMIT 2",
		"select u.name, o.total from db1.users u inner join db2.orders o on u.id = o.user_id where o.total > 100 order by o.total desc limit 2",
		"SELECT u.name,o.total\nFROM db1.users u\nJOIN db2.orders o ON u.id=o.user_id\nWHERE o.total>100\nORDER BY o.total DESC\nLIMIT 2;",
	}

	var canonical string
	for i, input := range variants {
		stmt, err := Parse(input)
		if err != nil {
			t.Fatalf("Variant %d: unexpected error: %v", i, err)
		}
		if i == 0 {
			canonical = stmt.String()
			continue
		}
		if got := stmt.String(); got != canonical {
			t.Errorf("Variant %d: expected %q, got %q", i, canonical, got)
		}
	}

	// The canonical form must parse back to itself.
	stmt, err := Parse(canonical)
	if err != nil {
		t.Fatalf("Canonical form failed to parse: %v", err)
	}
	if got := stmt.String(); got != canonical {
		t.Errorf("Canonical form is not a fixpoint: %q vs %q", got, canonical)
	}
}

func TestParseLexErrorSurfaces(t *testing.T) {
	_, err := Parse("SELECT * FROM db1.users WHERE name = 'unterminated")
	if err == nil {
		t.Fatal("Expected lex error, got nil")
	}
	if !errors.IsParseError(err) {
		t.Errorf("Expected a parse-stage error, got %v", err)
	}

	_, err = Parse("SELECT # FROM db1.users")
	if err == nil {
		t.Fatal("Expected lex error for invalid character")
	}
}
