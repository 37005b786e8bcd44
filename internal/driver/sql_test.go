package driver

import (
	"strconv"
	"testing"

	"github.com/fedsql/fedsql/internal/sql/types"
)

func postgresPlaceholders() func(int) string {
	return func(n int) string { return "$" + strconv.Itoa(n) }
}

func sqlitePlaceholders() func(int) string {
	return func(int) string { return "?" }
}

func TestBuildSQLPostgres(t *testing.T) {
	d := &SQLDriver{kind: "postgres", placeholder: postgresPlaceholders()}

	tests := []struct {
		name     string
		query    *RemoteQuery
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "all columns",
			query:   &RemoteQuery{Table: "users"},
			wantSQL: `SELECT * FROM "users"`,
		},
		{
			name:    "projection",
			query:   &RemoteQuery{Table: "users", Columns: []string{"id", "name"}},
			wantSQL: `SELECT "id", "name" FROM "users"`,
		},
		{
			name: "filters become bind arguments",
			query: &RemoteQuery{
				Table:   "orders",
				Columns: []string{"user_id", "total"},
				Filters: []Filter{
					{Column: "total", Op: OpGt, Value: types.NewInt(100)},
					{Column: "region", Op: OpEq, Value: types.NewString("NY")},
				},
			},
			wantSQL:  `SELECT "user_id", "total" FROM "orders" WHERE "total" > $1 AND "region" = $2`,
			wantArgs: []any{int64(100), "NY"},
		},
		{
			name: "null checks take no argument",
			query: &RemoteQuery{
				Table: "users",
				Filters: []Filter{
					{Column: "email", Op: OpIsNull},
					{Column: "id", Op: OpGe, Value: types.NewInt(10)},
				},
			},
			wantSQL:  `SELECT * FROM "users" WHERE "email" IS NULL AND "id" >= $1`,
			wantArgs: []any{int64(10)},
		},
		{
			name:    "limit",
			query:   &RemoteQuery{Table: "users", Limit: 5},
			wantSQL: `SELECT * FROM "users" LIMIT 5`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSQL, gotArgs := d.buildSQL(tt.query)
			if gotSQL != tt.wantSQL {
				t.Errorf("Expected SQL:\n%s\nGot:\n%s", tt.wantSQL, gotSQL)
			}
			if len(gotArgs) != len(tt.wantArgs) {
				t.Fatalf("Expected args %v, got %v", tt.wantArgs, gotArgs)
			}
			for i := range tt.wantArgs {
				if gotArgs[i] != tt.wantArgs[i] {
					t.Errorf("Arg %d: expected %v (%T), got %v (%T)",
						i, tt.wantArgs[i], tt.wantArgs[i], gotArgs[i], gotArgs[i])
				}
			}
		})
	}
}

func TestBuildSQLSQLite(t *testing.T) {
	d := &SQLDriver{kind: "sqlite", placeholder: sqlitePlaceholders()}

	query := &RemoteQuery{
		Table: "orders",
		Filters: []Filter{
			{Column: "total", Op: OpGt, Value: types.NewInt(100)},
			{Column: "user_id", Op: OpEq, Value: types.NewInt(1)},
		},
		Limit: 10,
	}
	gotSQL, gotArgs := d.buildSQL(query)

	wantSQL := `SELECT * FROM "orders" WHERE "total" > ? AND "user_id" = ? LIMIT 10`
	if gotSQL != wantSQL {
		t.Errorf("Expected SQL:\n%s\nGot:\n%s", wantSQL, gotSQL)
	}
	if len(gotArgs) != 2 {
		t.Fatalf("Expected 2 args, got %v", gotArgs)
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent("users"); got != `"users"` {
		t.Errorf("Expected quoted identifier, got %s", got)
	}
	if got := quoteIdent(`odd"name`); got != `"odd""name"` {
		t.Errorf("Expected doubled quote, got %s", got)
	}
}
