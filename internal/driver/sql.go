package driver

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	// Registered database/sql backends.
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/fedsql/fedsql/internal/sql/types"
)

// SQLDriver serves PostgreSQL and SQLite sources through database/sql.
// The two differ only in driver name and placeholder style.
type SQLDriver struct {
	name        string
	kind        string
	db          *sql.DB
	placeholder func(n int) string
}

// NewPostgresDriver opens a PostgreSQL source.
func NewPostgresDriver(name, dsn string) (*SQLDriver, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &SQLDriver{
		name: name,
		kind: "postgres",
		db:   db,
		placeholder: func(n int) string {
			return "$" + strconv.Itoa(n)
		},
	}, nil
}

// NewSQLiteDriver opens a SQLite source backed by a database file.
func NewSQLiteDriver(name, path string) (*SQLDriver, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &SQLDriver{
		name: name,
		kind: "sqlite",
		db:   db,
		placeholder: func(int) string {
			return "?"
		},
	}, nil
}

// Name returns the source name.
func (d *SQLDriver) Name() string { return d.name }

// Kind returns "postgres" or "sqlite".
func (d *SQLDriver) Kind() string { return d.kind }

// Fetch translates the remote query to SQL and scans the result set.
func (d *SQLDriver) Fetch(ctx context.Context, query *RemoteQuery) (*types.RowBatch, error) {
	stmt, args := d.buildSQL(query)

	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	schema := types.Schema{}
	for _, col := range columns {
		schema.Columns = append(schema.Columns, types.Column{Name: col})
	}
	batch := types.NewRowBatch(schema)

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}
		row := make(types.Row, len(columns))
		for i := range columns {
			row[i] = types.FromAny(values[i])
		}
		batch.Append(row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batch, nil
}

// buildSQL renders the remote query with backend-appropriate
// placeholders. Filter values travel as bind arguments, never inline.
func (d *SQLDriver) buildSQL(query *RemoteQuery) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(query.Columns) == 0 {
		sb.WriteString("*")
	} else {
		for i, col := range query.Columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(quoteIdent(col))
		}
	}
	sb.WriteString(" FROM ")
	sb.WriteString(quoteIdent(query.Table))

	var args []any
	for i, f := range query.Filters {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(quoteIdent(f.Column))
		sb.WriteString(" ")
		switch f.Op {
		case OpIsNull, OpIsNotNull:
			sb.WriteString(f.Op.String())
		default:
			args = append(args, f.Value.Any())
			sb.WriteString(f.Op.String())
			sb.WriteString(" ")
			sb.WriteString(d.placeholder(len(args)))
		}
	}

	if query.Limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(query.Limit))
	}
	return sb.String(), args
}

// Ping verifies the connection.
func (d *SQLDriver) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the connection pool.
func (d *SQLDriver) Close() error {
	return d.db.Close()
}

// quoteIdent double-quotes an identifier, doubling embedded quotes.
// Both PostgreSQL and SQLite accept this form.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
