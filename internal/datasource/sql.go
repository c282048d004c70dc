package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLDriver runs statements on a database/sql pool.
type SQLDriver struct {
	db    *sql.DB
	style placeholderStyle
}

// NewPostgresDriver opens a PostgreSQL pool from a DSN or URL.
func NewPostgresDriver(dsn string) (*SQLDriver, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	configurePool(db)
	return &SQLDriver{db: db, style: styleDollar}, nil
}

// NewSQLiteDriver opens a SQLite file. A sqlite:// prefix is stripped so
// datasource URLs and bare paths both work.
func NewSQLiteDriver(path string) (*SQLDriver, error) {
	path = strings.TrimPrefix(path, "sqlite://")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// The sqlite driver serializes writers; a single connection avoids
	// SQLITE_BUSY under concurrent statements.
	db.SetMaxOpenConns(1)
	return &SQLDriver{db: db, style: styleQuestion}, nil
}

func configurePool(db *sql.DB) {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
}

// Query rewrites named placeholders and executes. Row-returning
// statements scan into maps; everything else reports rows_affected.
func (d *SQLDriver) Query(ctx context.Context, stmt string, params map[string]any) ([]map[string]any, error) {
	return runSQL(ctx, d.db, d.style, stmt, params)
}

// Tx runs fn inside a transaction at the requested isolation level.
func (d *SQLDriver) Tx(ctx context.Context, isolation string, fn func(Driver) error) error {
	level, err := isolationLevel(strings.ToLower(isolation))
	if err != nil {
		return err
	}
	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{Isolation: level})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(&txDriver{tx: tx, style: d.style}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Ping verifies connectivity.
func (d *SQLDriver) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close releases the pool.
func (d *SQLDriver) Close() error {
	return d.db.Close()
}

// txDriver scopes a Driver to one open transaction. Nested Tx is not
// supported.
type txDriver struct {
	tx    *sql.Tx
	style placeholderStyle
}

func (d *txDriver) Query(ctx context.Context, stmt string, params map[string]any) ([]map[string]any, error) {
	return runSQL(ctx, d.tx, d.style, stmt, params)
}

func (d *txDriver) Tx(ctx context.Context, isolation string, fn func(Driver) error) error {
	return fmt.Errorf("datasource: nested transactions are not supported")
}

func (d *txDriver) Ping(ctx context.Context) error { return nil }
func (d *txDriver) Close() error                   { return nil }

func runSQL(ctx context.Context, q queryable, style placeholderStyle, stmt string, params map[string]any) ([]map[string]any, error) {
	rewritten, args, err := rewriteNamed(stmt, params, style)
	if err != nil {
		return nil, err
	}
	if returnsRows(rewritten) {
		rows, err := q.QueryContext(ctx, rewritten, args...)
		if err != nil {
			return nil, fmt.Errorf("executing query: %w", err)
		}
		defer rows.Close()
		return scanRows(rows)
	}
	result, err := q.ExecContext(ctx, rewritten, args...)
	if err != nil {
		return nil, fmt.Errorf("executing statement: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		affected = 0
	}
	return []map[string]any{{"rows_affected": float64(affected)}}, nil
}

func returnsRows(stmt string) bool {
	head := strings.ToUpper(strings.TrimSpace(stmt))
	if strings.HasPrefix(head, "SELECT") || strings.HasPrefix(head, "WITH") {
		return true
	}
	return strings.Contains(head, "RETURNING")
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeSQLValue(values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return results, nil
}

// normalizeSQLValue maps driver types onto the binding value model:
// bytes become strings and integers become float64 so conditions and
// arithmetic see one numeric type.
func normalizeSQLValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}

func isolationLevel(isolation string) (sql.IsolationLevel, error) {
	switch isolation {
	case "":
		return sql.LevelDefault, nil
	case "read-committed":
		return sql.LevelReadCommitted, nil
	case "repeatable-read":
		return sql.LevelRepeatableRead, nil
	case "serializable":
		return sql.LevelSerializable, nil
	default:
		return sql.LevelDefault, fmt.Errorf("datasource: unknown isolation level %q", isolation)
	}
}
