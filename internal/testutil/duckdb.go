package testutil

import (
	"context"
	"testing"

	"github.com/leapstack-labs/leapvault/internal/adapter"
)

// Schemas created by NewDuckDB.
var Schemas = []string{"stg", "dv", "bv", "dm", "metadata"}

// NewDuckDB opens an in-memory DuckDB adapter with the vault schemas
// created. The adapter is closed when the test ends.
func NewDuckDB(t testing.TB) *adapter.DuckDBAdapter {
	t.Helper()

	db := adapter.NewDuckDBAdapter(NewTestLogger(t))
	if err := db.Connect(context.Background(), adapter.Config{Type: "duckdb", Path: ":memory:"}); err != nil {
		t.Fatalf("failed to open duckdb: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	for _, schema := range Schemas {
		MustExec(t, db, "CREATE SCHEMA IF NOT EXISTS "+schema)
	}
	return db
}

// MustExec runs each statement and fails the test on the first error.
func MustExec(t testing.TB, db adapter.Adapter, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		if err := db.Exec(context.Background(), stmt); err != nil {
			t.Fatalf("exec failed: %v\n%s", err, stmt)
		}
	}
}

// QueryInt runs a single-value integer query.
func QueryInt(t testing.TB, db adapter.Adapter, query string, args ...any) int64 {
	t.Helper()
	rows, err := db.Query(context.Background(), query, args...)
	if err != nil {
		t.Fatalf("query failed: %v\n%s", err, query)
	}
	defer func() { _ = rows.Close() }()

	var n int64
	if !rows.Next() {
		t.Fatalf("query returned no rows: %s", query)
	}
	if err := rows.Scan(&n); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	return n
}

// QueryStrings runs a single-column query and returns its values as strings.
// NULL values become "<nil>".
func QueryStrings(t testing.TB, db adapter.Adapter, query string, args ...any) []string {
	t.Helper()
	rows, err := db.Query(context.Background(), query, args...)
	if err != nil {
		t.Fatalf("query failed: %v\n%s", err, query)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var v *string
		if err := rows.Scan(&v); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		if v == nil {
			out = append(out, "<nil>")
		} else {
			out = append(out, *v)
		}
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows failed: %v", err)
	}
	return out
}
