package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapvault/internal/adapter"
)

// Statements creating the metadata relations.
const (
	createTablesSQL = `CREATE TABLE IF NOT EXISTS metadata.tables (
    base_name VARCHAR,
    rel_type VARCHAR,
    column_name VARCHAR,
    column_type VARCHAR,
    column_position INTEGER,
    mapping VARCHAR
)`

	createTransitionsSQL = `CREATE TABLE IF NOT EXISTS metadata.transitions (
    source_table VARCHAR,
    source_field VARCHAR,
    target_table VARCHAR,
    target_field VARCHAR,
    group_name VARCHAR,
    position INTEGER,
    raw BOOLEAN,
    transformation VARCHAR,
    transfer_type VARCHAR
)`

	createRunInfoSQL = `CREATE TABLE IF NOT EXISTS metadata.runinfo (
    source_table VARCHAR,
    run_id INTEGER,
    log_date TIMESTAMP,
    source_file VARCHAR,
    status VARCHAR,
    message VARCHAR
)`
)

// Store reads and replaces metadata held in the metadata schema.
type Store struct {
	db     adapter.Adapter
	logger *slog.Logger
}

// NewStore creates a store over db. A nil logger discards output.
func NewStore(db adapter.Adapter, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, logger: logger}
}

// CreateTables creates the metadata, transition and run-history relations.
// The metadata schema must exist.
func (s *Store) CreateTables(ctx context.Context) adapter.Errors {
	return adapter.ExecAll(ctx, s.db, createTablesSQL, createTransitionsSQL, createRunInfoSQL)
}

// TableFilter narrows a Tables query. Zero fields match everything.
type TableFilter struct {
	Name string
	Kind EntityKind
}

// Tables returns table-column metadata ordered by kind, entity, role and
// column position.
func (s *Store) Tables(ctx context.Context, filter TableFilter) ([]TableColumn, error) {
	var (
		where []string
		args  []any
	)
	if filter.Name != "" {
		where = append(where, "base_name = ?")
		args = append(args, filter.Name)
	}
	if filter.Kind != "" {
		where = append(where, "rel_type = ?")
		args = append(args, string(filter.Kind))
	}

	query := `SELECT base_name, rel_type, column_name, column_type, column_position, mapping
FROM metadata.tables`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY rel_type, base_name, mapping, column_position"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query table metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TableColumn
	for rows.Next() {
		var (
			c                   TableColumn
			name, kind, colName sql.NullString
			colType, role       sql.NullString
			position            sql.NullInt64
		)
		if err := rows.Scan(&name, &kind, &colName, &colType, &position, &role); err != nil {
			return nil, fmt.Errorf("failed to scan table metadata: %w", err)
		}
		c.EntityName = name.String
		c.EntityKind = EntityKind(kind.String)
		c.ColumnName = colName.String
		c.ColumnType = colType.String
		c.Position = int(position.Int64)
		c.Role = Role(role.String)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table metadata: %w", err)
	}

	return out, nil
}

// Transitions returns the field transitions of source, or of every source
// when source is empty, ordered by source, target, group and position.
func (s *Store) Transitions(ctx context.Context, source string) ([]Transition, error) {
	query := `SELECT source_table, source_field, target_table, target_field, group_name,
    position, raw, transformation, transfer_type
FROM metadata.transitions`
	var args []any
	if source != "" {
		query += "\nWHERE source_table = ?"
		args = append(args, source)
	}
	query += "\nORDER BY source_table, target_table, group_name, position"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Transition
	for rows.Next() {
		var (
			t                                      Transition
			srcTable, srcField, tgtTable, tgtField sql.NullString
			group, transformation, kind            sql.NullString
			position                               sql.NullInt64
			raw                                    sql.NullBool
		)
		if err := rows.Scan(&srcTable, &srcField, &tgtTable, &tgtField, &group,
			&position, &raw, &transformation, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		t.SourceEntity = srcTable.String
		t.SourceField = srcField.String
		t.TargetEntity = tgtTable.String
		t.TargetField = tgtField.String
		t.GroupName = group.String
		t.Position = int(position.Int64)
		t.Raw = raw.Valid && raw.Bool
		t.Transformation = transformation.String
		t.Kind = TransferKind(kind.String)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}

	return out, nil
}

// Sources returns the distinct source entities named by transitions.
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT source_table FROM metadata.transitions
WHERE source_table IS NOT NULL ORDER BY source_table`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

const (
	insertTableSQL = `INSERT INTO metadata.tables (base_name, rel_type, column_name, column_type, column_position, mapping)
VALUES (?, ?, ?, ?, ?, ?)`

	insertTransitionSQL = `INSERT INTO metadata.transitions (source_table, source_field, target_table, target_field,
    group_name, position, raw, transformation, transfer_type)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// ReplaceTables truncates metadata.tables and inserts cols.
func (s *Store) ReplaceTables(ctx context.Context, cols []TableColumn) adapter.Errors {
	errs := adapter.ExecAll(ctx, s.db, "TRUNCATE TABLE metadata.tables")
	if len(errs) > 0 {
		return errs
	}
	for _, c := range cols {
		errs.Add(insertTableSQL, s.db.Exec(ctx, insertTableSQL,
			c.EntityName, string(c.EntityKind), c.ColumnName, nullString(c.ColumnType),
			c.Position, nullString(string(c.Role))))
	}
	s.logger.Info("replaced table metadata", slog.Int("rows", len(cols)), slog.Int("errors", len(errs)))
	return errs
}

// ReplaceTransitions truncates metadata.transitions and inserts ts.
func (s *Store) ReplaceTransitions(ctx context.Context, ts []Transition) adapter.Errors {
	errs := adapter.ExecAll(ctx, s.db, "TRUNCATE TABLE metadata.transitions")
	if len(errs) > 0 {
		return errs
	}
	for _, t := range ts {
		errs.Add(insertTransitionSQL, s.db.Exec(ctx, insertTransitionSQL,
			t.SourceEntity, t.SourceField, t.TargetEntity, t.TargetField, t.GroupName,
			t.Position, t.Raw, nullString(t.Transformation), string(t.Kind)))
	}
	s.logger.Info("replaced transitions", slog.Int("rows", len(ts)), slog.Int("errors", len(errs)))
	return errs
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
