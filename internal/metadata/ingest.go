package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapvault/internal/adapter"
)

var (
	tableColumns = []csvColumn{
		{"base_name", "VARCHAR"},
		{"rel_type", "VARCHAR"},
		{"column_name", "VARCHAR"},
		{"column_type", "VARCHAR"},
		{"column_position", "INTEGER"},
		{"mapping", "VARCHAR"},
	}

	transitionColumns = []csvColumn{
		{"source_table", "VARCHAR"},
		{"source_field", "VARCHAR"},
		{"target_table", "VARCHAR"},
		{"target_field", "VARCHAR"},
		{"group_name", "VARCHAR"},
		{"position", "INTEGER"},
		{"raw", "BOOLEAN"},
		{"transformation", "VARCHAR"},
		{"transfer_type", "VARCHAR"},
	}
)

type csvColumn struct {
	name string
	typ  string
}

// OverwriteFromFiles replaces metadata.tables and metadata.transitions with
// the contents of the given files. An empty path leaves that relation as is.
// CSV files are bulk loaded by the engine; .yaml and .yml files are read as
// a Document.
func (s *Store) OverwriteFromFiles(ctx context.Context, tablesPath, transitionsPath string) adapter.Errors {
	var errs adapter.Errors

	if tablesPath != "" {
		if isDocument(tablesPath) {
			doc, err := ReadDocument(tablesPath)
			if err != nil {
				errs.Add(tablesPath, err)
			} else {
				errs.Extend(s.ReplaceTables(ctx, doc.Tables))
			}
		} else {
			errs.Extend(adapter.ExecAll(ctx, s.db, TablesCSVStatements(tablesPath)...))
		}
	}

	if transitionsPath != "" {
		if isDocument(transitionsPath) {
			doc, err := ReadDocument(transitionsPath)
			if err != nil {
				errs.Add(transitionsPath, err)
			} else {
				errs.Extend(s.ReplaceTransitions(ctx, doc.Transitions))
			}
		} else {
			errs.Extend(adapter.ExecAll(ctx, s.db, TransitionsCSVStatements(transitionsPath)...))
		}
	}

	s.logger.Info("metadata overwritten",
		slog.String("tables", tablesPath),
		slog.String("transitions", transitionsPath),
		slog.Int("errors", len(errs)))

	return errs
}

// TablesCSVStatements returns the statements replacing metadata.tables with
// the CSV file at path.
func TablesCSVStatements(path string) []string {
	return []string{
		"TRUNCATE TABLE metadata.tables",
		csvInsert("metadata.tables", path, tableColumns),
		codeUpdate("metadata.tables", "rel_type", entityKinds),
	}
}

// TransitionsCSVStatements returns the statements replacing
// metadata.transitions with the CSV file at path.
func TransitionsCSVStatements(path string) []string {
	return []string{
		"TRUNCATE TABLE metadata.transitions",
		csvInsert("metadata.transitions", path, transitionColumns),
		codeUpdate("metadata.transitions", "transfer_type", transferKinds),
	}
}

func csvInsert(table, path string, cols []csvColumn) string {
	names := make([]string, len(cols))
	types := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
		types[i] = fmt.Sprintf("%s: %s", adapter.QuoteLiteral(c.name), adapter.QuoteLiteral(c.typ))
	}
	list := strings.Join(names, ", ")
	return fmt.Sprintf("INSERT INTO %s (%s)\nSELECT %s FROM read_csv(%s, header = true, columns = {%s})",
		table, list, list, adapter.QuoteLiteral(path), strings.Join(types, ", "))
}

// codeUpdate rewrites long kind names loaded from files to their short codes.
func codeUpdate[K ~string](table, column string, codes map[string]K) string {
	var whens []string
	for _, name := range sortedKeys(codes) {
		if name == string(codes[name]) {
			continue
		}
		whens = append(whens, fmt.Sprintf("WHEN %s THEN %s", adapter.QuoteLiteral(name), adapter.QuoteLiteral(string(codes[name]))))
	}
	return fmt.Sprintf("UPDATE %s SET %s = CASE lower(%s) %s ELSE lower(%s) END",
		table, column, column, strings.Join(whens, " "), column)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func isDocument(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
