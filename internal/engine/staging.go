package engine

// staging.go - Source-file ingestion into staging relations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapvault/internal/adapter"
	"github.com/leapstack-labs/leapvault/internal/metadata"
	"github.com/leapstack-labs/leapvault/internal/vault"
)

// ErrNoStagingMetadata is returned for a source without stg metadata.
var ErrNoStagingMetadata = errors.New("source has no staging metadata")

// CheckSourceForIngestion returns the staging columns of source, in
// position order. A source is file-loadable only if it has stg columns.
func (e *Engine) CheckSourceForIngestion(ctx context.Context, source string) ([]metadata.TableColumn, error) {
	cols, err := e.Tables(ctx, metadata.TableFilter{Name: source, Kind: metadata.KindStaging})
	if err != nil {
		return nil, err
	}

	var out []metadata.TableColumn
	for _, c := range cols {
		if c.Role == metadata.RoleStagingColumn {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoStagingMetadata, source)
	}
	return out, nil
}

// LoadStaging truncates stg.<source> and loads the file at path into it.
func (e *Engine) LoadStaging(ctx context.Context, source, path string) vault.Errors {
	if errs := e.connect(ctx); len(errs) > 0 {
		return errs
	}
	return e.loadStaging(ctx, e.db, source, path)
}

func (e *Engine) loadStaging(ctx context.Context, db adapter.Executor, source, path string) vault.Errors {
	var errs vault.Errors

	cols, err := e.CheckSourceForIngestion(ctx, source)
	if err != nil {
		errs.Add(path, err)
		return errs
	}

	stmts, err := StagingLoad(source, path, cols)
	if err != nil {
		errs.Add(path, err)
		return errs
	}

	// the load is skipped when the truncate fails
	for _, stmt := range stmts {
		errs.Add(stmt, db.Exec(ctx, stmt))
		if len(errs) > 0 {
			break
		}
	}

	e.logger.Info("staging loaded",
		slog.String("source", source),
		slog.String("path", path),
		slog.Int("errors", len(errs)))
	return errs
}

// StagingLoad builds the statements replacing the rows of stg.<source> with
// the file at path. The reader is chosen by extension: csv, tsv, json,
// ndjson/jsonl and parquet, optionally gzip-compressed for text formats.
func StagingLoad(source, path string, cols []metadata.TableColumn) ([]string, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoStagingMetadata, source)
	}

	names := make([]string, len(cols))
	types := make([]string, len(cols))
	for i, c := range cols {
		names[i] = adapter.QuoteIdent(c.ColumnName)
		types[i] = adapter.QuoteLiteral(c.ColumnName) + ": " + adapter.QuoteLiteral(stagingType(c))
	}
	columns := "{" + strings.Join(types, ", ") + "}"
	file := adapter.QuoteLiteral(path)
	selects := strings.Join(names, ", ")

	var from string
	switch format := fileFormat(path); format {
	case "csv":
		from = fmt.Sprintf("read_csv(%s, header = true, columns = %s)", file, columns)
	case "tsv":
		from = fmt.Sprintf("read_csv(%s, header = true, delim = '\\t', columns = %s)", file, columns)
	case "json":
		from = fmt.Sprintf("read_json(%s, columns = %s)", file, columns)
	case "ndjson", "jsonl":
		from = fmt.Sprintf("read_json(%s, format = 'newline_delimited', columns = %s)", file, columns)
	case "parquet":
		casts := make([]string, len(cols))
		for i, c := range cols {
			casts[i] = fmt.Sprintf("CAST(%s AS %s) AS %s", names[i], stagingType(c), names[i])
		}
		selects = strings.Join(casts, ", ")
		from = fmt.Sprintf("read_parquet(%s)", file)
	default:
		return nil, fmt.Errorf("unsupported file format %q: %s", format, path)
	}

	table := "stg." + adapter.QuoteIdent(source)
	return []string{
		"TRUNCATE TABLE " + table,
		fmt.Sprintf("INSERT INTO %s (%s)\nSELECT %s\nFROM %s", table, strings.Join(names, ", "), selects, from),
	}, nil
}

// fileFormat is the lower-cased extension of path without a trailing .gz.
func fileFormat(path string) string {
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(name, ".gz")
	return strings.TrimPrefix(filepath.Ext(name), ".")
}

func stagingType(c metadata.TableColumn) string {
	if c.ColumnType == "" {
		return "VARCHAR"
	}
	return c.ColumnType
}
