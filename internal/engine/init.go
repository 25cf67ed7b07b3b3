package engine

// init.go - Bootstrap, entity creation and script application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/leapstack-labs/leapvault/internal/metadata"
	"github.com/leapstack-labs/leapvault/internal/vault"
)

// Schemas created by Init, in creation order.
var Schemas = []string{"stg", "dv", "bv", "dm", "metadata"}

// InitOptions controls Init.
type InitOptions struct {
	// MetaOnly stops after the schemas and metadata relations.
	MetaOnly bool
	// TablesPath and TransitionsPath replace the stored metadata when set.
	TablesPath      string
	TransitionsPath string
}

// Init creates the schemas and metadata relations, optionally replaces the
// metadata from files and, unless MetaOnly, creates every entity the
// metadata describes. Errors are collected, not fatal.
func (e *Engine) Init(ctx context.Context, opts InitOptions) vault.Errors {
	if errs := e.connect(ctx); len(errs) > 0 {
		return errs
	}

	e.logger.Info("initializing database", "meta_only", opts.MetaOnly)

	var errs vault.Errors
	for _, schema := range Schemas {
		stmt := "CREATE SCHEMA IF NOT EXISTS " + schema
		errs.Add(stmt, e.db.Exec(ctx, stmt))
	}
	errs.Extend(e.meta.CreateTables(ctx))
	errs.Extend(e.meta.OverwriteFromFiles(ctx, opts.TablesPath, opts.TransitionsPath))

	if !opts.MetaOnly {
		errs.Extend(e.Create(ctx, CreateOptions{}))
	}
	return errs
}

// CreateOptions selects the entities Create builds. Zero fields select
// everything.
type CreateOptions struct {
	Base string
	Kind metadata.EntityKind
}

// Create builds staging tables, staging scripts, hubs, links, satellites
// and current-value views, in that order.
func (e *Engine) Create(ctx context.Context, opts CreateOptions) vault.Errors {
	if errs := e.connect(ctx); len(errs) > 0 {
		return errs
	}

	want := func(kinds ...metadata.EntityKind) bool {
		return opts.Kind == "" || slices.Contains(kinds, opts.Kind)
	}

	v := e.newVault(e.db)
	var errs vault.Errors
	if want(metadata.KindStaging) {
		errs.Extend(v.CreateStagingTables(ctx, opts.Base))
	}
	if want(metadata.KindStagingScript) {
		errs.Extend(e.ApplyScripts(ctx, metadata.KindStagingScript, opts.Base))
	}
	if want(metadata.KindHub) {
		errs.Extend(v.CreateHubs(ctx, opts.Base))
	}
	if want(metadata.KindLink, metadata.KindNonHistorizedLink) {
		errs.Extend(v.CreateLinks(ctx, opts.Base, opts.Kind))
	}
	if want(metadata.KindHubSatellite, metadata.KindLinkSatellite) {
		errs.Extend(v.CreateSatellites(ctx, opts.Base, opts.Kind))
		errs.Extend(v.CreateCurrentViews(ctx, opts.Base, opts.Kind))
	}
	return errs
}

// ApplyScripts executes, for every metadata row of kind, the script
// <scripts_dir>/<column_name>/<base>.sql. An unreadable script is reported
// under its path.
func (e *Engine) ApplyScripts(ctx context.Context, kind metadata.EntityKind, base string) vault.Errors {
	if errs := e.connect(ctx); len(errs) > 0 {
		return errs
	}

	var errs vault.Errors
	rows, err := e.meta.Tables(ctx, metadata.TableFilter{Name: base, Kind: kind})
	if err != nil {
		errs.Add("metadata.tables", err)
		return errs
	}

	for _, row := range rows {
		path := ScriptPath(e.scriptsDir, row)
		script, err := os.ReadFile(path)
		if err != nil {
			errs.Add(path, fmt.Errorf("failed to read script: %w", err))
			continue
		}
		e.logger.Debug("applying script", slog.String("path", path))
		errs.Add(string(script), e.db.Exec(ctx, string(script)))
	}

	e.logger.Info("applied scripts",
		slog.String("kind", string(kind)),
		slog.Int("scripts", len(rows)),
		slog.Int("errors", len(errs)))
	return errs
}

// ScriptPath is the location of the script a metadata row refers to.
func ScriptPath(dir string, row metadata.TableColumn) string {
	return filepath.Join(dir, row.ColumnName, row.EntityName+".sql")
}
