// Package vault builds and runs the Data Vault statements derived from
// metadata: the staging hash view, entity DDL and incremental loads.
//
// Statement text is produced by pure builder functions (HubDDL,
// BuildHashView, HubInsert, ...). The Vault type fetches metadata, runs the
// built statements and collects failures as Errors instead of stopping.
package vault

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leapvault/internal/adapter"
	"github.com/leapstack-labs/leapvault/internal/metadata"
)

// MetadataSource provides the metadata a Vault is driven by.
type MetadataSource interface {
	Tables(ctx context.Context, filter metadata.TableFilter) ([]metadata.TableColumn, error)
	Transitions(ctx context.Context, source string) ([]metadata.Transition, error)
}

// Config holds Vault dependencies.
type Config struct {
	DB       adapter.Executor
	Metadata MetadataSource
	Logger   *slog.Logger
}

// Vault runs metadata-derived statements against the engine.
type Vault struct {
	db     adapter.Executor
	meta   MetadataSource
	logger *slog.Logger
}

// New creates a Vault. A nil logger discards output.
func New(cfg Config) *Vault {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Vault{db: cfg.DB, meta: cfg.Metadata, logger: logger}
}

// exec runs stmt and records its failure in errs.
func (v *Vault) exec(ctx context.Context, errs *Errors, stmt string) {
	errs.Add(stmt, v.db.Exec(ctx, stmt))
}

// reject records a configuration or metadata error that prevented a
// statement from being built.
func (v *Vault) reject(errs *Errors, entity string, err error) {
	v.logger.Warn("skipping entity", slog.String("entity", entity), slog.String("error", err.Error()))
	errs.Add(entity, err)
}

// transitions fetches the transitions of source, recording a failure as a
// statement error.
func (v *Vault) transitions(ctx context.Context, errs *Errors, source string) ([]metadata.Transition, bool) {
	ts, err := v.meta.Transitions(ctx, source)
	if err != nil {
		errs.Add("metadata.transitions", err)
		return nil, false
	}
	return ts, true
}

// tables fetches table metadata for each kind in order.
func (v *Vault) tables(ctx context.Context, errs *Errors, base string, kinds ...metadata.EntityKind) ([]metadata.TableColumn, bool) {
	var out []metadata.TableColumn
	for _, kind := range kinds {
		cols, err := v.meta.Tables(ctx, metadata.TableFilter{Name: base, Kind: kind})
		if err != nil {
			errs.Add("metadata.tables", err)
			return nil, false
		}
		out = append(out, cols...)
	}
	return out, true
}
