// Package engine runs leapvault operations against a database: bootstrap,
// script application, staging loads and the per-source load flow.
// It owns the database connection, the metadata store and the flow journal.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/leapvault/internal/adapter"
	"github.com/leapstack-labs/leapvault/internal/metadata"
	"github.com/leapstack-labs/leapvault/internal/state"
	"github.com/leapstack-labs/leapvault/internal/vault"
)

// Engine orchestrates vault operations for one database.
type Engine struct {
	// Database adapter (lazy initialized)
	db          adapter.Adapter
	dbConfig    adapter.Config
	dbConnected bool
	ownsDB      bool
	dbMu        sync.Mutex

	meta *metadata.Store

	journal    state.Store
	scriptsDir string
	logger     *slog.Logger
	now        func() time.Time
}

// Config holds engine configuration.
type Config struct {
	// DB is an already connected adapter. When nil, one is opened from
	// AdapterConfig on first use and closed by Close.
	DB adapter.Adapter
	// AdapterConfig describes the database to open when DB is nil.
	AdapterConfig adapter.Config
	// ScriptsDir is the root of the stg_vw script folders.
	ScriptsDir string
	// Journal records flow stages (optional).
	Journal state.Store
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// Now returns the time used for run-history records (optional).
	Now func() time.Time
}

// New creates an engine with a lazy database connection.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	dbConfig := cfg.AdapterConfig
	if dbConfig.Type == "" {
		dbConfig.Type = "duckdb"
	}

	e := &Engine{
		dbConfig:   dbConfig,
		journal:    cfg.Journal,
		scriptsDir: cfg.ScriptsDir,
		logger:     logger,
		now:        now,
	}
	if cfg.DB != nil {
		e.setDB(cfg.DB)
	}

	logger.Debug("engine created", "adapter_type", dbConfig.Type, "scripts_dir", cfg.ScriptsDir)
	return e
}

func (e *Engine) setDB(db adapter.Adapter) {
	e.db = db
	e.meta = metadata.NewStore(db, e.logger)
	e.dbConnected = true
}

// ensureDBConnected lazily connects to the database.
func (e *Engine) ensureDBConnected(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return nil
	}

	e.logger.Debug("connecting to database", "adapter_type", e.dbConfig.Type, "path", e.dbConfig.Path)

	db, err := adapter.Open(ctx, e.dbConfig, e.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	e.setDB(db)
	e.ownsDB = true

	e.logger.Debug("database connected", "dialect", db.DialectName())
	return nil
}

// connect is ensureDBConnected for operations that report Errors.
func (e *Engine) connect(ctx context.Context) vault.Errors {
	var errs vault.Errors
	errs.Add("connect "+e.dbConfig.Type, e.ensureDBConnected(ctx))
	return errs
}

// newVault returns a Vault executing through db.
func (e *Engine) newVault(db adapter.Executor) *vault.Vault {
	return vault.New(vault.Config{DB: db, Metadata: e.meta, Logger: e.logger})
}

// Close releases the database connection (when the engine opened it) and
// the journal.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	var errs []error
	if e.db != nil && e.ownsDB {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing engine: %w", errors.Join(errs...))
	}
	return nil
}

// --- Metadata access ---

// Tables returns table-column metadata matching filter.
func (e *Engine) Tables(ctx context.Context, filter metadata.TableFilter) ([]metadata.TableColumn, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	return e.meta.Tables(ctx, filter)
}

// Transitions returns the transitions of source (all when empty).
func (e *Engine) Transitions(ctx context.Context, source string) ([]metadata.Transition, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	return e.meta.Transitions(ctx, source)
}

// Sources returns the distinct source entities named by transitions.
func (e *Engine) Sources(ctx context.Context) ([]string, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	return e.meta.Sources(ctx)
}

// Runs lists run-history records.
func (e *Engine) Runs(ctx context.Context, filter metadata.RunFilter) ([]metadata.RunRecord, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	return e.meta.List(ctx, filter)
}

// Stages lists journal records. It returns nothing when no journal is
// configured.
func (e *Engine) Stages(ctx context.Context, filter state.StageFilter) ([]state.StageRecord, error) {
	if e.journal == nil {
		return nil, nil
	}
	return e.journal.ListStages(ctx, filter)
}

// LoadMetadata replaces the stored metadata from files. An empty path
// leaves that relation untouched.
func (e *Engine) LoadMetadata(ctx context.Context, tablesPath, transitionsPath string) vault.Errors {
	if errs := e.connect(ctx); len(errs) > 0 {
		return errs
	}
	return e.meta.OverwriteFromFiles(ctx, tablesPath, transitionsPath)
}

// Validate checks the stored metadata for configuration errors.
func (e *Engine) Validate(ctx context.Context) ([]*vault.ConfigError, error) {
	tables, err := e.Tables(ctx, metadata.TableFilter{})
	if err != nil {
		return nil, err
	}
	transitions, err := e.Transitions(ctx, "")
	if err != nil {
		return nil, err
	}
	return vault.Validate(tables, transitions), nil
}

// ComputeHashView rebuilds the hash view of source outside a flow.
func (e *Engine) ComputeHashView(ctx context.Context, source string) vault.Errors {
	if errs := e.connect(ctx); len(errs) > 0 {
		return errs
	}
	return e.newVault(e.db).ComputeHashView(ctx, source)
}
