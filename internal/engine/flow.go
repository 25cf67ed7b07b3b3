package engine

// flow.go - Per-source load flow with run registration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapvault/internal/adapter"
	"github.com/leapstack-labs/leapvault/internal/metadata"
	"github.com/leapstack-labs/leapvault/internal/state"
	"github.com/leapstack-labs/leapvault/internal/vault"
)

// MaxMessageLength bounds the message of a failure record.
const MaxMessageLength = 4095

// FlowState is the position of a flow in its lifecycle.
type FlowState string

// Flow states, in order.
const (
	StateNotStarted  FlowState = "not-started"
	StateChecked     FlowState = "checked"
	StateRegistered  FlowState = "registered"
	StateStaged      FlowState = "staged"
	StateHashed      FlowState = "hashed"
	StateHubsLoaded  FlowState = "hubs-loaded"
	StateLinksLoaded FlowState = "links-loaded"
	StateSatsLoaded  FlowState = "sats-loaded"
	StateSucceeded   FlowState = "success"
	StateFailed      FlowState = "failure"
)

// FlowRequest describes one flow execution.
type FlowRequest struct {
	// Source is the staging entity to load from.
	Source string
	// RecordSource is written to every loaded row. Defaults to Source.
	RecordSource string
	// FilePath, when set, is loaded into staging first and makes the flow
	// subject to the idempotency check.
	FilePath string
	// LoadDate overrides load_dts. Zero means the current time.
	LoadDate time.Time
	// Force runs the flow even if the file was loaded successfully before.
	Force bool
}

// StageResult summarizes one executed stage.
type StageResult struct {
	Stage      string        `json:"stage"`
	Statements int           `json:"statements"`
	Errors     int           `json:"errors"`
	Duration   time.Duration `json:"duration"`
}

// FlowResult reports how a flow ended.
type FlowResult struct {
	Source  string        `json:"source"`
	RunID   int64         `json:"run_id,omitempty"`
	State   FlowState     `json:"state"`
	Skipped bool          `json:"skipped"`
	Stages  []StageResult `json:"stages,omitempty"`
}

// Statements returns the statement count of stage, or 0 if it did not run.
func (r *FlowResult) Statements(stage string) int {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s.Statements
		}
	}
	return 0
}

// flowStage is a step of the flow and the state reached when it succeeds.
type flowStage struct {
	name string
	next FlowState
	run  func(ctx context.Context, v *vault.Vault, db adapter.Executor) vault.Errors
}

// ExecuteFlow runs staging load (when a file is given), hash view, hub,
// link and satellite loads for req.Source under a new run id.
//
// A flow for a file already loaded successfully is skipped unless forced.
// The first stage reporting errors ends the flow with a failure record;
// earlier stages are not rolled back.
func (e *Engine) ExecuteFlow(ctx context.Context, req FlowRequest) (*FlowResult, vault.Errors) {
	result := &FlowResult{Source: req.Source, State: StateNotStarted}
	if req.RecordSource == "" {
		req.RecordSource = req.Source
	}

	if errs := e.connect(ctx); len(errs) > 0 {
		result.State = StateFailed
		return result, errs
	}

	var errs vault.Errors
	if req.Source == "" {
		errs.Add("flow", errors.New("source is required"))
		result.State = StateFailed
		return result, errs
	}

	e.logger.Info("executing flow",
		slog.String("source", req.Source),
		slog.String("file", req.FilePath),
		slog.Bool("force", req.Force))

	if req.FilePath != "" && !req.Force {
		done, err := e.meta.HasSucceeded(ctx, req.Source, req.FilePath)
		if err != nil {
			errs.Add("metadata.runinfo", err)
			result.State = StateFailed
			return result, errs
		}
		if done {
			e.logger.Info("file already loaded, skipping",
				slog.String("source", req.Source),
				slog.String("file", req.FilePath))
			result.State = StateSucceeded
			result.Skipped = true
			return result, nil
		}
	}
	result.State = StateChecked

	runID, err := e.meta.NextRunID(ctx)
	if err != nil {
		errs.Add("metadata.runinfo", err)
		result.State = StateFailed
		return result, errs
	}
	result.RunID = runID

	if err := e.meta.Record(ctx, e.runRecord(req, runID, metadata.RunStatusStart, "")); err != nil {
		errs.Add("metadata.runinfo", err)
		result.State = StateFailed
		return result, errs
	}
	result.State = StateRegistered

	p := vault.LoadParams{RunID: runID, RecordSource: req.RecordSource, LoadDate: req.LoadDate}
	for _, stage := range e.stages(req, p) {
		if errs := e.runStage(ctx, req, result, stage); len(errs) > 0 {
			return result, e.fail(ctx, req, result, errs)
		}
		result.State = stage.next
	}

	if err := e.meta.Record(ctx, e.runRecord(req, runID, metadata.RunStatusSuccess, "")); err != nil {
		errs.Add("metadata.runinfo", err)
		result.State = StateFailed
		return result, errs
	}
	result.State = StateSucceeded

	e.logger.Info("flow succeeded", slog.String("source", req.Source), slog.Int64("run_id", runID))
	return result, nil
}

func (e *Engine) stages(req FlowRequest, p vault.LoadParams) []flowStage {
	var stages []flowStage
	if req.FilePath != "" {
		stages = append(stages, flowStage{state.StageStaging, StateStaged,
			func(ctx context.Context, _ *vault.Vault, db adapter.Executor) vault.Errors {
				return e.loadStaging(ctx, db, req.Source, req.FilePath)
			}})
	}
	return append(stages,
		flowStage{state.StageHash, StateHashed, func(ctx context.Context, v *vault.Vault, _ adapter.Executor) vault.Errors {
			return v.ComputeHashView(ctx, req.Source)
		}},
		flowStage{state.StageHubs, StateHubsLoaded, func(ctx context.Context, v *vault.Vault, _ adapter.Executor) vault.Errors {
			return v.LoadHubs(ctx, req.Source, p)
		}},
		flowStage{state.StageLinks, StateLinksLoaded, func(ctx context.Context, v *vault.Vault, _ adapter.Executor) vault.Errors {
			return v.LoadLinks(ctx, req.Source, p)
		}},
		flowStage{state.StageSatellites, StateSatsLoaded, func(ctx context.Context, v *vault.Vault, _ adapter.Executor) vault.Errors {
			return v.LoadSatellites(ctx, req.Source, p)
		}},
	)
}

// runStage executes stage through a counting executor and records the
// outcome in the result and the journal.
func (e *Engine) runStage(ctx context.Context, req FlowRequest, result *FlowResult, stage flowStage) vault.Errors {
	counter := &countingExecutor{db: e.db}
	started := time.Now()

	errs := stage.run(ctx, e.newVault(counter), counter)

	sr := StageResult{
		Stage:      stage.name,
		Statements: counter.n,
		Errors:     len(errs),
		Duration:   time.Since(started),
	}
	result.Stages = append(result.Stages, sr)

	e.logger.Debug("stage finished",
		slog.String("stage", sr.Stage),
		slog.Int("statements", sr.Statements),
		slog.Int("errors", sr.Errors),
		slog.Duration("duration", sr.Duration))

	if e.journal != nil {
		rec := state.StageRecord{
			RunID:      result.RunID,
			Source:     req.Source,
			SourceFile: req.FilePath,
			Stage:      sr.Stage,
			Statements: sr.Statements,
			Errors:     sr.Errors,
			StartedAt:  started,
			Duration:   sr.Duration,
		}
		if len(errs) > 0 {
			rec.FirstError = errs[0].Message
		}
		if err := e.journal.RecordStage(ctx, rec); err != nil {
			e.logger.Warn("failed to journal stage", slog.String("stage", sr.Stage), slog.String("error", err.Error()))
		}
	}
	return errs
}

// fail writes the failure record for errs and returns errs, extended with
// the record error if writing it failed.
func (e *Engine) fail(ctx context.Context, req FlowRequest, result *FlowResult, errs vault.Errors) vault.Errors {
	result.State = StateFailed

	e.logger.Error("flow failed",
		slog.String("source", req.Source),
		slog.Int64("run_id", result.RunID),
		slog.Int("errors", len(errs)))

	rec := e.runRecord(req, result.RunID, metadata.RunStatusFailure, FailureMessage(errs))
	errs.Add("metadata.runinfo", e.meta.Record(ctx, rec))
	return errs
}

func (e *Engine) runRecord(req FlowRequest, runID int64, status metadata.RunStatus, message string) metadata.RunRecord {
	return metadata.RunRecord{
		SourceEntity: req.Source,
		RunID:        runID,
		LogDate:      e.now(),
		SourceFile:   req.FilePath,
		Status:       status,
		Message:      message,
	}
}

// FailureMessage renders errs as "<n> error(s): <json array of messages>",
// cut to MaxMessageLength characters.
func FailureMessage(errs vault.Errors) string {
	data, err := json.Marshal(errs.Messages())
	if err != nil {
		data = []byte(err.Error())
	}
	msg := []rune(fmt.Sprintf("%d error(s): %s", len(errs), data))
	if len(msg) > MaxMessageLength {
		msg = msg[:MaxMessageLength]
	}
	return string(msg)
}

// countingExecutor counts the statements it forwards.
type countingExecutor struct {
	db adapter.Executor
	n  int
}

func (c *countingExecutor) Exec(ctx context.Context, sql string, args ...any) error {
	c.n++
	return c.db.Exec(ctx, sql, args...)
}
