package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// RunHistory is the append-only run log consulted and written by flows.
type RunHistory interface {
	// HasSucceeded reports whether a success record exists for source and file.
	HasSucceeded(ctx context.Context, source, file string) (bool, error)
	// NextRunID returns max(run_id)+1 over all sources.
	NextRunID(ctx context.Context) (int64, error)
	// Record appends rec.
	Record(ctx context.Context, rec RunRecord) error
	// List returns records newest first.
	List(ctx context.Context, filter RunFilter) ([]RunRecord, error)
}

// RunFilter narrows a run-history listing. Zero fields match everything.
type RunFilter struct {
	Source string
	RunID  int64
	Limit  int
}

// HasSucceeded implements RunHistory.
func (s *Store) HasSucceeded(ctx context.Context, source, file string) (bool, error) {
	rows, err := s.db.Query(ctx, `SELECT COUNT(*) FROM metadata.runinfo
WHERE source_table = ? AND source_file = ? AND status = ?`, source, file, string(RunStatusSuccess))
	if err != nil {
		return false, fmt.Errorf("failed to query run history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return false, fmt.Errorf("failed to scan run history: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("error iterating run history: %w", err)
	}
	return n > 0, nil
}

// NextRunID implements RunHistory. Allocation is not atomic; two flows
// started concurrently can receive the same id.
func (s *Store) NextRunID(ctx context.Context) (int64, error) {
	rows, err := s.db.Query(ctx, `SELECT COALESCE(MAX(run_id), 0) + 1 FROM metadata.runinfo`)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate run id: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var id int64
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("failed to allocate run id: %w", err)
		}
		return 1, nil
	}
	if err := rows.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to scan run id: %w", err)
	}
	return id, nil
}

// Record implements RunHistory.
func (s *Store) Record(ctx context.Context, rec RunRecord) error {
	s.logger.Debug("recording run",
		slog.String("source", rec.SourceEntity),
		slog.Int64("run_id", rec.RunID),
		slog.String("status", string(rec.Status)))

	err := s.db.Exec(ctx, `INSERT INTO metadata.runinfo (source_table, run_id, log_date, source_file, status, message)
VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SourceEntity, rec.RunID, rec.LogDate, nullString(rec.SourceFile),
		string(rec.Status), nullString(rec.Message))
	if err != nil {
		return fmt.Errorf("failed to record run %d: %w", rec.RunID, err)
	}
	return nil
}

// List implements RunHistory.
func (s *Store) List(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.Source != "" {
		where = append(where, "source_table = ?")
		args = append(args, filter.Source)
	}
	if filter.RunID > 0 {
		where = append(where, "run_id = ?")
		args = append(args, filter.RunID)
	}

	query := `SELECT source_table, run_id, log_date, source_file, status, message
FROM metadata.runinfo`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY run_id DESC, log_date DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf("\nLIMIT %d", filter.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunRecord
	for rows.Next() {
		var (
			rec                   RunRecord
			file, status, message sql.NullString
			logDate               sql.NullTime
		)
		if err := rows.Scan(&rec.SourceEntity, &rec.RunID, &logDate, &file, &status, &message); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.LogDate = logDate.Time
		rec.SourceFile = file.String
		rec.Status = RunStatus(status.String)
		rec.Message = message.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return out, nil
}

var _ RunHistory = (*Store)(nil)
