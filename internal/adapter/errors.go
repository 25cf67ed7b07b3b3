package adapter

import (
	"context"
	"errors"
	"strings"
)

// StatementError pairs an attempted statement with the engine's description
// of why it failed.
type StatementError struct {
	Statement string `json:"statement"`
	Message   string `json:"message"`
}

func (e StatementError) Error() string {
	stmt := strings.Join(strings.Fields(e.Statement), " ")
	if len(stmt) > 120 {
		stmt = stmt[:117] + "..."
	}
	if stmt == "" {
		return e.Message
	}
	return e.Message + " [" + stmt + "]"
}

// Errors is the collected error list returned by every statement-executing
// operation. An empty list means success.
type Errors []StatementError

// Add records a failed statement. A nil err is ignored.
func (e *Errors) Add(statement string, err error) {
	if err == nil {
		return
	}
	*e = append(*e, StatementError{Statement: statement, Message: err.Error()})
}

// Extend appends all of other.
func (e *Errors) Extend(other Errors) {
	*e = append(*e, other...)
}

// Messages returns the error descriptions in order.
func (e Errors) Messages() []string {
	msgs := make([]string, len(e))
	for i, se := range e {
		msgs[i] = se.Message
	}
	return msgs
}

// Err folds the list into a single error, or nil when empty.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	errs := make([]error, len(e))
	for i, se := range e {
		errs[i] = se
	}
	return errors.Join(errs...)
}

// Executor is the subset of Adapter needed to run statements.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) error
}

// ExecAll runs each statement in order and collects failures instead of
// stopping at the first one.
func ExecAll(ctx context.Context, db Executor, stmts ...string) Errors {
	var errs Errors
	for _, stmt := range stmts {
		errs.Add(stmt, db.Exec(ctx, stmt))
	}
	return errs
}
