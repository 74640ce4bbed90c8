package context

import (
	"context"
	"errors"
	"fmt"
)

// ErrAlreadyCommitted is returned by AddAction and Commit once Commit has
// succeeded.
var ErrAlreadyCommitted = errors.New("request context already committed")

// Action represents a staged write operation.
type Action interface {
	// Execute performs the action.
	Execute(ctx context.Context) error

	// Rollback undoes the action if possible.
	Rollback(ctx context.Context) error

	// Description returns a human-readable description for logging.
	Description() string
}

// FuncAction adapts a pair of closures to Action.
// A nil Undo makes Rollback a no-op.
type FuncAction struct {
	Name string
	Do   func(ctx context.Context) error
	Undo func(ctx context.Context) error
}

// Execute implements Action.
func (a *FuncAction) Execute(ctx context.Context) error { return a.Do(ctx) }

// Rollback implements Action.
func (a *FuncAction) Rollback(ctx context.Context) error {
	if a.Undo == nil {
		return nil
	}

	return a.Undo(ctx)
}

// Description implements Action.
func (a *FuncAction) Description() string { return a.Name }

// CommitError reports a failed commit. RolledBack lists the actions that were
// undone; RollbackErr joins any rollback failures.
type CommitError struct {
	Action      string
	Cause       error
	RolledBack  []string
	RollbackErr error
}

// Error implements the error interface.
func (e *CommitError) Error() string {
	if e.RollbackErr != nil {
		return fmt.Sprintf("action %q failed: %v (rollback incomplete: %v)", e.Action, e.Cause, e.RollbackErr)
	}

	return fmt.Sprintf("action %q failed: %v", e.Action, e.Cause)
}

// Unwrap returns the failing action's error for errors.Is/As support.
func (e *CommitError) Unwrap() error {
	return e.Cause
}

// AddAction stages an action for later execution.
func (rc *RequestContext) AddAction(action Action) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.committed {
		return ErrAlreadyCommitted
	}

	rc.actions = append(rc.actions, action)
	return nil
}

// Commit executes all staged actions in order.
// On failure, rolls back executed actions in reverse order and returns a *CommitError.
func (rc *RequestContext) Commit(ctx context.Context) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.committed {
		return ErrAlreadyCommitted
	}

	var executed []Action
	for _, action := range rc.actions {
		if err := ctx.Err(); err != nil {
			return rc.rollback(ctx, executed, action, err)
		}

		if err := action.Execute(ctx); err != nil {
			return rc.rollback(ctx, executed, action, err)
		}
		executed = append(executed, action)
	}

	rc.committed = true
	return nil
}

// rollback undoes executed actions in reverse order. Rollbacks run on a
// context that ignores cancellation so a cancelled request still unwinds.
func (rc *RequestContext) rollback(ctx context.Context, executed []Action, failed Action, cause error) error {
	undoCtx := context.WithoutCancel(ctx)
	ce := &CommitError{Action: failed.Description(), Cause: cause}

	var errs []error
	for i := len(executed) - 1; i >= 0; i-- {
		if err := executed[i].Rollback(undoCtx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", executed[i].Description(), err))
			continue
		}
		ce.RolledBack = append(ce.RolledBack, executed[i].Description())
	}

	ce.RollbackErr = errors.Join(errs...)
	return ce
}

// Actions returns a copy of staged actions (for inspection/testing).
func (rc *RequestContext) Actions() []Action {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	result := make([]Action, len(rc.actions))
	copy(result, rc.actions)
	return result
}
