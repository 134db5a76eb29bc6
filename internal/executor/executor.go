// Package executor applies single remediation actions with timeout and
// best-effort rollback semantics.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/driftd/driftd/internal/models"
)

// OutcomeStatus classifies the result of one action
type OutcomeStatus string

const (
	// OutcomeApplied the action succeeded
	OutcomeApplied OutcomeStatus = "applied"
	// OutcomeFailed ActionFailure: the underlying operation failed
	OutcomeFailed OutcomeStatus = "failed"
	// OutcomeTimeout ActionTimeout: the per-action deadline elapsed.
	// Not retried within the cycle; the next cycle picks it up so a
	// persistent failure is never masked as transient.
	OutcomeTimeout OutcomeStatus = "timeout"
)

// Outcome is what the engine reports back to the reconciler. The engine
// never records results itself.
type Outcome struct {
	Status      OutcomeStatus
	Changed     bool
	Err         string
	RolledBack  bool
	RollbackErr string
	Duration    time.Duration
}

// rollbackTimeout bounds the best-effort rollback attempt
const rollbackTimeout = 10 * time.Second

// Engine applies one remediation action at a time against one host
type Engine struct {
	applier Applier
}

func NewEngine(applier Applier) *Engine {
	return &Engine{applier: applier}
}

// Execute runs a single action to completion or timeout. On failure it
// attempts to roll the resource back to its pre-action value; a rollback
// failure is reported alongside, never instead of, the original failure.
func (e *Engine) Execute(ctx context.Context, action models.RemediationAction) Outcome {
	start := time.Now()

	if action.Desired.Kind == models.PredicateExpr && action.Desired.Value == "" {
		return Outcome{
			Status:   OutcomeFailed,
			Err:      fmt.Sprintf("rule %s: expression predicate has no remediation value", action.RuleID),
			Duration: time.Since(start),
		}
	}

	// The apply is detached from the cycle context: cancellation takes
	// effect at rule boundaries only, so an in-flight action runs to
	// completion or timeout rather than being killed half-applied.
	actx := context.WithoutCancel(ctx)
	if action.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(actx, action.Timeout)
		defer cancel()
	}

	changed, err := e.applier.Apply(actx, action.Host, action.Selector, action.Desired.Value)
	if err == nil {
		return Outcome{
			Status:   OutcomeApplied,
			Changed:  changed,
			Duration: time.Since(start),
		}
	}

	out := Outcome{
		Status:   OutcomeFailed,
		Changed:  changed,
		Err:      err.Error(),
		Duration: time.Since(start),
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(actx.Err(), context.DeadlineExceeded) {
		out.Status = OutcomeTimeout
	}

	// best-effort rollback to the pre-action observation, uses a fresh
	// deadline since the action context may already be dead
	if action.HasPrevious {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer cancel()
		if _, rbErr := e.applier.Apply(rctx, action.Host, action.Selector, action.Previous); rbErr != nil {
			out.RollbackErr = rbErr.Error()
		} else {
			out.RolledBack = true
		}
	}

	out.Duration = time.Since(start)
	return out
}
