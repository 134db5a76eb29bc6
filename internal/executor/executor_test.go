package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/driftd/driftd/internal/models"
)

type scriptedApplier struct {
	applyErr error
	block    bool
	calls    []string
	// rollback succeeds even when the forward apply is scripted to fail
	failOnce bool
}

func (a *scriptedApplier) Apply(ctx context.Context, _ string, sel models.Selector, value string) (bool, error) {
	a.calls = append(a.calls, sel.Key()+"="+value)
	if a.block {
		<-ctx.Done()
		return false, ctx.Err()
	}
	if a.applyErr != nil {
		err := a.applyErr
		if a.failOnce {
			a.applyErr = nil
		}
		return false, err
	}
	return true, nil
}

func action(timeout time.Duration) models.RemediationAction {
	return models.RemediationAction{
		RuleID:      "forwarding_off",
		Host:        "web-1",
		Selector:    models.Selector{Kind: models.SelectorSysctl, Name: "net.ipv4.ip_forward"},
		Desired:     models.Predicate{Kind: models.PredicateSysctlValue, Value: "0"},
		Previous:    "1",
		HasPrevious: true,
		Timeout:     timeout,
	}
}

func TestExecute_Applied(t *testing.T) {
	applier := &scriptedApplier{}
	engine := NewEngine(applier)

	out := engine.Execute(context.Background(), action(time.Second))
	if out.Status != OutcomeApplied {
		t.Fatalf("status = %s, want applied: %s", out.Status, out.Err)
	}
	if !out.Changed {
		t.Error("expected Changed")
	}
	if len(applier.calls) != 1 {
		t.Errorf("expected 1 call, got %v", applier.calls)
	}
}

func TestExecute_Timeout(t *testing.T) {
	applier := &scriptedApplier{block: true}
	engine := NewEngine(applier)

	a := action(20 * time.Millisecond)
	a.HasPrevious = false // keep the blocking applier out of the rollback path
	out := engine.Execute(context.Background(), a)
	if out.Status != OutcomeTimeout {
		t.Fatalf("status = %s, want timeout: %s", out.Status, out.Err)
	}
}

// ctxSensitiveApplier models an external command: it aborts immediately
// if its context is already dead, otherwise finishes its work
type ctxSensitiveApplier struct {
	work     time.Duration
	finished bool
}

func (a *ctxSensitiveApplier) Apply(ctx context.Context, _ string, _ models.Selector, _ string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}
	select {
	case <-time.After(a.work):
		a.finished = true
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func TestExecute_CycleCancellationDoesNotAbortInFlightAction(t *testing.T) {
	applier := &ctxSensitiveApplier{work: 20 * time.Millisecond}
	engine := NewEngine(applier)

	// the cycle is already cancelled; the action must still run to
	// completion under its own timeout
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := engine.Execute(ctx, action(time.Second))
	if out.Status != OutcomeApplied {
		t.Fatalf("status = %s, want applied: %s", out.Status, out.Err)
	}
	if !applier.finished {
		t.Error("in-flight action was aborted by cycle cancellation")
	}
}

func TestExecute_FailureRollsBack(t *testing.T) {
	applier := &scriptedApplier{applyErr: errors.New("write refused"), failOnce: true}
	engine := NewEngine(applier)

	out := engine.Execute(context.Background(), action(time.Second))
	if out.Status != OutcomeFailed {
		t.Fatalf("status = %s, want failed", out.Status)
	}
	if !out.RolledBack {
		t.Errorf("expected rollback, got rollback error %q", out.RollbackErr)
	}
	if len(applier.calls) != 2 {
		t.Fatalf("expected apply + rollback, got %v", applier.calls)
	}
	if applier.calls[1] != "sysctl:net.ipv4.ip_forward=1" {
		t.Errorf("rollback restored %q, want previous value", applier.calls[1])
	}
}

func TestExecute_RollbackFailureIsReported(t *testing.T) {
	applier := &scriptedApplier{applyErr: errors.New("write refused")}
	engine := NewEngine(applier)

	out := engine.Execute(context.Background(), action(time.Second))
	if out.Status != OutcomeFailed {
		t.Fatalf("status = %s, want failed", out.Status)
	}
	if out.RolledBack {
		t.Error("rollback should have failed")
	}
	if out.RollbackErr == "" {
		t.Error("expected rollback error to be reported")
	}
	// the original failure is never masked by the rollback result
	if out.Err != "write refused" {
		t.Errorf("err = %q, want original failure", out.Err)
	}
}

func TestExecute_NoPreviousSkipsRollback(t *testing.T) {
	applier := &scriptedApplier{applyErr: errors.New("write refused")}
	engine := NewEngine(applier)

	a := action(time.Second)
	a.HasPrevious = false
	out := engine.Execute(context.Background(), a)
	if out.Status != OutcomeFailed {
		t.Fatalf("status = %s, want failed", out.Status)
	}
	if len(applier.calls) != 1 {
		t.Errorf("expected no rollback attempt, got %v", applier.calls)
	}
}

func TestExecute_ExprWithoutValueFails(t *testing.T) {
	applier := &scriptedApplier{}
	engine := NewEngine(applier)

	a := action(time.Second)
	a.Desired = models.Predicate{Kind: models.PredicateExpr, Expr: `value == "0"`}
	out := engine.Execute(context.Background(), a)
	if out.Status != OutcomeFailed {
		t.Fatalf("status = %s, want failed", out.Status)
	}
	if len(applier.calls) != 0 {
		t.Errorf("expected no applies, got %v", applier.calls)
	}
}
