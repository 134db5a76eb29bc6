// Package reconciler diffs collected facts against a compiled policy and
// drives remediation, one host cycle at a time.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/driftd/driftd/internal/compiler"
	"github.com/driftd/driftd/internal/executor"
	"github.com/driftd/driftd/internal/models"
	"github.com/driftd/driftd/internal/observability/logging"
)

// Gate controls which drifted rules get remediated
type Gate string

const (
	GateAll  Gate = "all"
	GateNone Gate = "none"
)

// ParseGate accepts all, none, or a severity name (remediate at or above)
func ParseGate(s string) (Gate, error) {
	switch s {
	case "", string(GateAll):
		return GateAll, nil
	case string(GateNone):
		return GateNone, nil
	case string(models.SeverityCritical), string(models.SeverityModerate), string(models.SeverityInfo):
		return Gate(s), nil
	default:
		return "", fmt.Errorf("invalid remediation gate %q (use all, none, or a severity)", s)
	}
}

func (g Gate) allows(sev models.Severity) bool {
	switch g {
	case GateAll:
		return true
	case GateNone:
		return false
	default:
		return models.SeverityRank(sev) >= models.SeverityRank(models.Severity(g))
	}
}

// Reconciler evaluates one policy against one host's facts. Safe to use
// from one goroutine per host; the policy itself is shared read-only.
type Reconciler struct {
	policy *compiler.Policy
	engine *executor.Engine
	dryRun bool
	gate   Gate
}

// Options tune a reconciliation cycle
type Options struct {
	DryRun bool
	Gate   Gate
}

func New(policy *compiler.Policy, engine *executor.Engine, opts Options) *Reconciler {
	gate := opts.Gate
	if gate == "" {
		gate = GateAll
	}
	return &Reconciler{
		policy: policy,
		engine: engine,
		dryRun: opts.DryRun,
		gate:   gate,
	}
}

// Reconcile walks the policy's rules in topological order and produces
// exactly one terminal check result per rule. Remediation is applied
// synchronously and sequentially; a per-cycle applied-set guarantees at
// most one action per (host, rule). Cancellation takes effect at rule
// boundaries only.
func (r *Reconciler) Reconcile(ctx context.Context, host string, factSet map[string]models.Fact) []models.CheckResult {
	log := logging.From(ctx)

	results := make([]models.CheckResult, 0, len(r.policy.Rules))
	statusByRule := make(map[string]models.CheckStatus, len(r.policy.Rules))
	applied := make(map[string]bool)

	record := func(rule models.Rule, status models.CheckStatus, evidence string) {
		statusByRule[rule.ID] = status
		results = append(results, models.CheckResult{
			RuleID:        rule.ID,
			Host:          host,
			Status:        status,
			Severity:      rule.Severity,
			Evidence:      evidence,
			PolicyVersion: r.policy.Version,
			Timestamp:     time.Now(),
		})
	}

	for _, rule := range r.policy.Rules {
		if ctx.Err() != nil {
			// cooperative cancellation: no new evaluation or action, but
			// the cycle still emits a full result set
			record(rule, models.StatusSkipped, "cycle cancelled")
			continue
		}

		if dep, ok := unmetDependency(rule, statusByRule); ok {
			record(rule, models.StatusSkipped, fmt.Sprintf("dependency %s did not converge", dep))
			continue
		}

		fact, ok := factSet[rule.Selector.Key()]
		if !ok || fact.Unavailable {
			evidence := "fact unavailable"
			if ok && fact.Error != "" {
				evidence = "fact unavailable: " + fact.Error
			}
			record(rule, models.StatusFailed, evidence)
			continue
		}

		eval, err := r.evaluate(rule, fact)
		if err != nil {
			record(rule, models.StatusFailed, fmt.Sprintf("evaluation failed: %v", err))
			continue
		}
		if eval.matched {
			record(rule, models.StatusCompliant, "")
			continue
		}

		log.Debug("reconciler", "drift detected", "host", host, "rule", rule.ID, "evidence", eval.evidence)

		if r.dryRun || !eval.remediable || !r.gate.allows(rule.Severity) {
			record(rule, models.StatusDrifted, eval.evidence)
			continue
		}

		appliedKey := host + "/" + rule.ID
		if applied[appliedKey] {
			record(rule, models.StatusDrifted, eval.evidence+" (action already applied this cycle)")
			continue
		}
		applied[appliedKey] = true

		action := models.RemediationAction{
			RuleID:      rule.ID,
			Host:        host,
			Selector:    rule.Selector,
			Desired:     rule.Predicate,
			Previous:    fact.Value,
			HasPrevious: !fact.Unavailable,
			Timeout:     r.policy.ActionTimeout(rule),
		}

		outcome := r.engine.Execute(ctx, action)
		switch outcome.Status {
		case executor.OutcomeApplied:
			record(rule, models.StatusRemediated, eval.evidence)
		case executor.OutcomeTimeout:
			record(rule, models.StatusFailed, fmt.Sprintf("action timeout after %s: %s", action.Timeout, outcome.Err))
		default:
			evidence := "action failed: " + outcome.Err
			if outcome.RolledBack {
				evidence += " (rolled back)"
			} else if outcome.RollbackErr != "" {
				evidence += " (rollback failed: " + outcome.RollbackErr + ")"
			}
			record(rule, models.StatusFailed, evidence)
		}
	}

	return results
}

// unmetDependency reports the first dependency whose terminal result
// blocks this rule. Compliant and Remediated satisfy a dependency;
// Failed, Skipped, and unremediated Drifted propagate as Skipped.
func unmetDependency(rule models.Rule, statusByRule map[string]models.CheckStatus) (string, bool) {
	for _, dep := range rule.DependsOn {
		switch statusByRule[dep] {
		case models.StatusCompliant, models.StatusRemediated:
			// satisfied
		default:
			return dep, true
		}
	}
	return "", false
}

// Summary aggregates one cycle's results
type Summary struct {
	Compliant  int `json:"compliant"`
	Drifted    int `json:"drifted"`
	Remediated int `json:"remediated"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Summarize counts terminal statuses
func Summarize(results []models.CheckResult) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case models.StatusCompliant:
			s.Compliant++
		case models.StatusDrifted:
			s.Drifted++
		case models.StatusRemediated:
			s.Remediated++
		case models.StatusFailed:
			s.Failed++
		case models.StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// Converged reports whether every rule ended compliant or remediated
func (s Summary) Converged() bool {
	return s.Drifted == 0 && s.Failed == 0 && s.Skipped == 0
}
