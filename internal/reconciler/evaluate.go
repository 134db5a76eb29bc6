package reconciler

import (
	"encoding/json"
	"fmt"

	"github.com/driftd/driftd/internal/models"
	"github.com/wI2L/jsondiff"
)

// evaluation is the outcome of matching one predicate against one fact
type evaluation struct {
	matched bool
	// remediable: a concrete desired value exists and the mismatch is on
	// the value dimension. Expression-only predicates and structured
	// detail mismatches are report-only.
	remediable bool
	evidence   string
}

func (r *Reconciler) evaluate(rule models.Rule, fact models.Fact) (evaluation, error) {
	pred := rule.Predicate

	switch pred.Kind {
	case models.PredicateExpr:
		ok, err := r.policy.EvalExpr(rule.ID, fact.Value)
		if err != nil {
			return evaluation{}, err
		}
		if ok {
			return evaluation{matched: true}, nil
		}
		return evaluation{
			remediable: pred.Value != "",
			evidence:   fmt.Sprintf("%s %s: expression %q is false for value %q", rule.Selector.Kind, rule.Selector.Name, pred.Expr, fact.Value),
		}, nil

	case models.PredicateFileContent, models.PredicateSysctlValue, models.PredicateServiceState:
		if fact.Value != pred.Value {
			return evaluation{
				remediable: true,
				evidence:   fmt.Sprintf("%s %s: want %q, got %q", rule.Selector.Kind, rule.Selector.Name, pred.Value, fact.Value),
			}, nil
		}
		return r.evaluateExprGuard(rule, fact)

	case models.PredicateFirewallState:
		if fact.Value != pred.Value {
			return evaluation{
				remediable: true,
				evidence:   fmt.Sprintf("firewall zone %s: want %s, got %s", rule.Selector.Name, pred.Value, fact.Value),
			}, nil
		}
		if len(pred.Detail) > 0 {
			patch, mismatched, err := detailDrift(pred.Detail, fact.Detail)
			if err != nil {
				return evaluation{}, err
			}
			if mismatched {
				return evaluation{
					evidence: fmt.Sprintf("firewall zone %s settings drifted: %s", rule.Selector.Name, patch),
				}, nil
			}
		}
		return r.evaluateExprGuard(rule, fact)

	default:
		return evaluation{}, fmt.Errorf("unknown predicate kind %q", pred.Kind)
	}
}

// evaluateExprGuard applies the optional CEL guard attached to a
// structured predicate after the structured check passed
func (r *Reconciler) evaluateExprGuard(rule models.Rule, fact models.Fact) (evaluation, error) {
	if rule.Predicate.Expr == "" {
		return evaluation{matched: true}, nil
	}
	ok, err := r.policy.EvalExpr(rule.ID, fact.Value)
	if err != nil {
		return evaluation{}, err
	}
	if ok {
		return evaluation{matched: true}, nil
	}
	return evaluation{
		evidence: fmt.Sprintf("%s %s: expression %q is false for value %q", rule.Selector.Kind, rule.Selector.Name, rule.Predicate.Expr, fact.Value),
	}, nil
}

// detailDrift compares expected zone settings against the observation as
// a subset match and renders the divergence as an RFC 6902 patch: the
// operations that would take the observed settings to the desired ones.
func detailDrift(desired, observed map[string]any) (string, bool, error) {
	relevant := make(map[string]any, len(desired))
	for key := range desired {
		if v, ok := observed[key]; ok {
			relevant[key] = v
		}
	}

	patch, err := jsondiff.Compare(relevant, desired)
	if err != nil {
		return "", false, fmt.Errorf("failed to diff zone settings: %w", err)
	}
	if len(patch) == 0 {
		return "", false, nil
	}

	rendered, err := json.Marshal(patch)
	if err != nil {
		return "", false, fmt.Errorf("failed to render zone diff: %w", err)
	}
	return string(rendered), true, nil
}
