// Package compiler turns raw policy documents into immutable, topologically
// ordered policies. Compilation is a pure transformation: no side effects,
// atomic failure.
package compiler

import (
	"fmt"
	"time"

	"github.com/driftd/driftd/internal/models"
	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"
)

// DefaultActionTimeout applies when neither the policy nor the rule sets one
const DefaultActionTimeout = 30 * time.Second

// Policy is a compiled policy. Immutable; safe to share read-only across
// concurrent host cycles.
type Policy struct {
	Name           string
	Version        string
	DefaultTimeout time.Duration
	Rules          []models.Rule // topological order, declaration-order tie-break

	byID     map[string]int
	programs map[string]cel.Program
}

// Rule looks up a rule by ID
func (p *Policy) Rule(id string) (models.Rule, bool) {
	i, ok := p.byID[id]
	if !ok {
		return models.Rule{}, false
	}
	return p.Rules[i], true
}

// Selectors returns the unique resource selectors the policy requires,
// in evaluation order. This is the fact collector's work list.
func (p *Policy) Selectors() []models.Selector {
	seen := make(map[string]bool, len(p.Rules))
	out := make([]models.Selector, 0, len(p.Rules))
	for _, r := range p.Rules {
		key := r.Selector.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r.Selector)
	}
	return out
}

// ActionTimeout resolves the effective timeout for a rule
func (p *Policy) ActionTimeout(r models.Rule) time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return p.DefaultTimeout
}

// EvalExpr evaluates a rule's precompiled CEL expression against an
// observed value. Only valid for rules whose predicate carries an expr.
func (p *Policy) EvalExpr(ruleID, value string) (bool, error) {
	prg, ok := p.programs[ruleID]
	if !ok {
		return false, fmt.Errorf("rule %q has no compiled expression", ruleID)
	}
	out, _, err := prg.Eval(map[string]any{"value": value})
	if err != nil {
		return false, fmt.Errorf("expression evaluation failed: %w", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return b, nil
}

// Compile parses and validates a raw policy document. Any failure is a
// *CompileError (or a parse error for malformed YAML) and discards the
// whole policy.
func Compile(raw []byte) (*Policy, error) {
	var doc models.PolicyDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy document: %w", err)
	}

	// version hash over the canonicalized document tree
	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse policy document: %w", err)
	}
	version, err := HashDocument(tree)
	if err != nil {
		return nil, err
	}

	defaultTimeout := DefaultActionTimeout
	if doc.Defaults.ActionTimeout != "" {
		d, parseErr := time.ParseDuration(doc.Defaults.ActionTimeout)
		if parseErr != nil {
			return nil, &CompileError{
				Kind:   KindInvalidPredicate,
				Detail: fmt.Sprintf("invalid defaults.action_timeout %q: %v", doc.Defaults.ActionTimeout, parseErr),
			}
		}
		defaultTimeout = d
	}

	env, err := cel.NewEnv(cel.Variable("value", cel.StringType))
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	byID := make(map[string]int, len(doc.Rules))
	rules := make([]models.Rule, 0, len(doc.Rules))
	programs := make(map[string]cel.Program)

	for i, rd := range doc.Rules {
		if rd.ID == "" {
			return nil, &CompileError{Kind: KindInvalidPredicate, Detail: fmt.Sprintf("rule at index %d has no id", i)}
		}
		if _, dup := byID[rd.ID]; dup {
			return nil, &CompileError{Kind: KindDuplicateRule, RuleID: rd.ID, Detail: "rule id declared more than once"}
		}

		rule, prg, buildErr := buildRule(env, rd, i)
		if buildErr != nil {
			return nil, buildErr
		}

		byID[rd.ID] = len(rules)
		rules = append(rules, rule)
		if prg != nil {
			programs[rd.ID] = prg
		}
	}

	// dependency resolution
	for _, r := range rules {
		for _, dep := range r.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, &CompileError{
					Kind:   KindUnresolvedDependency,
					RuleID: r.ID,
					Detail: fmt.Sprintf("depends on unknown rule %q", dep),
				}
			}
			if dep == r.ID {
				return nil, &CompileError{Kind: KindCyclicDependency, RuleID: r.ID, Detail: "rule depends on itself"}
			}
		}
	}

	ordered, err := topoSort(rules, byID)
	if err != nil {
		return nil, err
	}

	// reindex after ordering
	orderedByID := make(map[string]int, len(ordered))
	for i, r := range ordered {
		orderedByID[r.ID] = i
	}

	return &Policy{
		Name:           doc.Name,
		Version:        version,
		DefaultTimeout: defaultTimeout,
		Rules:          ordered,
		byID:           orderedByID,
		programs:       programs,
	}, nil
}

// buildRule normalizes one raw rule into its compiled form
func buildRule(env *cel.Env, rd models.RuleDoc, index int) (models.Rule, cel.Program, error) {
	pred, err := buildPredicate(rd)
	if err != nil {
		return models.Rule{}, nil, err
	}

	sev, err := parseSeverity(rd)
	if err != nil {
		return models.Rule{}, nil, err
	}

	var timeout time.Duration
	if rd.Timeout != "" {
		d, parseErr := time.ParseDuration(rd.Timeout)
		if parseErr != nil {
			return models.Rule{}, nil, &CompileError{
				Kind:   KindInvalidPredicate,
				RuleID: rd.ID,
				Detail: fmt.Sprintf("invalid timeout %q: %v", rd.Timeout, parseErr),
			}
		}
		timeout = d
	}

	rule := models.Rule{
		ID:        rd.ID,
		Selector:  rd.Selector,
		Predicate: pred,
		Severity:  sev,
		DependsOn: append([]string(nil), rd.DependsOn...),
		Timeout:   timeout,
		Index:     index,
	}

	// precompile CEL so a bad expression fails the whole policy up front
	if pred.Expr == "" {
		return rule, nil, nil
	}
	ast, issues := env.Compile(pred.Expr)
	if issues != nil && issues.Err() != nil {
		return models.Rule{}, nil, &CompileError{
			Kind:   KindInvalidPredicate,
			RuleID: rd.ID,
			Detail: fmt.Sprintf("CEL compile error: %v", issues.Err()),
		}
	}
	prg, err := env.Program(ast)
	if err != nil {
		return models.Rule{}, nil, &CompileError{
			Kind:   KindInvalidPredicate,
			RuleID: rd.ID,
			Detail: fmt.Sprintf("CEL program error: %v", err),
		}
	}
	return rule, prg, nil
}

// buildPredicate maps the desired-state document onto the predicate
// variant for the rule's selector kind
func buildPredicate(rd models.RuleDoc) (models.Predicate, error) {
	d := rd.Desired

	invalid := func(detail string) (models.Predicate, error) {
		return models.Predicate{}, &CompileError{Kind: KindInvalidPredicate, RuleID: rd.ID, Detail: detail}
	}

	// expr-only rules are legal for any selector kind
	if d.Equals == nil && d.State == nil && d.Present == nil {
		if d.Expr == "" {
			return invalid("desired state is empty")
		}
		return models.Predicate{Kind: models.PredicateExpr, Expr: d.Expr}, nil
	}

	if len(d.Detail) > 0 && rd.Selector.Kind != models.SelectorFirewall {
		return invalid("desired.detail only applies to firewall selectors")
	}

	switch rd.Selector.Kind {
	case models.SelectorFile:
		if d.Equals == nil {
			return invalid("file selector requires desired.equals")
		}
		return models.Predicate{Kind: models.PredicateFileContent, Value: *d.Equals, Expr: d.Expr}, nil
	case models.SelectorSysctl:
		if d.Equals == nil {
			return invalid("sysctl selector requires desired.equals")
		}
		return models.Predicate{Kind: models.PredicateSysctlValue, Value: *d.Equals, Expr: d.Expr}, nil
	case models.SelectorService:
		if d.State == nil {
			return invalid("service selector requires desired.state")
		}
		return models.Predicate{Kind: models.PredicateServiceState, Value: *d.State, Expr: d.Expr}, nil
	case models.SelectorFirewall:
		if d.Present == nil {
			return invalid("firewall selector requires desired.present")
		}
		value := "absent"
		if *d.Present {
			value = "present"
		}
		if len(d.Detail) > 0 && !*d.Present {
			return invalid("desired.detail requires desired.present: true")
		}
		return models.Predicate{Kind: models.PredicateFirewallState, Value: value, Expr: d.Expr, Detail: d.Detail}, nil
	default:
		return invalid(fmt.Sprintf("unknown selector kind %q", rd.Selector.Kind))
	}
}

func parseSeverity(rd models.RuleDoc) (models.Severity, error) {
	switch rd.Severity {
	case "":
		return models.SeverityModerate, nil
	case string(models.SeverityCritical), string(models.SeverityModerate), string(models.SeverityInfo):
		return models.Severity(rd.Severity), nil
	default:
		return "", &CompileError{
			Kind:   KindInvalidPredicate,
			RuleID: rd.ID,
			Detail: fmt.Sprintf("unknown severity %q", rd.Severity),
		}
	}
}
