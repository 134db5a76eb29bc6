package models

import "time"

// SelectorKind identifies the class of resource a rule targets
type SelectorKind string

const (
	SelectorFile     SelectorKind = "file"
	SelectorSysctl   SelectorKind = "sysctl"
	SelectorService  SelectorKind = "service"
	SelectorFirewall SelectorKind = "firewall"
)

// Selector names one resource on a host
type Selector struct {
	Kind SelectorKind `yaml:"kind" json:"kind"`
	Name string       `yaml:"name" json:"name"`
}

// Key is the selector's identity within a policy and a fact set
func (s Selector) Key() string {
	return string(s.Kind) + ":" + s.Name
}

// Severity levels
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityModerate Severity = "moderate"
	SeverityInfo     Severity = "info"
)

// SeverityRank orders severities, highest rank first
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityModerate:
		return 1
	case SeverityInfo:
		return 0
	default:
		return -1
	}
}

// PredicateKind enum, one variant per probe kind plus the CEL escape hatch
type PredicateKind string

const (
	PredicateFileContent   PredicateKind = "file_content_equals"
	PredicateSysctlValue   PredicateKind = "sysctl_equals"
	PredicateServiceState  PredicateKind = "service_state_equals"
	PredicateFirewallState PredicateKind = "firewall_rule_present"
	PredicateExpr          PredicateKind = "expr"
)

// Predicate is the desired-state check for a rule. Value carries the
// desired value for the structured kinds and doubles as the remediation
// target. Expr rules with no Value are report-only: drift is recorded but
// no remediation action can be constructed from an expression alone.
type Predicate struct {
	Kind  PredicateKind `json:"kind"`
	Value string        `json:"value,omitempty"`
	Expr  string        `json:"expr,omitempty"`
	// Detail holds expected structured state (firewall zone settings).
	// Checked as a subset of the observed detail; mismatches are
	// report-only drift since no single mutation primitive covers them.
	Detail map[string]any `json:"detail,omitempty"`
}

// Rule is a single compiled policy rule. Immutable after compilation.
type Rule struct {
	ID        string        `json:"id"`
	Selector  Selector      `json:"selector"`
	Predicate Predicate     `json:"predicate"`
	Severity  Severity      `json:"severity"`
	DependsOn []string      `json:"depends_on,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"` // 0 = policy default
	Index     int           `json:"-"`                 // declaration order, topo tie-break
}

// PolicyDoc is the raw policy document as authored in YAML, before
// compilation. Durations are strings here; yaml.v3 does not parse
// time.Duration natively.
type PolicyDoc struct {
	Name     string      `yaml:"name"`
	Defaults DefaultsDoc `yaml:"defaults"`
	Rules    []RuleDoc   `yaml:"rules"`
}

// DefaultsDoc policy-level defaults
type DefaultsDoc struct {
	ActionTimeout string `yaml:"action_timeout"`
}

// RuleDoc raw rule
type RuleDoc struct {
	ID        string     `yaml:"id"`
	Selector  Selector   `yaml:"selector"`
	Desired   DesiredDoc `yaml:"desired"`
	Severity  string     `yaml:"severity"`
	DependsOn []string   `yaml:"depends_on"`
	Timeout   string     `yaml:"timeout"`
}

// DesiredDoc raw desired-state predicate. Exactly one structured field
// applies per selector kind; expr may accompany a value or stand alone.
type DesiredDoc struct {
	Equals  *string        `yaml:"equals"`  // file content or sysctl value
	State   *string        `yaml:"state"`   // service state (active/inactive)
	Present *bool          `yaml:"present"` // firewall rule presence
	Detail  map[string]any `yaml:"detail"`  // expected firewall zone settings
	Expr    string         `yaml:"expr"`    // CEL over the observed value
}
