package models

import "time"

// CheckStatus terminal states for a rule within one cycle
type CheckStatus string

const (
	StatusCompliant  CheckStatus = "compliant"
	StatusDrifted    CheckStatus = "drifted"
	StatusRemediated CheckStatus = "remediated"
	StatusFailed     CheckStatus = "failed"
	StatusSkipped    CheckStatus = "skipped"
)

// CheckResult is one terminal result for a (host, rule) pair. Results
// are append-only audit evidence and are never mutated after creation;
// corrections are made by appending a superseding result.
type CheckResult struct {
	RuleID        string      `json:"rule_id"`
	Host          string      `json:"host"`
	Status        CheckStatus `json:"status"`
	Severity      Severity    `json:"severity"`
	Evidence      string      `json:"evidence,omitempty"`
	PolicyVersion string      `json:"policy_version"`
	Timestamp     time.Time   `json:"ts"`
}

// RemediationAction is derived from a drifted check and exists only for
// the duration of one reconciliation cycle.
type RemediationAction struct {
	RuleID   string
	Host     string
	Selector Selector
	Desired  Predicate
	// Previous is the pre-action observed value, used for best-effort
	// rollback. Empty when the fact was unavailable or had no value.
	Previous    string
	HasPrevious bool
	Timeout     time.Duration
}
