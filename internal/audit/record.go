// Package audit is the append-only sink for reconciliation evidence.
// Records are only ever appended; corrections are superseding appends,
// never edits.
package audit

import (
	"github.com/driftd/driftd/internal/models"
	"github.com/driftd/driftd/internal/reconciler"
)

// RecordSchemaVersion current
const RecordSchemaVersion = "1.0"

// RecordKind discriminates record payloads
type RecordKind string

const (
	// KindCheck one terminal check result for a (host, rule) pair
	KindCheck RecordKind = "check"
	// KindCycle one per-host cycle summary
	KindCycle RecordKind = "cycle"
)

// Record is one line in the audit stream
type Record struct {
	SchemaVersion string              `json:"schema_version"`
	Kind          RecordKind          `json:"kind"`
	OpID          string              `json:"op_id,omitempty"`
	Check         *models.CheckResult `json:"check,omitempty"`
	Cycle         *CycleRecord        `json:"cycle,omitempty"`
}

// CycleRecord summarizes one host's reconciliation cycle
type CycleRecord struct {
	Host          string             `json:"host"`
	PolicyName    string             `json:"policy_name,omitempty"`
	PolicyVersion string             `json:"policy_version"`
	DryRun        bool               `json:"dry_run,omitempty"`
	Summary       reconciler.Summary `json:"summary"`
	DurationMs    int64              `json:"duration_ms"`
	Timestamp     string             `json:"ts"`
}

// CheckRecord wraps a check result for appending
func CheckRecord(opID string, result models.CheckResult) Record {
	r := result
	return Record{
		SchemaVersion: RecordSchemaVersion,
		Kind:          KindCheck,
		OpID:          opID,
		Check:         &r,
	}
}

// CycleSummaryRecord wraps a cycle summary for appending
func CycleSummaryRecord(opID string, cycle CycleRecord) Record {
	c := cycle
	return Record{
		SchemaVersion: RecordSchemaVersion,
		Kind:          KindCycle,
		OpID:          opID,
		Cycle:         &c,
	}
}
