package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/driftd/driftd/internal/compiler"
	"github.com/driftd/driftd/internal/fleet"
	"github.com/driftd/driftd/internal/models"
	"github.com/driftd/driftd/internal/reconciler"
)

// RunOutput is the stable JSON shape for CI consumption
type RunOutput struct {
	PolicyName    string             `json:"policy_name,omitempty"`
	PolicyVersion string             `json:"policy_version"`
	Outcome       string             `json:"outcome"` // PASS or FAIL
	Summary       reconciler.Summary `json:"summary"`
	Hosts         []HostOutput       `json:"hosts"`
}

// HostOutput one host's cycle
type HostOutput struct {
	Host       string               `json:"host"`
	DurationMs int64                `json:"duration_ms"`
	Summary    reconciler.Summary   `json:"summary"`
	Results    []models.CheckResult `json:"results"`
}

// FormatRunJSON renders a fleet run as JSON
func FormatRunJSON(policy *compiler.Policy, result *fleet.Result) ([]byte, error) {
	out := RunOutput{
		PolicyName:    policy.Name,
		PolicyVersion: policy.Version,
		Outcome:       "PASS",
		Summary:       result.Summary,
		Hosts:         make([]HostOutput, 0, len(result.Hosts)),
	}
	if !result.Converged() {
		out.Outcome = "FAIL"
	}
	for _, hr := range result.Hosts {
		out.Hosts = append(out.Hosts, HostOutput{
			Host:       hr.Host,
			DurationMs: hr.Duration.Milliseconds(),
			Summary:    hr.Summary,
			Results:    hr.Results,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

// FormatRunText renders a fleet run for humans
func FormatRunText(policy *compiler.Policy, result *fleet.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Policy: %s (%s)\n", policy.Name, shortVersion(policy.Version))
	fmt.Fprintf(&b, "Hosts: %d\n\n", len(result.Hosts))

	for _, hr := range result.Hosts {
		fmt.Fprintf(&b, "%s  compliant=%d remediated=%d drifted=%d failed=%d skipped=%d (%dms)\n",
			hr.Host, hr.Summary.Compliant, hr.Summary.Remediated,
			hr.Summary.Drifted, hr.Summary.Failed, hr.Summary.Skipped,
			hr.Duration.Milliseconds())

		for _, cr := range hr.Results {
			if cr.Status == models.StatusCompliant {
				continue
			}
			fmt.Fprintf(&b, "  [%s] %s (%s)", statusLabel(cr.Status), cr.RuleID, cr.Severity)
			if cr.Evidence != "" {
				fmt.Fprintf(&b, ": %s", cr.Evidence)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	s := result.Summary
	fmt.Fprintf(&b, "Total: %d compliant, %d remediated, %d drifted, %d failed, %d skipped\n",
		s.Compliant, s.Remediated, s.Drifted, s.Failed, s.Skipped)
	if result.Converged() {
		b.WriteString("Outcome: PASS\n")
	} else {
		b.WriteString("Outcome: FAIL\n")
	}
	return b.String()
}

func statusLabel(s models.CheckStatus) string {
	return strings.ToUpper(string(s))
}

// shortVersion truncates a sha256 content hash for display
func shortVersion(v string) string {
	if rest, ok := strings.CutPrefix(v, "sha256:"); ok && len(rest) > 12 {
		return "sha256:" + rest[:12]
	}
	return v
}
