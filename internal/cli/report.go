package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/driftd/driftd/internal/audit"
	"github.com/driftd/driftd/internal/models"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report --audit-log <file>",
	Short: "Query the audit log",
	Long: `Reads the append-only audit log and prints check records matching the
filters, in append order. The JSON format emits one record per line for
downstream SIEM or dashboard ingestion.

Examples:
  # All failures for one host
  driftd report --audit-log driftd-audit.log --host web-01 --status failed

  # Everything a rule did in a time window
  driftd report --audit-log driftd-audit.log --rule ip_forward_off \
    --since 2026-08-01T00:00:00Z --until 2026-09-01T00:00:00Z`,
	RunE: runReport,
}

var reportBundleCmd = &cobra.Command{
	Use:   "bundle --audit-log <file> --policy <file> -o <bundle.zip>",
	Short: "Package audit evidence for auditors",
	RunE:  runReportBundle,
}

var (
	reportLogFlag    string
	reportHostFlag   string
	reportRuleFlag   string
	reportStatusFlag string
	reportSinceFlag  string
	reportUntilFlag  string
	reportFormatFlag string

	bundlePolicyFlag string
	bundleSigFlag    string
	bundleOutFlag    string
)

func init() {
	reportCmd.Flags().StringVar(&reportLogFlag, "audit-log", "driftd-audit.log", "Audit log path")
	reportCmd.Flags().StringVar(&reportHostFlag, "host", "", "Filter by host id")
	reportCmd.Flags().StringVar(&reportRuleFlag, "rule", "", "Filter by rule id")
	reportCmd.Flags().StringVar(&reportStatusFlag, "status", "", "Filter by status: compliant, drifted, remediated, failed, or skipped")
	reportCmd.Flags().StringVar(&reportSinceFlag, "since", "", "Only records at or after this RFC3339 time")
	reportCmd.Flags().StringVar(&reportUntilFlag, "until", "", "Only records at or before this RFC3339 time")
	reportCmd.Flags().StringVar(&reportFormatFlag, "format", "text", "Output format: text or json")

	reportBundleCmd.Flags().StringVar(&reportLogFlag, "audit-log", "driftd-audit.log", "Audit log path")
	reportBundleCmd.Flags().StringVar(&bundlePolicyFlag, "policy", "", "Policy file to include (required)")
	reportBundleCmd.Flags().StringVar(&bundleSigFlag, "sig", "", "Detached policy signature to include")
	reportBundleCmd.Flags().StringVarP(&bundleOutFlag, "output", "o", "driftd-evidence.zip", "Bundle output path")
	_ = reportBundleCmd.MarkFlagRequired("policy")

	reportCmd.AddCommand(reportBundleCmd)
}

// GetReportCmd export
func GetReportCmd() *cobra.Command {
	return reportCmd
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportFormatFlag != "text" && reportFormatFlag != "json" {
		return fmt.Errorf("invalid format: %s (use text or json)", reportFormatFlag)
	}

	filter := audit.Filter{
		Host:   reportHostFlag,
		RuleID: reportRuleFlag,
		Status: models.CheckStatus(reportStatusFlag),
	}

	if reportSinceFlag != "" {
		t, err := time.Parse(time.RFC3339, reportSinceFlag)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		filter.Since = t
	}
	if reportUntilFlag != "" {
		t, err := time.Parse(time.RFC3339, reportUntilFlag)
		if err != nil {
			return fmt.Errorf("invalid --until: %w", err)
		}
		filter.Until = t
	}

	records, err := audit.Query(reportLogFlag, filter)
	if err != nil {
		return err
	}

	if reportFormatFlag == "json" {
		for _, r := range records {
			line, jsonErr := json.Marshal(r)
			if jsonErr != nil {
				return jsonErr
			}
			fmt.Println(string(line))
		}
		return nil
	}

	if len(records) == 0 {
		fmt.Println("No matching records.")
		return nil
	}
	for _, r := range records {
		c := r.Check
		line := fmt.Sprintf("%s  %-12s %-10s %s",
			c.Timestamp.Format(time.RFC3339), c.Host, statusLabel(c.Status), c.RuleID)
		if c.Evidence != "" {
			line += "  " + c.Evidence
		}
		fmt.Println(strings.TrimRight(line, " "))
	}
	fmt.Printf("\n%d record(s)\n", len(records))
	return nil
}

func runReportBundle(cmd *cobra.Command, args []string) error {
	opts := audit.BundleOptions{
		AuditLogPath:  reportLogFlag,
		PolicyPath:    bundlePolicyFlag,
		SignaturePath: bundleSigFlag,
		OutputPath:    bundleOutFlag,
	}
	if err := audit.CreateBundle(opts); err != nil {
		return err
	}
	fmt.Printf("Evidence bundle written to %s\n", bundleOutFlag)
	return nil
}
