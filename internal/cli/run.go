package cli

import (
	"fmt"
	"time"

	"github.com/driftd/driftd/internal/audit"
	"github.com/driftd/driftd/internal/compiler"
	"github.com/driftd/driftd/internal/executor"
	"github.com/driftd/driftd/internal/facts"
	"github.com/driftd/driftd/internal/fleet"
	"github.com/driftd/driftd/internal/inventory"
	"github.com/driftd/driftd/internal/observability"
	"github.com/driftd/driftd/internal/observability/logging"
	otelobs "github.com/driftd/driftd/internal/observability/otel"
	"github.com/driftd/driftd/internal/reconciler"
	"github.com/driftd/driftd/internal/signing"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var runCmd = &cobra.Command{
	Use:   "run --policy <file> --inventory <file>",
	Short: "Run one reconciliation cycle across the fleet",
	Long: `Compiles the policy, collects facts from every inventory host, diffs
them against the declared desired state, and remediates drift in
dependency order. Every outcome is appended to the audit log.

Exit codes: 0 = all rules compliant or remediated, 1 = one or more
rules failed or drifted without remediation, 2 = policy compile error.

Examples:
  # Converge the fleet
  driftd run --policy policy.yaml --inventory hosts.yaml

  # Report drift without touching anything
  driftd run --policy policy.yaml --inventory hosts.yaml --dry-run

  # Pull the policy from a registry and require a valid signature
  driftd run --policy oci://registry.example.com/policies/baseline:v4 \
    --inventory hosts.yaml --verify-key driftd.pub --policy-sig baseline.sig

  # Only remediate critical rules, report the rest
  driftd run --policy policy.yaml --inventory hosts.yaml --remediate critical`,
	RunE: runRun,
}

var (
	runPolicyFlag       string
	runInventoryFlag    string
	runDryRunFlag       bool
	runCycleTimeoutFlag time.Duration
	runMaxHostsFlag     int
	runProbesFlag       int
	runAuditLogFlag     string
	runFormatFlag       string
	runRemediateFlag    string
	runVerifyKeyFlag    string
	runPolicySigFlag    string
)

func init() {
	runCmd.Flags().StringVar(&runPolicyFlag, "policy", "", "Policy document: file path or oci://<ref> (required)")
	runCmd.Flags().StringVar(&runInventoryFlag, "inventory", "", "Inventory file listing target hosts (required)")
	runCmd.Flags().BoolVar(&runDryRunFlag, "dry-run", false, "Evaluate and report drift without applying actions")
	runCmd.Flags().DurationVar(&runCycleTimeoutFlag, "cycle-timeout", 5*time.Minute, "Per-host cycle budget (0 = none)")
	runCmd.Flags().IntVar(&runMaxHostsFlag, "max-hosts", fleet.DefaultMaxHosts, "Concurrent host cycles")
	runCmd.Flags().IntVar(&runProbesFlag, "probe-concurrency", facts.DefaultProbeConcurrency, "Concurrent probes per host")
	runCmd.Flags().StringVar(&runAuditLogFlag, "audit-log", "driftd-audit.log", "Append-only audit log path")
	runCmd.Flags().StringVar(&runFormatFlag, "format", "text", "Output format: text or json")
	runCmd.Flags().StringVar(&runRemediateFlag, "remediate", "all", "Remediation gate: all, none, or a severity threshold")
	runCmd.Flags().StringVar(&runVerifyKeyFlag, "verify-key", "", "Public key; refuse to run an unsigned or tampered policy")
	runCmd.Flags().StringVar(&runPolicySigFlag, "policy-sig", "", "Detached policy signature (default <policy>.sig)")

	_ = runCmd.MarkFlagRequired("policy")
	_ = runCmd.MarkFlagRequired("inventory")
}

// GetRunCmd export
func GetRunCmd() *cobra.Command {
	return runCmd
}

func runRun(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	log := logging.From(ctx)
	start := time.Now()

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "driftd.run",
			trace.WithAttributes(
				attribute.String("driftd.op_id", observability.OpID(ctx)),
				attribute.String("driftd.policy", runPolicyFlag),
				attribute.Bool("driftd.dry_run", runDryRunFlag),
			))
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed")
			} else {
				span.SetStatus(codes.Ok, "success")
			}
			span.End()
		}()
	}

	log.Event(ctx, "run.start", map[string]any{"policy": runPolicyFlag})

	var resultStatus string
	defer func() {
		log.Event(ctx, "run.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()

	if runFormatFlag != "text" && runFormatFlag != "json" {
		resultStatus = "fail"
		return fmt.Errorf("invalid format: %s (use text or json)", runFormatFlag)
	}

	gate, err := reconciler.ParseGate(runRemediateFlag)
	if err != nil {
		resultStatus = "fail"
		return err
	}

	// Load and compile the policy. Any failure here aborts before a
	// single host is touched.
	raw, loadErr := compiler.LoadDocument(ctx, runPolicyFlag)
	if loadErr != nil {
		resultStatus = "fail"
		exitCode = 2
		return loadErr
	}

	if runVerifyKeyFlag != "" {
		sigPath := runPolicySigFlag
		if sigPath == "" {
			sigPath = runPolicyFlag + signing.SignatureSuffix
		}
		valid, verifyErr := signing.VerifyPolicyBytes(raw, sigPath, runVerifyKeyFlag)
		if verifyErr != nil {
			resultStatus = "fail"
			exitCode = 2
			return fmt.Errorf("policy signature verification failed: %w", verifyErr)
		}
		if !valid {
			resultStatus = "fail"
			exitCode = 2
			return fmt.Errorf("policy signature is invalid for %s", runPolicyFlag)
		}
	}

	policy, compileErr := compiler.Compile(raw)
	if compileErr != nil {
		resultStatus = "fail"
		exitCode = 2
		return compileErr
	}

	hosts, invErr := inventory.Load(runInventoryFlag)
	if invErr != nil {
		resultStatus = "fail"
		return invErr
	}

	sink, sinkErr := audit.NewFileSink(runAuditLogFlag)
	if sinkErr != nil {
		resultStatus = "fail"
		return sinkErr
	}
	defer sink.Close()

	cfg := fleet.Config{
		Policy:    policy,
		Collector: facts.NewCollector(runProbesFlag),
		Engine:    executor.NewEngine(executor.CommandApplier{}),
		Sink:      sink,
		Options: reconciler.Options{
			DryRun: runDryRunFlag,
			Gate:   gate,
		},
		MaxHosts:     runMaxHostsFlag,
		CycleTimeout: runCycleTimeoutFlag,
	}

	result, runErr := fleet.Run(ctx, cfg, hosts)
	if runErr != nil {
		// cycles completed; only evidence writes failed
		log.Error("run", "audit log writes failed", "error", runErr.Error())
	}

	if runFormatFlag == "json" {
		out, jsonErr := FormatRunJSON(policy, result)
		if jsonErr != nil {
			resultStatus = "fail"
			return jsonErr
		}
		fmt.Println(string(out))
	} else {
		fmt.Print(FormatRunText(policy, result))
	}

	if runErr != nil {
		resultStatus = "fail"
		return fmt.Errorf("failed to record audit evidence: %w", runErr)
	}

	if !result.Converged() {
		resultStatus = "fail"
		exitCode = 1
		return fmt.Errorf("%d rule(s) did not converge (failed %d, drifted %d, skipped %d)",
			result.Summary.Failed+result.Summary.Drifted+result.Summary.Skipped,
			result.Summary.Failed, result.Summary.Drifted, result.Summary.Skipped)
	}

	resultStatus = "success"
	return nil
}
