package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/driftd/driftd/internal/observability"
	"github.com/driftd/driftd/internal/observability/logging"
	otelobs "github.com/driftd/driftd/internal/observability/otel"
	"github.com/driftd/driftd/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "driftd",
	Short: "Configuration-compliance reconciliation for machine fleets",
	Long: `driftd: continuous verification of declared system posture.
Compiles declarative policies, detects drift on managed hosts, and
converges them back with an auditable evidence trail.`,
	Version:           version.BuildVersion(),
	PersistentPreRunE: setupObservability,
	PersistentPostRun: teardownObservability,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

var (
	logFormatFlag string
	logLevelFlag  string
	logOutputFlag string

	otelEnabledFlag  bool
	otelEndpointFlag string
	otelProtocolFlag string
	otelInsecureFlag bool
	otelSampleFlag   float64
)

// closers populated by setup, drained by teardown
var (
	activeLogger logging.Logger
	activeOTel   *otelobs.Handle
)

// exitCode lets commands pick the documented exit codes (1 = failed
// rules remain, 2 = policy compile error) while still flowing through
// cobra's normal teardown.
var exitCode int

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitCode == 0 {
			exitCode = 1
		}
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logFormatFlag, "log-format", "jsonl", "Log format: jsonl or none")
	pf.StringVar(&logLevelFlag, "log-level", "info", "Log level: debug, info, warn, or error")
	pf.StringVar(&logOutputFlag, "log-output", "stderr", "Log destination: stderr or a file path")
	pf.BoolVar(&otelEnabledFlag, "otel", false, "Enable OpenTelemetry tracing")
	pf.StringVar(&otelEndpointFlag, "otel-endpoint", "", "OTLP endpoint (default from OTEL_EXPORTER_OTLP_ENDPOINT)")
	pf.StringVar(&otelProtocolFlag, "otel-protocol", otelobs.ProtocolHTTP, "OTLP protocol: otlphttp or otlpgrpc")
	pf.BoolVar(&otelInsecureFlag, "otel-insecure", false, "Allow insecure OTLP connections")
	pf.Float64Var(&otelSampleFlag, "otel-sample-ratio", 1.0, "Trace sample ratio (0..1)")

	rootCmd.AddCommand(GetRunCmd())
	rootCmd.AddCommand(GetPolicyCmd())
	rootCmd.AddCommand(GetKeygenCmd())
	rootCmd.AddCommand(GetReportCmd())
}

// setupObservability builds the op-scoped context every command sees:
// op_id, logger, and (if enabled) the OTel handle.
func setupObservability(cmd *cobra.Command, args []string) error {
	ctx := observability.WithOpID(cmd.Context())

	logCfg := logging.Config{
		Format: logFormatFlag,
		Level:  logLevelFlag,
		Output: logOutputFlag,
	}
	log, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	activeLogger = log
	ctx = logging.WithLogger(ctx, log)

	if otelEnabledFlag {
		handle, err := otelobs.Init(ctx, otelobs.Config{
			Enabled:     true,
			Endpoint:    otelEndpointFlag,
			Protocol:    otelProtocolFlag,
			Insecure:    otelInsecureFlag,
			ServiceName: "driftd",
			SampleRatio: otelSampleFlag,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		activeOTel = handle
		ctx = otelobs.WithHandle(ctx, handle)
	}

	cmd.SetContext(ctx)
	return nil
}

func teardownObservability(cmd *cobra.Command, args []string) {
	if activeOTel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = activeOTel.Shutdown(ctx)
		activeOTel = nil
	}
	if activeLogger != nil {
		_ = activeLogger.Close()
		activeLogger = nil
	}
}
