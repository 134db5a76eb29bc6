// Package fleet runs reconciliation cycles across many hosts. Cycles are
// independent: each host's cycle shares only the immutable policy and the
// append-only sink, so no cross-host locking is needed.
package fleet

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/driftd/driftd/internal/audit"
	"github.com/driftd/driftd/internal/compiler"
	"github.com/driftd/driftd/internal/executor"
	"github.com/driftd/driftd/internal/facts"
	"github.com/driftd/driftd/internal/models"
	"github.com/driftd/driftd/internal/observability"
	"github.com/driftd/driftd/internal/observability/logging"
	otelobs "github.com/driftd/driftd/internal/observability/otel"
	"github.com/driftd/driftd/internal/reconciler"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxHosts bounds the fleet worker pool
const DefaultMaxHosts = 32

// Config wires one fleet run
type Config struct {
	Policy       *compiler.Policy
	Collector    *facts.Collector
	Engine       *executor.Engine
	Sink         audit.Sink
	Options      reconciler.Options
	MaxHosts     int
	CycleTimeout time.Duration // per-host cycle budget, 0 = none
}

// HostResult is one host's completed cycle
type HostResult struct {
	Host     string
	Results  []models.CheckResult
	Summary  reconciler.Summary
	Duration time.Duration
}

// Result aggregates the whole fleet run
type Result struct {
	Hosts   []HostResult
	Summary reconciler.Summary
}

// Converged reports whether every host ended compliant or remediated
func (r *Result) Converged() bool {
	return r.Summary.Converged()
}

// Run reconciles every host through a bounded worker pool. One host's
// failure never aborts another host's cycle; sink write failures are
// collected and reported after all cycles complete.
func Run(ctx context.Context, cfg Config, hosts []models.Host) (*Result, error) {
	log := logging.From(ctx)
	opID := observability.OpID(ctx)

	maxHosts := cfg.MaxHosts
	if maxHosts <= 0 {
		maxHosts = DefaultMaxHosts
	}

	hostResults := make([]HostResult, len(hosts))
	var mu sync.Mutex
	var sinkErrs []error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxHosts)

	for i, host := range hosts {
		g.Go(func() error {
			start := time.Now()

			cycleCtx := gctx
			if cfg.CycleTimeout > 0 {
				var cancel context.CancelFunc
				cycleCtx, cancel = context.WithTimeout(gctx, cfg.CycleTimeout)
				defer cancel()
			}

			if h := otelobs.From(ctx); h != nil {
				cctx, s := h.Tracer.Start(cycleCtx, "driftd.cycle")
				s.SetAttributes(
					attribute.String("driftd.host", host.ID),
					attribute.String("driftd.policy_version", cfg.Policy.Version),
				)
				defer s.End()
				cycleCtx = cctx
			}

			factSet := cfg.Collector.Collect(cycleCtx, cfg.Policy.Selectors())

			rec := reconciler.New(cfg.Policy, cfg.Engine, cfg.Options)
			results := rec.Reconcile(cycleCtx, host.ID, factSet)
			summary := reconciler.Summarize(results)
			duration := time.Since(start)

			for _, cr := range results {
				if err := cfg.Sink.Append(audit.CheckRecord(opID, cr)); err != nil {
					mu.Lock()
					sinkErrs = append(sinkErrs, err)
					mu.Unlock()
				}
			}
			cycle := audit.CycleRecord{
				Host:          host.ID,
				PolicyName:    cfg.Policy.Name,
				PolicyVersion: cfg.Policy.Version,
				DryRun:        cfg.Options.DryRun,
				Summary:       summary,
				DurationMs:    duration.Milliseconds(),
				Timestamp:     time.Now().Format(time.RFC3339Nano),
			}
			if err := cfg.Sink.Append(audit.CycleSummaryRecord(opID, cycle)); err != nil {
				mu.Lock()
				sinkErrs = append(sinkErrs, err)
				mu.Unlock()
			}

			log.Event(cycleCtx, "cycle.complete", map[string]any{
				"host":        host.ID,
				"duration_ms": duration.Milliseconds(),
				"compliant":   summary.Compliant,
				"drifted":     summary.Drifted,
				"remediated":  summary.Remediated,
				"failed":      summary.Failed,
				"skipped":     summary.Skipped,
			})

			hostResults[i] = HostResult{
				Host:     host.ID,
				Results:  results,
				Summary:  summary,
				Duration: duration,
			}
			return nil
		})
	}

	// workers never return errors
	_ = g.Wait()

	out := &Result{Hosts: hostResults}
	for _, hr := range hostResults {
		out.Summary.Compliant += hr.Summary.Compliant
		out.Summary.Drifted += hr.Summary.Drifted
		out.Summary.Remediated += hr.Summary.Remediated
		out.Summary.Failed += hr.Summary.Failed
		out.Summary.Skipped += hr.Summary.Skipped
	}

	return out, errors.Join(sinkErrs...)
}
