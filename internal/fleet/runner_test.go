package fleet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/driftd/driftd/internal/audit"
	"github.com/driftd/driftd/internal/compiler"
	"github.com/driftd/driftd/internal/executor"
	"github.com/driftd/driftd/internal/facts"
	"github.com/driftd/driftd/internal/models"
	"github.com/driftd/driftd/internal/reconciler"
)

type staticProbe struct {
	kind   models.SelectorKind
	values map[string]string
}

func (p staticProbe) Kind() models.SelectorKind { return p.kind }

func (p staticProbe) Collect(_ context.Context, sel models.Selector) (models.Fact, error) {
	v, ok := p.values[sel.Name]
	if !ok {
		return models.Fact{}, errors.New("probe has no value")
	}
	return models.Fact{Selector: sel, Value: v}, nil
}

type hostAwareApplier struct {
	mu        sync.Mutex
	failHosts map[string]bool
	applied   []string
}

func (a *hostAwareApplier) Apply(_ context.Context, host string, sel models.Selector, value string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failHosts[host] {
		return false, errors.New("host unreachable")
	}
	a.applied = append(a.applied, host+":"+sel.Key())
	return true, nil
}

const fleetPolicy = `
name: baseline
rules:
  - id: forwarding_off
    selector: { kind: sysctl, name: net.ipv4.ip_forward }
    desired: { equals: "0" }
    severity: critical
`

func fleetConfig(t *testing.T, applier executor.Applier, sink audit.Sink) Config {
	t.Helper()
	policy, err := compiler.Compile([]byte(fleetPolicy))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	collector := facts.NewCollector(4)
	collector.Register(staticProbe{
		kind:   models.SelectorSysctl,
		values: map[string]string{"net.ipv4.ip_forward": "1"},
	})
	return Config{
		Policy:    policy,
		Collector: collector,
		Engine:    executor.NewEngine(applier),
		Sink:      sink,
	}
}

func TestRun_EveryHostGetsACycle(t *testing.T) {
	applier := &hostAwareApplier{}
	sink := &audit.MemorySink{}
	cfg := fleetConfig(t, applier, sink)

	hosts := []models.Host{{ID: "web-1"}, {ID: "web-2"}, {ID: "db-1"}}
	result, err := Run(context.Background(), cfg, hosts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Hosts) != 3 {
		t.Fatalf("expected 3 host results, got %d", len(result.Hosts))
	}
	if result.Summary.Remediated != 3 {
		t.Errorf("remediated = %d, want 3", result.Summary.Remediated)
	}
	if !result.Converged() {
		t.Error("expected converged fleet")
	}

	// one check record plus one cycle summary per host
	var checks, cycles int
	for _, r := range sink.Records {
		switch r.Kind {
		case audit.KindCheck:
			checks++
		case audit.KindCycle:
			cycles++
		}
	}
	if checks != 3 || cycles != 3 {
		t.Errorf("sink has %d check and %d cycle records, want 3 and 3", checks, cycles)
	}
}

func TestRun_HostFailureIsIsolated(t *testing.T) {
	applier := &hostAwareApplier{failHosts: map[string]bool{"web-2": true}}
	sink := &audit.MemorySink{}
	cfg := fleetConfig(t, applier, sink)

	result, err := Run(context.Background(), cfg, []models.Host{{ID: "web-1"}, {ID: "web-2"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	byHost := make(map[string]HostResult)
	for _, hr := range result.Hosts {
		byHost[hr.Host] = hr
	}
	if byHost["web-1"].Summary.Remediated != 1 {
		t.Errorf("web-1 summary = %+v, want 1 remediated", byHost["web-1"].Summary)
	}
	if byHost["web-2"].Summary.Failed != 1 {
		t.Errorf("web-2 summary = %+v, want 1 failed", byHost["web-2"].Summary)
	}
	if result.Converged() {
		t.Error("fleet with a failed host must not converge")
	}
}

func TestRun_DryRunFleet(t *testing.T) {
	applier := &hostAwareApplier{}
	sink := &audit.MemorySink{}
	cfg := fleetConfig(t, applier, sink)
	cfg.Options = reconciler.Options{DryRun: true}

	result, err := Run(context.Background(), cfg, []models.Host{{ID: "web-1"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Summary.Drifted != 1 {
		t.Errorf("summary = %+v, want 1 drifted", result.Summary)
	}
	if len(applier.applied) != 0 {
		t.Errorf("dry run issued actions: %v", applier.applied)
	}

	for _, r := range sink.Records {
		if r.Kind == audit.KindCycle && !r.Cycle.DryRun {
			t.Error("cycle record should be marked dry run")
		}
	}
}

type failingSink struct{ audit.MemorySink }

func (s *failingSink) Append(audit.Record) error { return errors.New("disk full") }

func TestRun_SinkErrorsAreCollected(t *testing.T) {
	applier := &hostAwareApplier{}
	cfg := fleetConfig(t, applier, &failingSink{})

	_, err := Run(context.Background(), cfg, []models.Host{{ID: "web-1"}})
	if err == nil {
		t.Fatal("expected sink errors to surface")
	}
}
