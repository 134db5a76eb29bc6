package facts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/driftd/driftd/internal/models"
)

type fakeProbe struct {
	kind   models.SelectorKind
	values map[string]string
	errs   map[string]error

	inflight int32
	peak     int32
}

func (p *fakeProbe) Kind() models.SelectorKind { return p.kind }

func (p *fakeProbe) Collect(_ context.Context, sel models.Selector) (models.Fact, error) {
	cur := atomic.AddInt32(&p.inflight, 1)
	defer atomic.AddInt32(&p.inflight, -1)
	for {
		old := atomic.LoadInt32(&p.peak)
		if cur <= old || atomic.CompareAndSwapInt32(&p.peak, old, cur) {
			break
		}
	}
	time.Sleep(time.Millisecond) // let probes overlap so peak tracking is meaningful
	if err := p.errs[sel.Name]; err != nil {
		return models.Fact{}, err
	}
	return models.Fact{Selector: sel, Value: p.values[sel.Name]}, nil
}

func TestCollect_FailuresDegradeOneSelector(t *testing.T) {
	probe := &fakeProbe{
		kind:   models.SelectorSysctl,
		values: map[string]string{"net.ipv4.ip_forward": "0"},
		errs:   map[string]error{"kernel.kptr_restrict": errors.New("permission denied")},
	}
	c := NewCollector(4)
	c.Register(probe)

	selectors := []models.Selector{
		{Kind: models.SelectorSysctl, Name: "net.ipv4.ip_forward"},
		{Kind: models.SelectorSysctl, Name: "kernel.kptr_restrict"},
	}
	facts := c.Collect(context.Background(), selectors)

	if len(facts) != 2 {
		t.Fatalf("expected a fact per selector, got %d", len(facts))
	}
	good := facts["sysctl:net.ipv4.ip_forward"]
	if good.Unavailable || good.Value != "0" {
		t.Errorf("unexpected fact: %+v", good)
	}
	bad := facts["sysctl:kernel.kptr_restrict"]
	if !bad.Unavailable {
		t.Fatalf("expected unavailable fact, got %+v", bad)
	}
	if bad.Error != "permission denied" {
		t.Errorf("error = %q", bad.Error)
	}
}

func TestCollect_UnknownKindIsUnavailable(t *testing.T) {
	c := &Collector{probes: map[models.SelectorKind]Probe{}, limit: 2}
	facts := c.Collect(context.Background(), []models.Selector{
		{Kind: models.SelectorKind("container"), Name: "nginx"},
	})
	f := facts["container:nginx"]
	if !f.Unavailable {
		t.Fatalf("expected unavailable fact, got %+v", f)
	}
}

func TestCollect_RespectsConcurrencyLimit(t *testing.T) {
	probe := &fakeProbe{kind: models.SelectorSysctl, values: map[string]string{}}
	c := NewCollector(2)
	c.Register(probe)

	selectors := make([]models.Selector, 8)
	for i := range selectors {
		selectors[i] = models.Selector{Kind: models.SelectorSysctl, Name: "kernel.param" + string(rune('a'+i))}
	}
	c.Collect(context.Background(), selectors)

	if peak := atomic.LoadInt32(&probe.peak); peak > 2 {
		t.Errorf("observed %d concurrent probes, limit is 2", peak)
	}
}

func TestFileProbe_ReadsUnderRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "etc/ssh"), 0o755); err != nil {
		t.Fatal(err)
	}
	content := "PermitRootLogin no\n"
	if err := os.WriteFile(filepath.Join(dir, "etc/ssh/sshd_config"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	probe := FileProbe{Root: dir}
	fact, err := probe.Collect(context.Background(), models.Selector{Kind: models.SelectorFile, Name: "/etc/ssh/sshd_config"})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if fact.Value != content {
		t.Errorf("value = %q, want %q", fact.Value, content)
	}

	_, err = probe.Collect(context.Background(), models.Selector{Kind: models.SelectorFile, Name: "/etc/missing"})
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestKernelParamProbe(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "net/ipv4"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "net/ipv4/ip_forward"), []byte("0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	probe := KernelParamProbe{ProcRoot: dir}
	fact, err := probe.Collect(context.Background(), models.Selector{Kind: models.SelectorSysctl, Name: "net.ipv4.ip_forward"})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if fact.Value != "0" {
		t.Errorf("value = %q, want trimmed %q", fact.Value, "0")
	}

	if _, err := probe.Collect(context.Background(), models.Selector{Kind: models.SelectorSysctl, Name: "..etc.shadow"}); err == nil {
		t.Error("expected error for path traversal in parameter name")
	}
}

type fakeRunner struct {
	out string
	err error
}

func (r fakeRunner) Run(context.Context, string, ...string) (string, error) {
	return r.out, r.err
}

func TestServiceProbe_StateWinsOverExitCode(t *testing.T) {
	probe := ServiceProbe{Runner: fakeRunner{out: "inactive", err: errors.New("exit status 3")}}
	fact, err := probe.Collect(context.Background(), models.Selector{Kind: models.SelectorService, Name: "sshd"})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if fact.Value != "inactive" {
		t.Errorf("value = %q, want inactive", fact.Value)
	}
}

func TestServiceProbe_UnknownUnit(t *testing.T) {
	probe := ServiceProbe{Runner: fakeRunner{out: "", err: errors.New("exit status 4")}}
	if _, err := probe.Collect(context.Background(), models.Selector{Kind: models.SelectorService, Name: "nope"}); err == nil {
		t.Error("expected error for unknown unit")
	}
}

func TestFirewallProbe_PresentWithDetail(t *testing.T) {
	out := `dmz (active)
  target: DROP
  services: ssh https
  masquerade: no
  no colon here`
	probe := FirewallProbe{Runner: fakeRunner{out: out}}
	fact, err := probe.Collect(context.Background(), models.Selector{Kind: models.SelectorFirewall, Name: "dmz"})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if fact.Value != "present" {
		t.Errorf("value = %q, want present", fact.Value)
	}
	if fact.Detail["target"] != "DROP" {
		t.Errorf("target = %v", fact.Detail["target"])
	}
	services, ok := fact.Detail["services"].([]any)
	if !ok || len(services) != 2 || services[0] != "ssh" {
		t.Errorf("services = %v", fact.Detail["services"])
	}
}

func TestFirewallProbe_InvalidZoneMeansAbsent(t *testing.T) {
	probe := FirewallProbe{Runner: fakeRunner{out: "", err: errors.New("Error: INVALID_ZONE: dmz")}}
	fact, err := probe.Collect(context.Background(), models.Selector{Kind: models.SelectorFirewall, Name: "dmz"})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if fact.Value != "absent" {
		t.Errorf("value = %q, want absent", fact.Value)
	}
}
