package audit

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/driftd/driftd/internal/models"
	"github.com/driftd/driftd/internal/reconciler"
)

func checkResult(host, rule string, status models.CheckStatus, ts time.Time) models.CheckResult {
	return models.CheckResult{
		RuleID:        rule,
		Host:          host,
		Status:        status,
		Severity:      models.SeverityModerate,
		PolicyVersion: "sha256:abc",
		Timestamp:     ts,
	}
}

func TestFileSink_AppendAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}

	now := time.Now()
	records := []Record{
		CheckRecord("op-1", checkResult("web-1", "forwarding_off", models.StatusDrifted, now)),
		CheckRecord("op-1", checkResult("web-1", "sshd_up", models.StatusCompliant, now)),
		CheckRecord("op-1", checkResult("web-2", "forwarding_off", models.StatusRemediated, now)),
		CycleSummaryRecord("op-1", CycleRecord{Host: "web-1", PolicyVersion: "sha256:abc", Summary: reconciler.Summary{Compliant: 1, Drifted: 1}}),
	}
	for _, r := range records {
		if err := sink.Append(r); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// reopening appends rather than truncating
	sink, err = NewFileSink(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if err := sink.Append(CheckRecord("op-2", checkResult("web-1", "forwarding_off", models.StatusRemediated, now))); err != nil {
		t.Fatalf("Append after reopen failed: %v", err)
	}
	sink.Close()

	all, err := Query(path, Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	// cycle summaries are not evidence rows
	if len(all) != 4 {
		t.Fatalf("expected 4 check records, got %d", len(all))
	}
	if all[0].SchemaVersion != RecordSchemaVersion {
		t.Errorf("schema version = %q", all[0].SchemaVersion)
	}

	byHost, err := Query(path, Filter{Host: "web-2"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(byHost) != 1 || byHost[0].Check.Host != "web-2" {
		t.Errorf("host filter returned %d records", len(byHost))
	}

	byRule, err := Query(path, Filter{RuleID: "forwarding_off", Status: models.StatusRemediated})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(byRule) != 2 {
		t.Errorf("rule+status filter returned %d records, want 2", len(byRule))
	}
}

func TestQuery_TimeWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := CheckRecord("op", checkResult("web-1", "r", models.StatusCompliant, base.Add(time.Duration(i)*time.Hour)))
		if err := sink.Append(rec); err != nil {
			t.Fatal(err)
		}
	}
	sink.Close()

	got, err := Query(path, Filter{Since: base.Add(30 * time.Minute), Until: base.Add(90 * time.Minute)})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("window returned %d records, want 1", len(got))
	}
}

func TestQuery_MalformedLineFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	if err := os.WriteFile(path, []byte("{\"kind\":\"check\"}\nnot json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Query(path, Filter{}); err == nil {
		t.Error("expected error for malformed record")
	}
}

func TestCreateBundle(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.log")
	policyPath := filepath.Join(dir, "policy.yaml")
	sigPath := filepath.Join(dir, "policy.yaml.sig")
	outPath := filepath.Join(dir, "evidence.zip")

	if err := os.WriteFile(auditPath, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(policyPath, []byte("name: p\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(sigPath, []byte("c2ln\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := CreateBundle(BundleOptions{
		AuditLogPath:  auditPath,
		PolicyPath:    policyPath,
		SignaturePath: sigPath,
		OutputPath:    outPath,
	})
	if err != nil {
		t.Fatalf("CreateBundle failed: %v", err)
	}

	zr, err := zip.OpenReader(outPath)
	if err != nil {
		t.Fatalf("failed to open bundle: %v", err)
	}
	defer zr.Close()

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"manifest.json", "audit.log", "policy.yaml", "policy.yaml.sig"} {
		if !names[want] {
			t.Errorf("bundle is missing %s (has %v)", want, names)
		}
	}
}
