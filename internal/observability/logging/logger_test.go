package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/driftd/driftd/internal/observability"
)

func TestJSONLLogger_ValidJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := &jsonlLogger{
		writer:   &buf,
		minLevel: 0, // debug
	}

	ctx := observability.WithOpID(context.Background())
	logger.Event(ctx, "cycle.complete", map[string]any{"host": "web-1"})

	output := buf.String()
	if output == "" {
		t.Fatal("expected output, got empty string")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v\nOutput: %s", err, output)
	}
	if entry["event"] != "driftd.cycle.complete" {
		t.Errorf("event = %v, want driftd.cycle.complete", entry["event"])
	}
}

func TestJSONLLogger_RequiredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := &jsonlLogger{
		writer:   &buf,
		minLevel: 0,
	}

	ctx := observability.WithOpID(context.Background())
	logger.Event(ctx, "run.start", nil)

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	requiredFields := []string{"ts", "level", "event", "component", "op_id", "schema_version"}
	for _, field := range requiredFields {
		if _, ok := entry[field]; !ok {
			t.Errorf("missing required field: %s", field)
		}
	}
	if entry["op_id"] == "" {
		t.Error("op_id should be populated from context")
	}
}

func TestJSONLLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := &jsonlLogger{
		writer:   &buf,
		minLevel: levelPriority(LevelWarn),
	}

	logger.Debug("reconciler", "should be dropped")
	logger.Info("reconciler", "should be dropped")
	if buf.Len() != 0 {
		t.Errorf("below-threshold entries were written: %s", buf.String())
	}

	logger.Error("reconciler", "kept", "rule", "forwarding_off")
	if buf.Len() == 0 {
		t.Fatal("error entry was dropped")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["level"] != LevelError {
		t.Errorf("level = %v", entry["level"])
	}
	fields, _ := entry["fields"].(map[string]any)
	if fields["rule"] != "forwarding_off" {
		t.Errorf("fields = %v", entry["fields"])
	}
}

func TestNewLogger_NoneFormatIsNoop(t *testing.T) {
	logger, err := NewLogger(Config{Format: "none", Level: "info"})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if _, ok := logger.(*noopLogger); !ok {
		t.Errorf("expected noop logger, got %T", logger)
	}
}
