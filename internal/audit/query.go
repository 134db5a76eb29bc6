package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/driftd/driftd/internal/models"
)

// Filter narrows a query over the record stream. Zero fields match
// everything.
type Filter struct {
	Host   string
	RuleID string
	Status models.CheckStatus
	Since  time.Time
	Until  time.Time
}

// Match reports whether a check record passes the filter. Cycle records
// never match; they are summaries, not evidence rows.
func (f Filter) Match(r Record) bool {
	if r.Kind != KindCheck || r.Check == nil {
		return false
	}
	c := r.Check
	if f.Host != "" && c.Host != f.Host {
		return false
	}
	if f.RuleID != "" && c.RuleID != f.RuleID {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if !f.Since.IsZero() && c.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && c.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Query reads an audit log and returns the check records matching the
// filter, in append order. Malformed lines fail the query rather than
// silently dropping evidence.
func Query(path string, f Filter) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	var out []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("malformed audit record at line %d: %w", line, err)
		}
		if f.Match(r) {
			out = append(out, r)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return out, nil
}
