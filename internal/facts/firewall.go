package facts

import (
	"context"
	"strings"
	"time"

	"github.com/driftd/driftd/internal/models"
)

// FirewallProbe queries the firewall backend for zone state. The fact
// value is "present" or "absent"; Detail carries the parsed zone
// configuration for structured drift evidence.
type FirewallProbe struct {
	Runner CommandRunner
}

func (FirewallProbe) Kind() models.SelectorKind { return models.SelectorFirewall }

func (p FirewallProbe) Collect(ctx context.Context, sel models.Selector) (models.Fact, error) {
	runner := p.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	out, err := runner.Run(ctx, "firewall-cmd", "--info-zone="+sel.Name)
	if err != nil {
		// firewall-cmd exits non-zero for unknown zones; that is a valid
		// observation (absent), not a collection failure
		if strings.Contains(out+err.Error(), "INVALID_ZONE") {
			return models.Fact{
				Selector:   sel,
				Value:      "absent",
				ObservedAt: time.Now(),
			}, nil
		}
		return models.Fact{}, err
	}

	return models.Fact{
		Selector:   sel,
		Value:      "present",
		Detail:     parseZoneInfo(out),
		ObservedAt: time.Now(),
	}, nil
}

// parseZoneInfo reads the key: value listing firewall-cmd prints
func parseZoneInfo(out string) map[string]any {
	detail := make(map[string]any)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		if strings.Contains(value, " ") {
			items := strings.Fields(value)
			list := make([]any, len(items))
			for i, item := range items {
				list[i] = item
			}
			detail[key] = list
			continue
		}
		detail[key] = value
	}
	return detail
}
