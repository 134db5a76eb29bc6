package facts

import (
	"context"
	"fmt"
	"time"

	"github.com/driftd/driftd/internal/models"
)

// serviceStates recognized from the service manager
var serviceStates = map[string]bool{
	"active":       true,
	"inactive":     true,
	"failed":       true,
	"activating":   true,
	"deactivating": true,
}

// ServiceProbe queries the service manager for unit state
type ServiceProbe struct {
	Runner CommandRunner
}

func (ServiceProbe) Kind() models.SelectorKind { return models.SelectorService }

func (p ServiceProbe) Collect(ctx context.Context, sel models.Selector) (models.Fact, error) {
	runner := p.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	out, err := runner.Run(ctx, "systemctl", "is-active", sel.Name)
	// systemctl exits non-zero for inactive units while still printing
	// the state; a parseable state wins over the exit code
	if !serviceStates[out] {
		if err != nil {
			return models.Fact{}, fmt.Errorf("failed to query service %s: %w", sel.Name, err)
		}
		return models.Fact{}, fmt.Errorf("unrecognized state %q for service %s", out, sel.Name)
	}

	return models.Fact{
		Selector:   sel,
		Value:      out,
		ObservedAt: time.Now(),
	}, nil
}
