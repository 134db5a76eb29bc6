// Package facts gathers current system state for the resource selectors a
// policy requires. Probes are read-only and side-effect-free; a failing
// probe degrades its rule, never the cycle.
package facts

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/driftd/driftd/internal/models"
)

// Probe collects the current fact for one selector kind
type Probe interface {
	Kind() models.SelectorKind
	Collect(ctx context.Context, sel models.Selector) (models.Fact, error)
}

// CommandRunner abstracts external command invocation so probes can be
// exercised against canned output in tests
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands on the local host
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return trimmed, fmt.Errorf("%s exited %d: %s", name, exitErr.ExitCode(), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return trimmed, err
	}
	return trimmed, nil
}
