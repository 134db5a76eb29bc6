package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/driftd/driftd/internal/facts"
	"github.com/driftd/driftd/internal/models"
)

// Applier is the configuration-management layer boundary: apply this
// desired value to this selector, report success/failure and whether
// anything actually changed. The engine never mutates host state itself.
type Applier interface {
	Apply(ctx context.Context, host string, sel models.Selector, value string) (changed bool, err error)
}

// CommandApplier drives host-level mutation primitives through external
// commands, mirroring how the probes observe them.
type CommandApplier struct {
	Runner   facts.CommandRunner
	FileRoot string // rebases file paths, same convention as facts.FileProbe
}

func (a CommandApplier) runner() facts.CommandRunner {
	if a.Runner != nil {
		return a.Runner
	}
	return facts.ExecRunner{}
}

func (a CommandApplier) Apply(ctx context.Context, host string, sel models.Selector, value string) (bool, error) {
	switch sel.Kind {
	case models.SelectorFile:
		return a.applyFile(sel.Name, value)
	case models.SelectorSysctl:
		_, err := a.runner().Run(ctx, "sysctl", "-w", sel.Name+"="+value)
		return err == nil, err
	case models.SelectorService:
		return a.applyService(ctx, sel.Name, value)
	case models.SelectorFirewall:
		return a.applyFirewall(ctx, sel.Name, value)
	default:
		return false, fmt.Errorf("no applier for selector kind %q", sel.Kind)
	}
}

func (a CommandApplier) applyFile(name, content string) (bool, error) {
	path := name
	if a.FileRoot != "" {
		path = filepath.Join(a.FileRoot, name)
	}

	// skip the write when content already matches; repeated application
	// beyond the first must have no additional effect
	if current, err := os.ReadFile(path); err == nil && string(current) == content {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", name, err)
	}
	return true, nil
}

func (a CommandApplier) applyService(ctx context.Context, name, state string) (bool, error) {
	var verb string
	switch state {
	case "active":
		verb = "start"
	case "inactive":
		verb = "stop"
	default:
		return false, fmt.Errorf("cannot drive service %s to state %q", name, state)
	}
	_, err := a.runner().Run(ctx, "systemctl", verb, name)
	return err == nil, err
}

func (a CommandApplier) applyFirewall(ctx context.Context, zone, state string) (bool, error) {
	var args []string
	switch state {
	case "present":
		args = []string{"--permanent", "--new-zone=" + zone}
	case "absent":
		args = []string{"--permanent", "--delete-zone=" + zone}
	default:
		return false, fmt.Errorf("cannot drive firewall zone %s to state %q", zone, state)
	}
	if _, err := a.runner().Run(ctx, "firewall-cmd", args...); err != nil {
		return false, err
	}
	if _, err := a.runner().Run(ctx, "firewall-cmd", "--reload"); err != nil {
		return false, fmt.Errorf("zone %s updated but reload failed: %w", zone, err)
	}
	return true, nil
}
