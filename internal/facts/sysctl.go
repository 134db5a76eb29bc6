package facts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/driftd/driftd/internal/models"
)

// KernelParamProbe reads kernel parameters from procfs. Selector names
// use sysctl dot notation (net.ipv4.ip_forward).
type KernelParamProbe struct {
	ProcRoot string // default /proc/sys
}

func (KernelParamProbe) Kind() models.SelectorKind { return models.SelectorSysctl }

func (p KernelParamProbe) Collect(ctx context.Context, sel models.Selector) (models.Fact, error) {
	root := p.ProcRoot
	if root == "" {
		root = "/proc/sys"
	}

	rel := strings.ReplaceAll(sel.Name, ".", "/")
	if strings.Contains(rel, "..") {
		return models.Fact{}, fmt.Errorf("invalid kernel parameter name %q", sel.Name)
	}

	data, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		return models.Fact{}, fmt.Errorf("failed to read kernel parameter %s: %w", sel.Name, err)
	}

	return models.Fact{
		Selector:   sel,
		Value:      strings.TrimSpace(string(data)),
		ObservedAt: time.Now(),
	}, nil
}
