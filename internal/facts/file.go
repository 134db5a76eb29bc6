package facts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/driftd/driftd/internal/models"
)

// maxFileSize caps how much config file content a probe reads
const maxFileSize = 1 << 20

// FileProbe reads config file contents. Root rebases absolute selector
// paths, which keeps tests and chroot-style setups off the live system.
type FileProbe struct {
	Root string
}

func (FileProbe) Kind() models.SelectorKind { return models.SelectorFile }

func (p FileProbe) Collect(ctx context.Context, sel models.Selector) (models.Fact, error) {
	path := sel.Name
	if p.Root != "" {
		path = filepath.Join(p.Root, sel.Name)
	}

	info, err := os.Stat(path)
	if err != nil {
		return models.Fact{}, fmt.Errorf("failed to stat %s: %w", sel.Name, err)
	}
	if info.Size() > maxFileSize {
		return models.Fact{}, fmt.Errorf("%s exceeds %d bytes", sel.Name, maxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.Fact{}, fmt.Errorf("failed to read %s: %w", sel.Name, err)
	}

	return models.Fact{
		Selector:   sel,
		Value:      string(data),
		ObservedAt: time.Now(),
	}, nil
}
