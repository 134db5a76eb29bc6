// Package inventory loads the set of target hosts. The core only needs
// an iterable of host identifiers; grouping and reachability live in
// whatever produced the file.
package inventory

import (
	"fmt"
	"os"

	"github.com/driftd/driftd/internal/models"
	"gopkg.in/yaml.v3"
)

// Load reads an inventory YAML file
func Load(path string) ([]models.Host, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	return Parse(data)
}

// Parse validates an inventory document
func Parse(data []byte) ([]models.Host, error) {
	var doc models.InventoryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse inventory: %w", err)
	}

	if len(doc.Hosts) == 0 {
		return nil, fmt.Errorf("inventory contains no hosts")
	}

	seen := make(map[string]bool, len(doc.Hosts))
	for i, h := range doc.Hosts {
		if h.ID == "" {
			return nil, fmt.Errorf("inventory host at index %d has no id", i)
		}
		if seen[h.ID] {
			return nil, fmt.Errorf("duplicate host id %q in inventory", h.ID)
		}
		seen[h.ID] = true
	}

	return doc.Hosts, nil
}
