package models

// Host is one managed machine. The core treats the inventory as a plain
// iterable of host identifiers; Address is passed through to the applier
// and probes, nothing more.
type Host struct {
	ID      string `yaml:"id" json:"id"`
	Address string `yaml:"address,omitempty" json:"address,omitempty"`
}

// InventoryDoc raw inventory file
type InventoryDoc struct {
	Hosts []Host `yaml:"hosts"`
}
