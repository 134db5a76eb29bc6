package models

import "time"

// Fact is one observation of a resource on a host. Facts are collected
// fresh each cycle and discarded after diffing; they are never a source
// of truth.
type Fact struct {
	Selector    Selector       `json:"selector"`
	Value       string         `json:"value,omitempty"`
	Detail      map[string]any `json:"detail,omitempty"` // structured state (firewall zones)
	Unavailable bool           `json:"unavailable,omitempty"`
	Error       string         `json:"error,omitempty"`
	ObservedAt  time.Time      `json:"observed_at"`
}

// UnavailableFact marks a failed collection for a selector
func UnavailableFact(sel Selector, err error) Fact {
	f := Fact{
		Selector:    sel,
		Unavailable: true,
		ObservedAt:  time.Now(),
	}
	if err != nil {
		f.Error = err.Error()
	}
	return f
}
