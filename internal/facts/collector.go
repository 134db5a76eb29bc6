package facts

import (
	"context"
	"fmt"

	"github.com/driftd/driftd/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultProbeConcurrency bounds fan-out per host
const DefaultProbeConcurrency = 16

// Collector resolves a policy's selectors to fresh facts. Independent
// selectors are probed concurrently within the fan-out limit; a probe
// failure yields an unavailable fact and never aborts collection.
type Collector struct {
	probes map[models.SelectorKind]Probe
	limit  int
}

// NewCollector builds a collector with the default probe set
func NewCollector(limit int) *Collector {
	if limit <= 0 {
		limit = DefaultProbeConcurrency
	}
	c := &Collector{
		probes: make(map[models.SelectorKind]Probe),
		limit:  limit,
	}
	c.Register(FileProbe{})
	c.Register(KernelParamProbe{})
	c.Register(ServiceProbe{})
	c.Register(FirewallProbe{})
	return c
}

// Register adds or replaces the probe for a selector kind. New probe
// variants plug in here without touching the reconciler.
func (c *Collector) Register(p Probe) {
	c.probes[p.Kind()] = p
}

// Collect probes every selector and returns facts keyed by selector key.
// The returned map always has one entry per selector.
func (c *Collector) Collect(ctx context.Context, selectors []models.Selector) map[string]models.Fact {
	results := make([]models.Fact, len(selectors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)
	for i, sel := range selectors {
		g.Go(func() error {
			probe, ok := c.probes[sel.Kind]
			if !ok {
				results[i] = models.UnavailableFact(sel, fmt.Errorf("no probe for selector kind %q", sel.Kind))
				return nil
			}
			fact, err := probe.Collect(gctx, sel)
			if err != nil {
				results[i] = models.UnavailableFact(sel, err)
				return nil
			}
			results[i] = fact
			return nil
		})
	}
	// goroutines never return errors; collection failures degrade the
	// affected rule only
	_ = g.Wait()

	facts := make(map[string]models.Fact, len(results))
	for _, f := range results {
		facts[f.Selector.Key()] = f
	}
	return facts
}
