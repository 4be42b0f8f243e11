// Package agents holds the closed set of technical signal agents and the
// registry that selects them from configuration.
package agents

import (
	"fmt"
	"math"

	domsvc "HackCap/internal/domain/service"
	"HackCap/pkg/config"
)

// Registry is an ordered, immutable set of agents. Order is the combine order.
type Registry struct {
	agents []domsvc.Agent
	index  map[string]int
}

// NewRegistry builds the enabled agents in their canonical order.
func NewRegistry(cfg config.AgentsConfig) (*Registry, error) {
	var list []domsvc.Agent
	if cfg.SMA.Enabled {
		list = append(list, NewSMACrossover(cfg.SMA))
	}
	if cfg.RSI.Enabled {
		list = append(list, NewRSIMomentum(cfg.RSI))
	}
	if cfg.MACD.Enabled {
		list = append(list, NewMACDHistogram(cfg.MACD))
	}
	return NewRegistryOf(list...)
}

// NewRegistryOf wraps an explicit agent list. Ids must be unique.
func NewRegistryOf(list ...domsvc.Agent) (*Registry, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("agent registry: no agents")
	}
	r := &Registry{agents: list, index: make(map[string]int, len(list))}
	for i, a := range list {
		if _, dup := r.index[a.ID()]; dup {
			return nil, fmt.Errorf("agent registry: duplicate id %q", a.ID())
		}
		r.index[a.ID()] = i
	}
	return r, nil
}

// Agents returns the agents in combine order. Callers must not modify the slice.
func (r *Registry) Agents() []domsvc.Agent { return r.agents }

// IDs returns agent ids in combine order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.agents))
	for i, a := range r.agents {
		ids[i] = a.ID()
	}
	return ids
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.index[id]
	return ok
}

// Lookback is the longest window any agent needs.
func (r *Registry) Lookback() int {
	n := 0
	for _, a := range r.agents {
		n = max(n, a.Lookback())
	}
	return n
}

func clip01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// zeroTolerance treats price-scaled rounding noise as zero when detecting sign changes.
func zeroTolerance(price float64) float64 {
	return 1e-9 * math.Max(1, math.Abs(price))
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
