package dag

import (
	"fmt"
	"sort"
)

// Tiers computes the topological layering of the graph: tier 0 holds nodes
// with no dependencies, and every node's dependencies land in a strictly
// earlier tier. Nodes within one tier share no edges and may be published
// together. Node order inside a tier is sorted for deterministic plans.
//
// If nodes remain when no further tier can be extracted, the graph contains
// a cycle and an error wrapping ErrCycle is returned.
func (g *Graph) Tiers() ([][]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	placed := make(map[string]bool, len(g.nodes))
	var tiers [][]string

	for len(placed) < len(g.nodes) {
		var tier []string
		for id, n := range g.nodes {
			if placed[id] {
				continue
			}
			ready := true
			for depID := range n.deps {
				if !placed[depID] {
					ready = false
					break
				}
			}
			if ready {
				tier = append(tier, id)
			}
		}

		if len(tier) == 0 {
			remaining := make([]string, 0, len(g.nodes)-len(placed))
			for id := range g.nodes {
				if !placed[id] {
					remaining = append(remaining, id)
				}
			}
			sort.Strings(remaining)
			return nil, fmt.Errorf("%w among remaining nodes %v", ErrCycle, remaining)
		}

		sort.Strings(tier)
		for _, id := range tier {
			placed[id] = true
		}
		tiers = append(tiers, tier)
	}

	return tiers, nil
}
