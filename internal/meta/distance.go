package meta

import (
	"math"
)

// DistanceMatrix holds pairwise domain distances. Keys are order-independent;
// only the upper triangle is stored.
type DistanceMatrix struct {
	d map[[2]string]float64
}

func matrixKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// Get returns the distance between two domains. Lookups accept either key
// order; a domain is at distance 0 from itself.
func (m *DistanceMatrix) Get(a, b string) float64 {
	if a == b {
		return 0
	}
	if d, ok := m.d[matrixKey(a, b)]; ok {
		return d
	}
	return math.Inf(1)
}

func (m *DistanceMatrix) set(a, b string, d float64) {
	m.d[matrixKey(a, b)] = d
}

// BuildDistanceMatrix computes the pairwise domain distance matrix for the
// pool's qualifying domains. Only the upper triangle is computed; the matrix
// is symmetric by construction.
func (e *Engine) BuildDistanceMatrix(pool *Pool) *DistanceMatrix {
	m := &DistanceMatrix{d: make(map[[2]string]float64)}
	for i := 0; i < len(pool.Domains); i++ {
		for j := i + 1; j < len(pool.Domains); j++ {
			a, b := pool.Domains[i], pool.Domains[j]
			m.set(a, b, e.domainDistance(pool.RecordIDs[a], pool.RecordIDs[b]))
		}
	}
	return m
}

// domainDistance measures the minimum hop count from any record in set A to
// any record in set B, following outgoing edges only, capped at HopCap hops.
// Returns 0 when the sets share a record and +Inf when B is unreachable
// within the cap. Seeding the BFS with all of A at depth 0 yields the
// minimum over all start records in a single traversal.
func (e *Engine) domainDistance(aIDs, bIDs []string) float64 {
	target := make(map[string]bool, len(bIDs))
	for _, id := range bIDs {
		target[id] = true
	}

	type queued struct {
		id    string
		depth int
	}

	visited := make(map[string]bool, len(aIDs))
	var queue []queued
	for _, id := range aIDs {
		if target[id] {
			return 0 // shared record
		}
		visited[id] = true
		queue = append(queue, queued{id: id, depth: 0})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth >= e.cfg.HopCap {
			continue
		}

		edges, err := e.edges.Outgoing(cur.id)
		if err != nil {
			debugf("outgoing edges for %s: %v", cur.id, err)
			continue
		}
		for _, edge := range edges {
			next := edge.TargetID
			if visited[next] {
				continue
			}
			if target[next] {
				return float64(cur.depth + 1)
			}
			visited[next] = true
			queue = append(queue, queued{id: next, depth: cur.depth + 1})
		}
	}

	return math.Inf(1)
}
