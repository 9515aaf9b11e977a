package meta

import (
	"math"
	"sort"
	"strings"
)

// DistantSet is an ordered selection of maximally distant domains with one
// representative invariant per domain and the matrix used to pick them.
type DistantSet struct {
	Domains         []string
	Representatives []Invariant // parallel to Domains
	Matrix          *DistanceMatrix
}

// Key returns the order-independent identity of the chosen domain set, used
// to deduplicate sessions within a cycle.
func (s *DistantSet) Key() string {
	sorted := make([]string, len(s.Domains))
	copy(sorted, s.Domains)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

// Score summarizes how distant the set is: the mean pairwise distance, with
// unreachable pairs counted as one hop past the BFS cap.
func (s *DistantSet) Score(hopCap int) float64 {
	if len(s.Domains) < 2 {
		return 0
	}
	var sum float64
	var pairs int
	for i := 0; i < len(s.Domains); i++ {
		for j := i + 1; j < len(s.Domains); j++ {
			d := s.Matrix.Get(s.Domains[i], s.Domains[j])
			if math.IsInf(d, 1) {
				d = float64(hopCap + 1)
			}
			sum += d
			pairs++
		}
	}
	return sum / float64(pairs)
}

// domainPair orders candidate seed pairs by descending distance
type domainPair struct {
	a, b string
	dist float64
}

// SelectDistantSet greedily builds a set of target domains maximizing the
// minimum pairwise distance. The seed is the domain pair of maximum distance;
// seedRank > 0 seeds with the next-most-distant pairs instead, so one cycle
// can run several sessions over distinct sets. Each added domain is the one
// whose minimum distance to the already-selected set is largest; selection
// stops early if no remaining domain keeps the set spread apart.
func (e *Engine) SelectDistantSet(pool *Pool, matrix *DistanceMatrix, seedRank int) *DistantSet {
	if len(pool.Domains) < 2 {
		return nil
	}

	// Rank all pairs by distance (Inf sorts first: maximally distant)
	var pairs []domainPair
	for i := 0; i < len(pool.Domains); i++ {
		for j := i + 1; j < len(pool.Domains); j++ {
			a, b := pool.Domains[i], pool.Domains[j]
			pairs = append(pairs, domainPair{a: a, b: b, dist: matrix.Get(a, b)})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].dist > pairs[j].dist
	})
	if seedRank >= len(pairs) {
		return nil
	}
	seed := pairs[seedRank]

	selected := []string{seed.a, seed.b}
	inSet := map[string]bool{seed.a: true, seed.b: true}

	for len(selected) < e.cfg.TargetSetSize {
		best := ""
		bestMin := 0.0
		for _, candidate := range pool.Domains {
			if inSet[candidate] {
				continue
			}
			minDist := math.Inf(1)
			for _, sel := range selected {
				if d := matrix.Get(candidate, sel); d < minDist {
					minDist = d
				}
			}
			if best == "" || minDist > bestMin {
				best = candidate
				bestMin = minDist
			}
		}
		if best == "" || bestMin <= 0 {
			break // no remaining domain improves the minimum
		}
		selected = append(selected, best)
		inSet[best] = true
	}

	set := &DistantSet{Domains: selected, Matrix: matrix}
	for _, domain := range selected {
		rep, ok := pool.Representative(domain)
		if !ok {
			continue
		}
		set.Representatives = append(set.Representatives, rep)
	}
	if len(set.Representatives) != len(set.Domains) {
		return nil // a qualifying domain always has invariants; guard anyway
	}
	return set
}
