package meta

import (
	"sort"

	"github.com/avint/metaloom/internal/kb"
)

// Invariant is a validated, domain-scoped statement extracted from a record.
// ValidationCount is the number of records in the same domain carrying the
// identical statement.
type Invariant struct {
	Text            string `json:"text"`
	Domain          string `json:"domain"`
	SourceRecordID  string `json:"source_record_id"`
	ValidationCount int    `json:"validation_count"`
}

// Pool groups eligible invariants by domain
type Pool struct {
	ByDomain  map[string][]Invariant // only qualifying domains
	RecordIDs map[string][]string    // domain -> record ids backing it
	Domains   []string               // sorted qualifying domain labels

	EligibleRecords int // records that passed the tier/invariant/domain filters
}

// BuildPool extracts the invariant pool from the knowledge base. Shadow-tier
// records are excluded; a record needs at least one invariant and a
// resolvable domain. Domains qualify with at least MinInvariantsPerDomain
// invariants. Fails with insufficient_dtus or insufficient_domains when the
// base is too thin to derive from.
func (e *Engine) BuildPool() (*Pool, error) {
	records, err := e.records.Records()
	if err != nil {
		return nil, err
	}

	byDomain := make(map[string][]Invariant)
	recordIDs := make(map[string]map[string]bool)
	eligible := 0

	for _, r := range records {
		if r.Tier == kb.TierShadow {
			continue
		}
		if len(r.Invariants) == 0 {
			continue
		}
		domain := kb.Domain(r)
		if domain == "" {
			continue
		}
		eligible++

		for _, text := range r.Invariants {
			if text == "" {
				continue
			}
			byDomain[domain] = append(byDomain[domain], Invariant{
				Text:           text,
				Domain:         domain,
				SourceRecordID: r.ID,
			})
		}
		if recordIDs[domain] == nil {
			recordIDs[domain] = make(map[string]bool)
		}
		recordIDs[domain][r.ID] = true
	}

	if eligible < e.cfg.MinEligibleRecords {
		return nil, Fail(ReasonInsufficientDTUs,
			"eligible", eligible, "required", e.cfg.MinEligibleRecords)
	}

	// Keep only qualifying domains and compute validation counts
	pool := &Pool{
		ByDomain:        make(map[string][]Invariant),
		RecordIDs:       make(map[string][]string),
		EligibleRecords: eligible,
	}
	for domain, invariants := range byDomain {
		if len(invariants) < e.cfg.MinInvariantsPerDomain {
			continue
		}

		counts := make(map[string]int)
		for _, inv := range invariants {
			counts[inv.Text]++
		}
		for i := range invariants {
			invariants[i].ValidationCount = counts[invariants[i].Text]
		}

		pool.ByDomain[domain] = invariants
		ids := make([]string, 0, len(recordIDs[domain]))
		for id := range recordIDs[domain] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		pool.RecordIDs[domain] = ids
		pool.Domains = append(pool.Domains, domain)
	}
	sort.Strings(pool.Domains)

	if len(pool.Domains) < e.cfg.MinDomains {
		return nil, Fail(ReasonInsufficientDomains,
			"domains", len(pool.Domains), "required", e.cfg.MinDomains)
	}

	debugf("pool built: %d eligible records, %d qualifying domains",
		pool.EligibleRecords, len(pool.Domains))
	return pool, nil
}

// Representative returns the domain's invariant with the highest validation
// count (the statement repeated across the most records). Ties fall to the
// earliest occurrence.
func (p *Pool) Representative(domain string) (Invariant, bool) {
	invariants := p.ByDomain[domain]
	if len(invariants) == 0 {
		return Invariant{}, false
	}
	best := invariants[0]
	for _, inv := range invariants[1:] {
		if inv.ValidationCount > best.ValidationCount {
			best = inv
		}
	}
	return best, true
}
