package meta

import (
	"github.com/avint/metaloom/internal/kb"
	"github.com/avint/metaloom/internal/textsim"
)

// Candidate is a parsed derivation response plus the provenance of the
// session that produced it.
type Candidate struct {
	MetaInvariant    string      `json:"meta_invariant"`
	Prediction       string      `json:"prediction,omitempty"`
	PredictedDomain  string      `json:"predicted_domain,omitempty"`
	Reasoning        string      `json:"reasoning,omitempty"`
	SourceInvariants []Invariant `json:"source_invariants"`
	SourceRecordIDs  []string    `json:"source_record_ids"`
	SourceDomains    []string    `json:"source_domains"`
	DistanceScore    float64     `json:"distance_score"`
}

// BuildCandidate combines a parsed response with its session's provenance
func (e *Engine) BuildCandidate(session *Session, parsed *Parsed) *Candidate {
	c := &Candidate{
		MetaInvariant:   parsed.MetaInvariant,
		Prediction:      parsed.Prediction,
		PredictedDomain: parsed.PredictedDomain,
		Reasoning:       parsed.Reasoning,
		SourceRecordIDs: append([]string(nil), session.SourceRecordIDs...),
		SourceDomains:   append([]string(nil), session.SelectedDomains...),
	}
	if session.set != nil {
		c.SourceInvariants = append([]Invariant(nil), session.set.Representatives...)
		c.DistanceScore = session.set.Score(e.cfg.HopCap)
	}
	return c
}

// Predictive verification statuses
const (
	StatusNoPrediction       = "no_prediction"
	StatusUnfalsifiedPending = "unfalsified_pending"
	StatusConsistent         = "consistent"
	StatusContradicted       = "contradicted"
)

// GateResult is one gate's verdict. Gates always return a verdict; they
// never error.
type GateResult struct {
	Passed        bool    `json:"passed"`
	Reason        string  `json:"reason,omitempty"`
	Status        string  `json:"status,omitempty"`
	MaxSimilarity float64 `json:"max_similarity,omitempty"`
}

// ValidationResult aggregates the three gates; overall acceptance requires
// all three to pass.
type ValidationResult struct {
	Passed          bool       `json:"passed"`
	SelfConsistency GateResult `json:"self_consistency"`
	Predictive      GateResult `json:"predictive"`
	NonTriviality   GateResult `json:"non_triviality"`
}

// Validate runs the candidate through the three-gate pipeline and updates
// the validated/rejected counters.
func (e *Engine) Validate(c *Candidate) *ValidationResult {
	result := &ValidationResult{
		SelfConsistency: e.gateSelfConsistency(c),
		Predictive:      e.gatePredictive(c),
		NonTriviality:   e.gateNonTriviality(c),
	}
	result.Passed = result.SelfConsistency.Passed &&
		result.Predictive.Passed &&
		result.NonTriviality.Passed

	e.mu.Lock()
	if result.Passed {
		e.validatedCount++
	} else {
		e.rejectedCount++
	}
	e.mu.Unlock()

	if !result.Passed {
		logf("candidate rejected (%s/%s/%s): %s",
			gateTag(result.SelfConsistency), gateTag(result.Predictive),
			gateTag(result.NonTriviality), truncate(c.MetaInvariant, 80))
	}
	return result
}

func gateTag(g GateResult) string {
	if g.Passed {
		return "pass"
	}
	return g.Reason
}

// gateSelfConsistency rejects a meta-invariant that likely contradicts one of
// the very invariants it was derived from: high token overlap with a source
// plus a negation mismatch between the two texts.
func (e *Engine) gateSelfConsistency(c *Candidate) GateResult {
	if c.MetaInvariant == "" {
		return GateResult{Passed: false, Reason: "no_meta_invariant"}
	}
	for _, src := range c.SourceInvariants {
		sim := textsim.Jaccard(c.MetaInvariant, src.Text)
		if sim > e.cfg.SelfConsistencyThreshold && textsim.NegationMismatch(c.MetaInvariant, src.Text) {
			return GateResult{
				Passed:        false,
				Reason:        "contradicts_source",
				MaxSimilarity: sim,
			}
		}
	}
	return GateResult{Passed: true, Reason: "consistent"}
}

// gatePredictive checks the candidate's prediction against knowledge already
// held for the predicted domain. A candidate without a prediction auto-passes
// (no_prediction); a prediction about an empty domain passes as
// unfalsified_pending - there is nothing to contradict yet.
func (e *Engine) gatePredictive(c *Candidate) GateResult {
	if c.Prediction == "" || c.PredictedDomain == "" {
		return GateResult{Passed: true, Status: StatusNoPrediction}
	}

	if len(e.domainRecordIDs(c.PredictedDomain)) == 0 {
		return GateResult{Passed: true, Status: StatusUnfalsifiedPending}
	}
	invariants := e.domainInvariants(c.PredictedDomain)

	maxSim := 0.0
	for _, text := range invariants {
		sim := textsim.Jaccard(c.Prediction, text)
		if sim > maxSim {
			maxSim = sim
		}
		if sim > e.cfg.PredictiveThreshold && textsim.NegationMismatch(c.Prediction, text) {
			return GateResult{
				Passed:        false,
				Reason:        "contradicted",
				Status:        StatusContradicted,
				MaxSimilarity: sim,
			}
		}
	}
	return GateResult{Passed: true, Status: StatusConsistent, MaxSimilarity: maxSim}
}

// gateNonTriviality rejects candidates that merely restate a source
// invariant: token-Jaccard at or above the threshold with ANY source fails.
func (e *Engine) gateNonTriviality(c *Candidate) GateResult {
	if c.MetaInvariant == "" {
		return GateResult{Passed: false, Reason: "no_meta_invariant"}
	}
	maxSim := 0.0
	for _, src := range c.SourceInvariants {
		if sim := textsim.Jaccard(c.MetaInvariant, src.Text); sim > maxSim {
			maxSim = sim
		}
	}
	if maxSim >= e.cfg.TrivialityThreshold {
		return GateResult{
			Passed:        false,
			Reason:        "trivial_restatement",
			MaxSimilarity: maxSim,
		}
	}
	return GateResult{Passed: true, MaxSimilarity: maxSim}
}

// domainInvariants collects the invariants of all non-shadow records in a
// domain (used by predictive verification and prediction-target linking)
func (e *Engine) domainInvariants(domain string) []string {
	records, err := e.records.Records()
	if err != nil {
		logf("domain scan for %s failed: %v", domain, err)
		return nil
	}
	var invariants []string
	for _, r := range records {
		if r.Tier == kb.TierShadow || kb.Domain(r) != domain {
			continue
		}
		invariants = append(invariants, r.Invariants...)
	}
	return invariants
}

// domainRecordIDs lists non-shadow record ids in a domain
func (e *Engine) domainRecordIDs(domain string) []string {
	records, err := e.records.Records()
	if err != nil {
		return nil
	}
	var ids []string
	for _, r := range records {
		if r.Tier == kb.TierShadow || kb.Domain(r) != domain {
			continue
		}
		ids = append(ids, r.ID)
	}
	return ids
}
