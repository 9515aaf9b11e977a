package meta

import (
	"fmt"
	"time"

	"github.com/avint/metaloom/internal/kb"
)

// Commit persists an accepted candidate as a new mega-tier record with full
// provenance: derives edges to every source record, references edges to the
// predicted domain's records, and a pending prediction plus verification
// need when the prediction is unresolved. The record write is the primary
// effect; edge creation, need registration, and event emission are isolated
// best-effort side effects that never roll it back.
func (e *Engine) Commit(c *Candidate, v *ValidationResult) (*kb.MetaRecord, error) {
	if v == nil || !v.Passed {
		return nil, fmt.Errorf("refusing to commit unvalidated candidate")
	}

	if e.cycle.CommittedToday() >= e.cfg.DailyCommitCap {
		return nil, Fail(ReasonDailyCapReached,
			"committed", e.cycle.CommittedToday(), "cap", e.cfg.DailyCommitCap)
	}

	now := time.Now().UTC()
	recordID := e.ids.NewID("meta")

	tags := []string{"meta-derivation", "meta-invariant"}
	tags = append(tags, c.SourceDomains...)

	sourceTexts := make([]string, 0, len(c.SourceInvariants))
	for _, inv := range c.SourceInvariants {
		sourceTexts = append(sourceTexts, inv.Text)
	}

	record := &kb.Record{
		ID:         recordID,
		Tier:       kb.TierMega,
		Tags:       tags,
		Content:    c.MetaInvariant,
		Invariants: []string{c.MetaInvariant},
		Confidence: 0.6, // moderate: accepted but unverified
		Metadata: map[string]any{
			"source_invariants": sourceTexts,
			"source_domains":    c.SourceDomains,
			"source_record_ids": c.SourceRecordIDs,
			"distance_score":    c.DistanceScore,
			"prediction":        c.Prediction,
			"predicted_domain":  c.PredictedDomain,
			"reasoning":         c.Reasoning,
		},
		CreatedAt: now,
	}

	if err := e.records.Upsert(record); err != nil {
		return nil, fmt.Errorf("failed to commit meta record: %w", err)
	}

	meta := &kb.MetaRecord{
		RecordID:      recordID,
		SourceDomains: append([]string(nil), c.SourceDomains...),
		CommittedAt:   now,
	}
	if err := e.state.AddMetaRecord(meta); err != nil {
		return nil, fmt.Errorf("failed to track meta record: %w", err)
	}
	if err := e.cycle.IncrementCommitted(); err != nil {
		logf("daily counter update failed: %v", err)
	}

	e.linkSources(recordID, c)
	e.linkPredictionTargets(recordID, c)

	if v.Predictive.Status == StatusUnfalsifiedPending && c.Prediction != "" {
		e.registerPendingPrediction(recordID, c)
	}

	e.emit("meta_invariant_committed", map[string]any{
		"record_id":      recordID,
		"domains":        c.SourceDomains,
		"distance_score": c.DistanceScore,
		"prediction":     c.Prediction != "",
	})

	logf("committed meta-invariant %s over %v: %s",
		recordID, c.SourceDomains, truncate(c.MetaInvariant, 80))
	return meta, nil
}

// linkSources creates a derives edge from the meta record to every source
// record. Failures are logged; the commit stands.
func (e *Engine) linkSources(recordID string, c *Candidate) {
	for _, sourceID := range c.SourceRecordIDs {
		edge := &kb.Edge{
			ID:       e.ids.NewID("edge"),
			SourceID: recordID,
			TargetID: sourceID,
			Type:     kb.EdgeDerives,
			Weight:   0.8,
			Provenance: map[string]string{
				"origin": "meta_derivation",
			},
		}
		if err := e.edges.CreateEdge(edge); err != nil {
			logf("derives edge %s->%s failed: %v", recordID, sourceID, err)
		}
	}
}

// linkPredictionTargets creates references edges to records in the predicted
// domain, capped to bound cost.
func (e *Engine) linkPredictionTargets(recordID string, c *Candidate) {
	if c.PredictedDomain == "" {
		return
	}
	targets := e.domainRecordIDs(c.PredictedDomain)
	if len(targets) > e.cfg.ReferenceEdgeCap {
		targets = targets[:e.cfg.ReferenceEdgeCap]
	}
	for _, targetID := range targets {
		edge := &kb.Edge{
			ID:       e.ids.NewID("edge"),
			SourceID: recordID,
			TargetID: targetID,
			Type:     kb.EdgeReferences,
			Weight:   0.5,
			Provenance: map[string]string{
				"role": "prediction_target",
			},
		}
		if err := e.edges.CreateEdge(edge); err != nil {
			logf("references edge %s->%s failed: %v", recordID, targetID, err)
		}
	}
}

// registerPendingPrediction stores the unresolved prediction and raises a
// cross-cutting verification need for critic/researcher/validator agents.
func (e *Engine) registerPendingPrediction(recordID string, c *Candidate) {
	pending := &kb.PendingPrediction{
		ID:              e.ids.NewID("pred"),
		MetaRecordID:    recordID,
		Prediction:      c.Prediction,
		PredictedDomain: c.PredictedDomain,
		Status:          "pending",
		CreatedAt:       time.Now().UTC(),
	}
	if err := e.state.AddPendingPrediction(pending); err != nil {
		logf("pending prediction for %s failed: %v", recordID, err)
		return
	}

	if e.needs == nil {
		return
	}
	need := &kb.Need{
		ID:            e.ids.NewID("need"),
		Type:          "prediction_verification",
		Priority:      "medium",
		MatchingRoles: []string{"critic", "researcher", "validator"},
		Description: fmt.Sprintf("Verify prediction about %s: %s",
			c.PredictedDomain, truncate(c.Prediction, 200)),
		CreatedAt: time.Now().UTC(),
	}
	if err := e.needs.RecordNeed(need); err != nil {
		logf("verification need for %s failed: %v", recordID, err)
	}
}
