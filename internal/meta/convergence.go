package meta

import (
	"strings"
	"time"

	"github.com/avint/metaloom/internal/kb"
	"github.com/avint/metaloom/internal/textsim"
)

// RunConvergenceCheck matches every dream record against every committed
// meta record. A convergence requires high token-Jaccard similarity over the
// combined content/invariant text, at least the configured independence gap
// between the two records' creation times, and no direct derivation link
// between them. Detection is idempotent: the (dream, meta) pair is recorded
// at most once, so reruns never duplicate.
func (e *Engine) RunConvergenceCheck() ([]*kb.Convergence, error) {
	dreams, err := e.state.DreamRecords()
	if err != nil {
		return nil, err
	}
	metas, err := e.state.MetaRecords()
	if err != nil {
		return nil, err
	}

	var found []*kb.Convergence
	for _, dream := range dreams {
		dreamRecord, err := e.records.Record(dream.RecordID)
		if err != nil {
			debugf("dream record %s unavailable: %v", dream.RecordID, err)
			continue
		}
		dreamText := combinedText(dreamRecord)

		for _, meta := range metas {
			if e.derivationLinked(meta.RecordID, dream.RecordID) {
				continue
			}

			metaRecord, err := e.records.Record(meta.RecordID)
			if err != nil {
				continue
			}

			gap := metaRecord.CreatedAt.Sub(dreamRecord.CreatedAt)
			if gap < 0 {
				gap = -gap
			}
			if gap < e.cfg.IndependenceGap.Std() {
				continue // too close in time to count as independent
			}

			sim := textsim.Jaccard(dreamText, combinedText(metaRecord))
			if sim < e.cfg.ConvergenceThreshold {
				continue
			}

			conv := &kb.Convergence{
				ID:            e.ids.NewID("conv"),
				DreamRecordID: dream.RecordID,
				MetaRecordID:  meta.RecordID,
				Similarity:    sim,
				DreamAt:       dreamRecord.CreatedAt,
				MetaAt:        metaRecord.CreatedAt,
				DiscoveredAt:  time.Now().UTC(),
			}
			inserted, err := e.state.AddConvergence(conv)
			if err != nil {
				logf("convergence %s/%s failed: %v", dream.RecordID, meta.RecordID, err)
				continue
			}
			if !inserted {
				continue // pair already recorded
			}

			e.commitConvergenceRecord(conv, dreamRecord, metaRecord)
			found = append(found, conv)

			logf("convergence: dream %s and meta %s agree (similarity %.2f)",
				dream.RecordID, meta.RecordID, sim)
		}

		if !dream.ConvergenceChecked {
			if err := e.state.MarkDreamChecked(dream.RecordID); err != nil {
				debugf("mark dream checked %s: %v", dream.RecordID, err)
			}
		}
	}

	if err := e.cycle.MarkConvergence(time.Now().UTC()); err != nil {
		logf("convergence timestamp update failed: %v", err)
	}
	return found, nil
}

// commitConvergenceRecord creates the hyper-tier convergence record joining
// both sources, with derives edges back to each constituent. Best-effort:
// the Convergence row is already persisted.
func (e *Engine) commitConvergenceRecord(conv *kb.Convergence, dream, meta *kb.Record) {
	recordID := e.ids.NewID("hyper")

	var statements []string
	statements = append(statements, dream.Claims...)
	statements = append(statements, dream.Invariants...)
	statements = append(statements, meta.Invariants...)

	record := &kb.Record{
		ID:         recordID,
		Tier:       kb.TierHyper,
		Tags:       []string{"convergence", "meta-invariant"},
		Content:    meta.Content,
		Invariants: statements,
		Confidence: 0.9, // independently arrived at twice
		Metadata: map[string]any{
			"dream_record_id": conv.DreamRecordID,
			"meta_record_id":  conv.MetaRecordID,
			"similarity":      conv.Similarity,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := e.records.Upsert(record); err != nil {
		logf("convergence record for %s failed: %v", conv.ID, err)
		return
	}

	for _, targetID := range []string{conv.DreamRecordID, conv.MetaRecordID} {
		edge := &kb.Edge{
			ID:       e.ids.NewID("edge"),
			SourceID: recordID,
			TargetID: targetID,
			Type:     kb.EdgeDerives,
			Weight:   0.8,
			Provenance: map[string]string{
				"origin": "convergence",
			},
		}
		if err := e.edges.CreateEdge(edge); err != nil {
			logf("convergence edge %s->%s failed: %v", recordID, targetID, err)
		}
	}

	e.emit("convergence_detected", map[string]any{
		"record_id":  recordID,
		"dream_id":   conv.DreamRecordID,
		"meta_id":    conv.MetaRecordID,
		"similarity": conv.Similarity,
	})
}

// derivationLinked reports whether the meta record carries a direct derives
// edge to the dream record - such pairs are provenance, not convergence.
func (e *Engine) derivationLinked(metaID, dreamID string) bool {
	edges, err := e.edges.Outgoing(metaID)
	if err != nil {
		return false
	}
	for _, edge := range edges {
		if edge.Type == kb.EdgeDerives && edge.TargetID == dreamID {
			return true
		}
	}
	return false
}

// combinedText joins a record's content, invariants, and claims for
// similarity comparison
func combinedText(r *kb.Record) string {
	parts := []string{r.Content}
	parts = append(parts, r.Invariants...)
	parts = append(parts, r.Claims...)
	return strings.Join(parts, " ")
}
