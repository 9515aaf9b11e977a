package meta

import (
	"testing"
	"time"

	"github.com/avint/metaloom/internal/kb"
)

// seedPair ingests a dream and commits a meta record with the given content
// and creation times, returning their record ids.
func seedPair(t *testing.T, env *testEnv, dreamText, metaText string, dreamAt, metaAt time.Time) (string, string) {
	t.Helper()

	dream, err := env.engine.IngestDream(dreamText, dreamAt)
	if err != nil {
		t.Fatalf("IngestDream: %v", err)
	}

	metaID := "meta-fixture-" + metaAt.Format("150405")
	record := &kb.Record{
		ID:         metaID,
		Tier:       kb.TierMega,
		Tags:       []string{"meta-derivation", "meta-invariant"},
		Content:    metaText,
		Invariants: []string{metaText},
		Confidence: 0.6,
		CreatedAt:  metaAt,
	}
	if err := env.records.Upsert(record); err != nil {
		t.Fatal(err)
	}
	if err := env.state.AddMetaRecord(&kb.MetaRecord{RecordID: metaID, CommittedAt: metaAt}); err != nil {
		t.Fatal(err)
	}
	return dream.RecordID, metaID
}

func TestConvergenceDetected(t *testing.T) {
	env := newTestEnv(t, smallConfig())
	base := time.Date(2025, 2, 10, 3, 0, 0, 0, time.UTC)
	text := "branching networks minimize transport cost across scales"
	dreamID, metaID := seedPair(t, env, text, text, base, base.Add(2*time.Hour))

	found, err := env.engine.RunConvergenceCheck()
	if err != nil {
		t.Fatalf("RunConvergenceCheck: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("convergences = %d, want 1", len(found))
	}

	conv := found[0]
	if conv.DreamRecordID != dreamID || conv.MetaRecordID != metaID {
		t.Errorf("convergence pair = %s/%s", conv.DreamRecordID, conv.MetaRecordID)
	}
	if conv.Similarity < 0.7 {
		t.Errorf("similarity = %v", conv.Similarity)
	}

	// A hyper-tier record joins the pair with derives edges to both
	var hyper *kb.Record
	records, _ := env.records.Records()
	for _, r := range records {
		if r.Tier == kb.TierHyper {
			hyper = r
		}
	}
	if hyper == nil {
		t.Fatal("no hyper-tier convergence record")
	}
	if hyper.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", hyper.Confidence)
	}
	if !hyper.HasTag("convergence") || !hyper.HasTag("meta-invariant") {
		t.Errorf("tags = %v", hyper.Tags)
	}

	edges, _ := env.edges.Outgoing(hyper.ID)
	if len(edges) != 2 {
		t.Fatalf("hyper edges = %d, want 2", len(edges))
	}
	for _, e := range edges {
		if e.Type != kb.EdgeDerives || e.Provenance["origin"] != "convergence" {
			t.Errorf("edge = %+v", e)
		}
	}

	if !env.state.checked[dreamID] {
		t.Error("dream not marked convergence-checked")
	}
}

func TestConvergenceRequiresIndependenceGap(t *testing.T) {
	env := newTestEnv(t, smallConfig())
	base := time.Date(2025, 2, 10, 3, 0, 0, 0, time.UTC)
	text := "branching networks minimize transport cost across scales"
	seedPair(t, env, text, text, base, base.Add(30*time.Minute))

	found, err := env.engine.RunConvergenceCheck()
	if err != nil {
		t.Fatalf("RunConvergenceCheck: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("convergences = %d, want 0 inside the independence gap", len(found))
	}
}

func TestConvergenceRequiresSimilarity(t *testing.T) {
	env := newTestEnv(t, smallConfig())
	base := time.Date(2025, 2, 10, 3, 0, 0, 0, time.UTC)
	seedPair(t, env,
		"branching networks minimize transport cost across scales",
		"market prices aggregate dispersed information efficiently",
		base, base.Add(2*time.Hour))

	found, err := env.engine.RunConvergenceCheck()
	if err != nil {
		t.Fatalf("RunConvergenceCheck: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("convergences = %d, want 0 for dissimilar texts", len(found))
	}
}

func TestConvergenceSkipsDerivationLinkedPairs(t *testing.T) {
	env := newTestEnv(t, smallConfig())
	base := time.Date(2025, 2, 10, 3, 0, 0, 0, time.UTC)
	text := "branching networks minimize transport cost across scales"
	dreamID, metaID := seedPair(t, env, text, text, base, base.Add(2*time.Hour))

	// The meta record was derived from the dream: provenance, not convergence
	env.link(t, metaID, dreamID)

	found, err := env.engine.RunConvergenceCheck()
	if err != nil {
		t.Fatalf("RunConvergenceCheck: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("convergences = %d, want 0 for derivation-linked pair", len(found))
	}
}

func TestConvergenceIdempotent(t *testing.T) {
	env := newTestEnv(t, smallConfig())
	base := time.Date(2025, 2, 10, 3, 0, 0, 0, time.UTC)
	text := "branching networks minimize transport cost across scales"
	seedPair(t, env, text, text, base, base.Add(2*time.Hour))

	first, err := env.engine.RunConvergenceCheck()
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first run found %d", len(first))
	}

	second, err := env.engine.RunConvergenceCheck()
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second run found %d, want 0", len(second))
	}
	if len(env.state.convs) != 1 {
		t.Errorf("stored convergences = %d, want 1", len(env.state.convs))
	}
}
