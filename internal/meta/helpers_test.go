package meta

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/avint/metaloom/internal/kb"
)

// --- In-memory collaborators ---

type memRecords struct {
	records map[string]*kb.Record
	order   []string
}

func newMemRecords() *memRecords {
	return &memRecords{records: make(map[string]*kb.Record)}
}

func (m *memRecords) Records() ([]*kb.Record, error) {
	out := make([]*kb.Record, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out, nil
}

func (m *memRecords) Record(id string) (*kb.Record, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s not found", id)
	}
	return r, nil
}

func (m *memRecords) Upsert(r *kb.Record) error {
	if _, ok := m.records[r.ID]; !ok {
		m.order = append(m.order, r.ID)
	}
	m.records[r.ID] = r
	return nil
}

type memEdges struct {
	edges []*kb.Edge
	keys  map[string]bool
}

func newMemEdges() *memEdges {
	return &memEdges{keys: make(map[string]bool)}
}

func (m *memEdges) CreateEdge(e *kb.Edge) error {
	key := e.SourceID + "|" + e.TargetID + "|" + string(e.Type)
	if m.keys[key] {
		return nil
	}
	m.keys[key] = true
	m.edges = append(m.edges, e)
	return nil
}

func (m *memEdges) Outgoing(sourceID string) ([]*kb.Edge, error) {
	var out []*kb.Edge
	for _, e := range m.edges {
		if e.SourceID == sourceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEdges) byType(t kb.EdgeType) []*kb.Edge {
	var out []*kb.Edge
	for _, e := range m.edges {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type memState struct {
	metas   []*kb.MetaRecord
	dreams  []*kb.DreamRecord
	convs   []*kb.Convergence
	pending []*kb.PendingPrediction
	pairs   map[string]bool
	checked map[string]bool
}

func newMemState() *memState {
	return &memState{pairs: make(map[string]bool), checked: make(map[string]bool)}
}

func (m *memState) AddMetaRecord(r *kb.MetaRecord) error {
	m.metas = append(m.metas, r)
	return nil
}

func (m *memState) MetaRecords() ([]*kb.MetaRecord, error) { return m.metas, nil }

func (m *memState) AddDreamRecord(d *kb.DreamRecord) error {
	m.dreams = append(m.dreams, d)
	return nil
}

func (m *memState) DreamRecords() ([]*kb.DreamRecord, error) { return m.dreams, nil }

func (m *memState) MarkDreamChecked(recordID string) error {
	m.checked[recordID] = true
	return nil
}

func (m *memState) AddConvergence(c *kb.Convergence) (bool, error) {
	key := c.DreamRecordID + "|" + c.MetaRecordID
	if m.pairs[key] {
		return false, nil
	}
	m.pairs[key] = true
	m.convs = append(m.convs, c)
	return true, nil
}

func (m *memState) Convergences() ([]*kb.Convergence, error) { return m.convs, nil }

func (m *memState) AddPendingPrediction(p *kb.PendingPrediction) error {
	m.pending = append(m.pending, p)
	return nil
}

func (m *memState) PendingPredictions() ([]*kb.PendingPrediction, error) {
	return m.pending, nil
}

type seqIDs struct{ n int }

func (s *seqIDs) NewID(prefix string) string {
	s.n++
	return fmt.Sprintf("%s-%d", prefix, s.n)
}

type memNeeds struct {
	needs []*kb.Need
}

func (m *memNeeds) RecordNeed(n *kb.Need) error {
	m.needs = append(m.needs, n)
	return nil
}

type stubDeriver struct {
	response string
	err      error
	calls    int
}

func (d *stubDeriver) Derive(ctx context.Context, system, content string) (string, error) {
	d.calls++
	return d.response, d.err
}

type memClock struct {
	ages   map[string]*kb.AgentAge
	epochs []string
	ticks  []kb.TickOpts
}

func newMemClock() *memClock {
	return &memClock{ages: make(map[string]*kb.AgentAge)}
}

func (c *memClock) ActiveAgents() ([]string, error) {
	var ids []string
	for id := range c.ages {
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *memClock) AgentAge(agentID string) (*kb.AgentAge, error) {
	age, ok := c.ages[agentID]
	if !ok {
		return nil, fmt.Errorf("unknown agent %s", agentID)
	}
	return age, nil
}

func (c *memClock) RecordEpoch(agentID, kind string) error {
	c.epochs = append(c.epochs, agentID)
	return nil
}

func (c *memClock) RecordTick(agentID string, opts kb.TickOpts) error {
	c.ticks = append(c.ticks, opts)
	return nil
}

// --- Harness ---

type testEnv struct {
	engine  *Engine
	records *memRecords
	edges   *memEdges
	state   *memState
	needs   *memNeeds
	clock   *memClock
	deriver *stubDeriver
}

// smallConfig keeps preconditions low enough for handful-sized fixtures
func smallConfig() Config {
	return Config{
		MinEligibleRecords:     3,
		MinDomains:             2,
		MinInvariantsPerDomain: 1,
		TargetSetSize:          3,
	}
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	env := &testEnv{
		records: newMemRecords(),
		edges:   newMemEdges(),
		state:   newMemState(),
		needs:   &memNeeds{},
		clock:   newMemClock(),
		deriver: &stubDeriver{},
	}
	engine, err := NewEngine(cfg, Collaborators{
		Records: env.records,
		Edges:   env.edges,
		IDs:     &seqIDs{},
		State:   env.state,
		Needs:   env.needs,
		Clock:   env.clock,
		Deriver: env.deriver,
	}, t.TempDir())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	env.engine = engine
	return env
}

// addRecord inserts a standard-tier record with the given domain tag and
// invariants
func (env *testEnv) addRecord(t *testing.T, id, domain string, invariants ...string) *kb.Record {
	t.Helper()
	r := &kb.Record{
		ID:         id,
		Tier:       kb.TierStandard,
		Tags:       []string{"domain:" + domain},
		Content:    fmt.Sprintf("%s record %s", domain, id),
		Invariants: invariants,
		Confidence: 0.7,
		CreatedAt:  time.Now().UTC(),
	}
	if err := env.records.Upsert(r); err != nil {
		t.Fatalf("upsert %s: %v", id, err)
	}
	return r
}

// link creates a derives edge between two records
func (env *testEnv) link(t *testing.T, from, to string) {
	t.Helper()
	err := env.edges.CreateEdge(&kb.Edge{
		ID:       from + "->" + to,
		SourceID: from,
		TargetID: to,
		Type:     kb.EdgeDerives,
		Weight:   0.8,
	})
	if err != nil {
		t.Fatalf("edge %s->%s: %v", from, to, err)
	}
}

func failureReason(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	reason := FailureReason(err)
	if reason == "" {
		t.Fatalf("expected a Failure, got %T: %v", err, err)
	}
	return reason
}
