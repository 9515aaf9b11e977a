// Package meta implements the meta-derivation engine: it samples maximally
// distant domains from the knowledge base, runs a structured derivation
// session against an LLM collaborator, validates the candidate through three
// gates, and commits accepted meta-invariants with full provenance. It also
// ingests human-authored dream inputs and detects independent convergence
// between the two.
package meta

import (
	"fmt"
	"sync"

	"github.com/avint/metaloom/internal/kb"
)

// Config holds the engine's tuning knobs. Zero values are replaced by
// defaults in Normalize.
type Config struct {
	MinEligibleRecords     int     `yaml:"min_eligible_records"`     // pool precondition (default 100)
	MinDomains             int     `yaml:"min_domains"`              // pool precondition (default 5)
	MinInvariantsPerDomain int     `yaml:"min_invariants_per_domain"` // domain qualification (default 5)
	TargetSetSize          int     `yaml:"target_set_size"`          // distant-set size (default 5)
	HopCap                 int     `yaml:"hop_cap"`                  // BFS depth limit (default 6)
	DailyCommitCap         int     `yaml:"daily_commit_cap"`         // meta commits per UTC day (default 10)
	SessionsPerCycle       int     `yaml:"sessions_per_cycle"`       // derivation sessions per cycle (default 3)
	ReferenceEdgeCap       int     `yaml:"reference_edge_cap"`       // prediction-target edges per commit (default 20)

	SelfConsistencyThreshold float64 `yaml:"self_consistency_threshold"` // default 0.5
	PredictiveThreshold      float64 `yaml:"predictive_threshold"`       // default 0.4
	TrivialityThreshold      float64 `yaml:"triviality_threshold"`       // default 0.4
	ConvergenceThreshold     float64 `yaml:"convergence_threshold"`      // default 0.7

	CycleInterval       Duration `yaml:"cycle_interval"`       // default 6h
	ConvergenceInterval Duration `yaml:"convergence_interval"` // default 24h
	IndependenceGap     Duration `yaml:"independence_gap"`     // default 1h

	MinAgentTicks  int `yaml:"min_agent_ticks"`  // session participant floor (default 50)
	MinAgentCycles int `yaml:"min_agent_cycles"` // session participant floor (default 5)
}

// Normalize fills in defaults for unset fields
func (c *Config) Normalize() {
	if c.MinEligibleRecords == 0 {
		c.MinEligibleRecords = 100
	}
	if c.MinDomains == 0 {
		c.MinDomains = 5
	}
	if c.MinInvariantsPerDomain == 0 {
		c.MinInvariantsPerDomain = 5
	}
	if c.TargetSetSize == 0 {
		c.TargetSetSize = 5
	}
	if c.HopCap == 0 {
		c.HopCap = 6
	}
	if c.DailyCommitCap == 0 {
		c.DailyCommitCap = 10
	}
	if c.SessionsPerCycle == 0 {
		c.SessionsPerCycle = 3
	}
	if c.ReferenceEdgeCap == 0 {
		c.ReferenceEdgeCap = 20
	}
	if c.SelfConsistencyThreshold == 0 {
		c.SelfConsistencyThreshold = 0.5
	}
	if c.PredictiveThreshold == 0 {
		c.PredictiveThreshold = 0.4
	}
	if c.TrivialityThreshold == 0 {
		c.TrivialityThreshold = 0.4
	}
	if c.ConvergenceThreshold == 0 {
		c.ConvergenceThreshold = 0.7
	}
	if c.CycleInterval == 0 {
		c.CycleInterval = Hours(6)
	}
	if c.ConvergenceInterval == 0 {
		c.ConvergenceInterval = Hours(24)
	}
	if c.IndependenceGap == 0 {
		c.IndependenceGap = Hours(1)
	}
	if c.MinAgentTicks == 0 {
		c.MinAgentTicks = 50
	}
	if c.MinAgentCycles == 0 {
		c.MinAgentCycles = 5
	}
}

// Collaborators are the external services the engine writes through. Records,
// Edges, IDs, and State are required; the rest degrade gracefully when nil
// (no events, no agent crediting, no needs, no derivation).
type Collaborators struct {
	Records kb.KnowledgeStore
	Edges   kb.EdgeStore
	IDs     kb.IDGen
	State   kb.MetaState
	Needs   kb.NeedQueue
	Events  kb.EventBus
	Clock   kb.AgentClock
	Deriver kb.Deriver
}

// Engine owns the meta-derivation pipeline state. All mutation paths take the
// engine mutex; the cycle orchestrator additionally enforces single-flight.
type Engine struct {
	cfg Config

	records kb.KnowledgeStore
	edges   kb.EdgeStore
	ids     kb.IDGen
	state   kb.MetaState
	needs   kb.NeedQueue
	events  kb.EventBus
	clock   kb.AgentClock
	deriver kb.Deriver

	cycle *CycleState

	mu              sync.Mutex
	cycleInProgress bool
	validatedCount  int
	rejectedCount   int
}

// NewEngine wires an engine from its collaborators. The cycle state store is
// created under statePath and loaded immediately.
func NewEngine(cfg Config, c Collaborators, statePath string) (*Engine, error) {
	if c.Records == nil || c.Edges == nil || c.IDs == nil || c.State == nil {
		return nil, fmt.Errorf("records, edges, ids, and state collaborators are required")
	}
	cfg.Normalize()

	cycle := NewCycleState(statePath)
	if err := cycle.Load(); err != nil {
		return nil, fmt.Errorf("failed to load cycle state: %w", err)
	}

	return &Engine{
		cfg:     cfg,
		records: c.Records,
		edges:   c.Edges,
		ids:     c.IDs,
		state:   c.State,
		needs:   c.Needs,
		events:  c.Events,
		clock:   c.Clock,
		deriver: c.Deriver,
		cycle:   cycle,
	}, nil
}

// Config returns the engine's normalized configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// GateCounters returns the running validated/rejected candidate counts
func (e *Engine) GateCounters() (validated, rejected int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.validatedCount, e.rejectedCount
}

// emit sends a best-effort observability event. Emission failure is logged
// at the call site via the returned error being discarded here on purpose:
// it must never block or roll back the operation that produced it.
func (e *Engine) emit(name string, payload map[string]any) {
	if e.events == nil {
		return
	}
	if err := e.events.Emit(name, payload); err != nil {
		logf("event %s dropped: %v", name, err)
	}
}
