package kb

import "context"

// KnowledgeStore provides read/write access to records. Upsert must be
// idempotent under retry.
type KnowledgeStore interface {
	Records() ([]*Record, error)
	Record(id string) (*Record, error)
	Upsert(r *Record) error
}

// EdgeStore provides edge creation and an outgoing-edge adjacency view for
// graph traversal. CreateEdge must be idempotent under retry.
type EdgeStore interface {
	CreateEdge(e *Edge) error
	Outgoing(sourceID string) ([]*Edge, error)
}

// IDGen mints unique record/edge IDs with a type prefix
type IDGen interface {
	NewID(prefix string) string
}

// NeedQueue records cross-cutting verification needs
type NeedQueue interface {
	RecordNeed(n *Need) error
}

// EventBus emits best-effort observability events. Failures are logged by
// callers and never block the operation that emitted them.
type EventBus interface {
	Emit(name string, payload map[string]any) error
}

// AgentClock tracks agent subjective time, used only to pick and credit a
// derivation-session participant.
type AgentClock interface {
	ActiveAgents() ([]string, error)
	AgentAge(agentID string) (*AgentAge, error)
	RecordEpoch(agentID, kind string) error
	RecordTick(agentID string, opts TickOpts) error
}

// Deriver runs a derivation prompt against an LLM and returns its raw text
// response. Cancellation and timeouts are the implementation's concern.
type Deriver interface {
	Derive(ctx context.Context, system, content string) (string, error)
}
