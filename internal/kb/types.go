// Package kb defines the knowledge-base data model shared by the engine and
// its collaborators: records, typed weighted edges, tiers, and the interfaces
// the meta-derivation engine requires at construction time.
package kb

import (
	"strings"
	"time"
)

// Tier classifies a record's compression/confidence level
type Tier string

const (
	TierShadow   Tier = "shadow"   // provisional, excluded from derivation pools
	TierStandard Tier = "standard" // validated base knowledge
	TierMega     Tier = "mega"     // top-tier synthesis (meta-invariants)
	TierHyper    Tier = "hyper"    // highest tier (convergences)
)

// EdgeType defines the type of relationship between records
type EdgeType string

const (
	EdgeDerives    EdgeType = "derives"    // provenance: new record derived from source
	EdgeReferences EdgeType = "references" // weaker link, e.g. prediction targets
)

// Record is an atomic knowledge unit
type Record struct {
	ID         string         `json:"id"`
	Tags       []string       `json:"tags,omitempty"`
	Tier       Tier           `json:"tier"`
	Content    string         `json:"content"`
	Invariants []string       `json:"invariants,omitempty"`
	Claims     []string       `json:"claims,omitempty"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// HasTag reports whether the record carries the given tag
func (r *Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Edge is a directed, typed, weighted relation between two records
type Edge struct {
	ID         string            `json:"id"`
	SourceID   string            `json:"source_id"`
	TargetID   string            `json:"target_id"`
	Type       EdgeType          `json:"type"`
	Weight     float64           `json:"weight"`
	Provenance map[string]string `json:"provenance,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Need is a cross-cutting work request for the verification queue
type Need struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Priority      string    `json:"priority"`
	MatchingRoles []string  `json:"matching_roles"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

// AgentAge summarizes an agent's subjective experience
type AgentAge struct {
	AgentID      string  `json:"agent_id"`
	Ticks        int     `json:"ticks"`
	Cycles       int     `json:"cycles"`
	Epochs       int     `json:"epochs"`
	NoveltyRatio float64 `json:"novelty_ratio"`
}

// TickOpts configures a tick credit
type TickOpts struct {
	Kind   string // e.g. "exploration"
	Weight int    // multiplier; meta-derivation sessions count 3x
}

// knownDomains is the fixed vocabulary used when no explicit domain tag is
// present. Matching is exact against a record's tags.
var knownDomains = map[string]bool{
	"physics":      true,
	"mathematics":  true,
	"biology":      true,
	"chemistry":    true,
	"economics":    true,
	"psychology":   true,
	"ecology":      true,
	"linguistics":  true,
	"music":        true,
	"computation":  true,
	"astronomy":    true,
	"medicine":     true,
	"sociology":    true,
	"philosophy":   true,
	"history":      true,
	"geology":      true,
	"neuroscience": true,
	"architecture": true,
}

// Domain resolves a record's domain label from its tags. An explicit
// "domain:x" tag wins; otherwise the first tag found in the known-domain
// vocabulary is used. Returns "" when no domain can be resolved.
func Domain(r *Record) string {
	for _, t := range r.Tags {
		if strings.HasPrefix(t, "domain:") {
			if d := strings.TrimPrefix(t, "domain:"); d != "" {
				return d
			}
		}
	}
	for _, t := range r.Tags {
		if knownDomains[t] {
			return t
		}
	}
	return ""
}

// KnownDomain reports whether the label is part of the fixed vocabulary
func KnownDomain(label string) bool {
	return knownDomains[label]
}
