package meta

import (
	"fmt"
	"strings"

	"github.com/avint/metaloom/internal/kb"
)

// Prompt is the two-part derivation prompt
type Prompt struct {
	System  string `json:"system"`
	Content string `json:"content"`
}

// Session is a prepared derivation session
type Session struct {
	ParticipantID   string   `json:"participant_id,omitempty"`
	Prompt          Prompt   `json:"prompt"`
	SourceRecordIDs []string `json:"source_record_ids"`
	SelectedDomains []string `json:"selected_domains"`

	set *DistantSet
}

const sessionSystemPrompt = `You are deriving a meta-invariant: a single higher-order constraint that explains why several independently validated statements from unrelated domains can all be true at once.

Given the invariants below, respond with exactly these four labeled sections:

META_INVARIANT: the implicit structural or geometric constraint that makes all of the supplied invariants hold together. State it as one declarative sentence. Do not restate any input invariant.

PREDICTED_DOMAIN: one domain NOT present in the input where this constraint should also hold.

PREDICTION: one falsifiable prediction about that domain which follows from the meta-invariant.

REASONING: a brief account of how the constraint connects the inputs.`

// BuildSession constructs the derivation session for a distant set. If the
// agent clock is wired and a qualifying agent exists, that agent participates
// and is credited; absence of a qualifying agent is not fatal.
func (e *Engine) BuildSession(set *DistantSet) *Session {
	var content strings.Builder
	content.WriteString("Validated invariants from maximally distant domains:\n")
	for _, inv := range set.Representatives {
		content.WriteString(fmt.Sprintf("\n- [%s] (validated across %d records): %s",
			inv.Domain, inv.ValidationCount, inv.Text))
	}

	sourceIDs := make([]string, 0, len(set.Representatives))
	for _, inv := range set.Representatives {
		sourceIDs = append(sourceIDs, inv.SourceRecordID)
	}

	session := &Session{
		Prompt:          Prompt{System: sessionSystemPrompt, Content: content.String()},
		SourceRecordIDs: sourceIDs,
		SelectedDomains: append([]string(nil), set.Domains...),
		set:             set,
	}

	if participant := e.selectParticipant(); participant != "" {
		session.ParticipantID = participant
		e.creditParticipant(participant)
	}

	return session
}

// selectParticipant picks the active agent with the highest weighted score
// (ticks + noveltyRatio x 100) among those meeting the experience floor.
// Returns "" when no agent qualifies.
func (e *Engine) selectParticipant() string {
	if e.clock == nil {
		return ""
	}
	agents, err := e.clock.ActiveAgents()
	if err != nil {
		logf("agent selection skipped: %v", err)
		return ""
	}

	best := ""
	bestScore := 0.0
	for _, id := range agents {
		age, err := e.clock.AgentAge(id)
		if err != nil || age == nil {
			continue
		}
		if age.Ticks < e.cfg.MinAgentTicks || age.Cycles < e.cfg.MinAgentCycles {
			continue
		}
		score := float64(age.Ticks) + age.NoveltyRatio*100
		if best == "" || score > bestScore {
			best = id
			bestScore = score
		}
	}
	return best
}

// creditParticipant grants the session's participant one epoch and a 3x
// weighted exploration tick. Crediting is a side effect; failures are logged
// and never abort the session.
func (e *Engine) creditParticipant(agentID string) {
	if err := e.clock.RecordEpoch(agentID, "meta_derivation"); err != nil {
		logf("epoch credit for %s failed: %v", agentID, err)
	}
	if err := e.clock.RecordTick(agentID, kb.TickOpts{Kind: "exploration", Weight: 3}); err != nil {
		logf("tick credit for %s failed: %v", agentID, err)
	}
}
