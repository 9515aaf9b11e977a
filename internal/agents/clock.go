// Package agents implements the agent subjective-time collaborator: a
// JSON-backed ledger of per-agent ticks, cycles, and epochs used to select
// and credit a derivation-session participant.
package agents

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/avint/metaloom/internal/kb"
)

// Clock manages agents.json
type Clock struct {
	path string
	ages map[string]*kb.AgentAge
	mu   sync.RWMutex
}

// NewClock creates an agent clock store under statePath
func NewClock(statePath string) *Clock {
	return &Clock{
		path: filepath.Join(statePath, "agents.json"),
		ages: make(map[string]*kb.AgentAge),
	}
}

// Load reads agent ages from file; a missing file means no agents yet
func (c *Clock) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var ages []*kb.AgentAge
	if err := json.Unmarshal(data, &ages); err != nil {
		return err
	}
	c.ages = make(map[string]*kb.AgentAge)
	for _, a := range ages {
		c.ages[a.AgentID] = a
	}
	return nil
}

// save writes agent ages to file (must hold lock)
func (c *Clock) save() error {
	ages := make([]*kb.AgentAge, 0, len(c.ages))
	for _, a := range c.ages {
		ages = append(ages, a)
	}
	data, err := json.MarshalIndent(ages, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// Register adds an agent if it isn't already tracked
func (c *Clock) Register(agentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.ages[agentID]; ok {
		return nil
	}
	c.ages[agentID] = &kb.AgentAge{AgentID: agentID}
	return c.save()
}

// ActiveAgents lists all tracked agent ids
func (c *Clock) ActiveAgents() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.ages))
	for id := range c.ages {
		ids = append(ids, id)
	}
	return ids, nil
}

// AgentAge returns a copy of the agent's age
func (c *Clock) AgentAge(agentID string) (*kb.AgentAge, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	age, ok := c.ages[agentID]
	if !ok {
		return nil, fmt.Errorf("unknown agent %s", agentID)
	}
	copied := *age
	return &copied, nil
}

// RecordEpoch credits the agent with one epoch of the given kind
func (c *Clock) RecordEpoch(agentID, kind string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	age, ok := c.ages[agentID]
	if !ok {
		return fmt.Errorf("unknown agent %s", agentID)
	}
	age.Epochs++
	_ = kind // kinds are not differentiated in the ledger yet
	return c.save()
}

// RecordTick credits the agent with a weighted tick. Weight defaults to 1.
func (c *Clock) RecordTick(agentID string, opts kb.TickOpts) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	age, ok := c.ages[agentID]
	if !ok {
		return fmt.Errorf("unknown agent %s", agentID)
	}
	weight := opts.Weight
	if weight <= 0 {
		weight = 1
	}
	age.Ticks += weight
	return c.save()
}

// SetExperience seeds an agent's experience directly (used by imports and
// tests)
func (c *Clock) SetExperience(agentID string, ticks, cycles int, noveltyRatio float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	age, ok := c.ages[agentID]
	if !ok {
		age = &kb.AgentAge{AgentID: agentID}
		c.ages[agentID] = age
	}
	age.Ticks = ticks
	age.Cycles = cycles
	age.NoveltyRatio = noveltyRatio
	return c.save()
}
