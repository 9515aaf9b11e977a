// Package needs implements the verification-need queue as a JSON-backed
// store. Needs are work requests addressed to agent roles; consumers poll
// and claim them out of band.
package needs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/avint/metaloom/internal/kb"
)

// Queue manages needs.json
type Queue struct {
	path  string
	needs map[string]*kb.Need
	mu    sync.RWMutex
}

// NewQueue creates a need queue store under statePath
func NewQueue(statePath string) *Queue {
	return &Queue{
		path:  filepath.Join(statePath, "needs.json"),
		needs: make(map[string]*kb.Need),
	}
}

// Load reads needs from file; a missing file is an empty queue
func (q *Queue) Load() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := os.ReadFile(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var needs []*kb.Need
	if err := json.Unmarshal(data, &needs); err != nil {
		return err
	}
	q.needs = make(map[string]*kb.Need)
	for _, n := range needs {
		q.needs[n.ID] = n
	}
	return nil
}

// save writes needs to file (must hold lock)
func (q *Queue) save() error {
	needs := make([]*kb.Need, 0, len(q.needs))
	for _, n := range q.needs {
		needs = append(needs, n)
	}
	data, err := json.MarshalIndent(needs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(q.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(q.path, data, 0644)
}

// RecordNeed adds a need to the queue and persists it
func (q *Queue) RecordNeed(n *kb.Need) error {
	if n == nil || n.Description == "" {
		return fmt.Errorf("need description required")
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if n.ID == "" {
		n.ID = fmt.Sprintf("need-%d", time.Now().UnixNano())
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	q.needs[n.ID] = n
	return q.save()
}

// Pending returns all recorded needs
func (q *Queue) Pending() []*kb.Need {
	q.mu.RLock()
	defer q.mu.RUnlock()

	needs := make([]*kb.Need, 0, len(q.needs))
	for _, n := range q.needs {
		needs = append(needs, n)
	}
	return needs
}

// Count returns the number of recorded needs
func (q *Queue) Count() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.needs)
}
