package meta

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// cycleStateData is the persisted shape of the scheduling state
type cycleStateData struct {
	LastCycleAt       time.Time `json:"last_cycle_at"`
	LastConvergenceAt time.Time `json:"last_convergence_at"`
	CommitDate        string    `json:"commit_date"` // UTC date string "2006-01-02"
	CommittedToday    int       `json:"committed_today"`
}

// CycleState persists scheduling state (last cycle/convergence timestamps and
// the date-scoped daily commit counter) to cycle_state.json so the daily cap
// survives restarts. The counter resets strictly on UTC-date change.
type CycleState struct {
	path string
	mu   sync.Mutex
	data cycleStateData

	// now is swappable for tests
	now func() time.Time
}

// NewCycleState creates a cycle state store under statePath
func NewCycleState(statePath string) *CycleState {
	return &CycleState{
		path: filepath.Join(statePath, "cycle_state.json"),
		now:  time.Now,
	}
}

// Load reads persisted state; a missing file is a fresh start
func (s *CycleState) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &s.data)
}

// save writes state to disk (must hold lock)
func (s *CycleState) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// utcDate returns the current UTC date string
func (s *CycleState) utcDate() string {
	return s.now().UTC().Format("2006-01-02")
}

// CommittedToday returns today's commit count, resetting on UTC date change
func (s *CycleState) CommittedToday() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.CommitDate != s.utcDate() {
		return 0
	}
	return s.data.CommittedToday
}

// IncrementCommitted bumps today's commit counter
func (s *CycleState) IncrementCommitted() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.utcDate()
	if s.data.CommitDate != today {
		s.data.CommitDate = today
		s.data.CommittedToday = 0
	}
	s.data.CommittedToday++
	return s.save()
}

// LastCycle returns when the last meta cycle completed
func (s *CycleState) LastCycle() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.LastCycleAt
}

// MarkCycle records a completed meta cycle
func (s *CycleState) MarkCycle(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.LastCycleAt = t
	return s.save()
}

// LastConvergence returns when the last convergence pass completed
func (s *CycleState) LastConvergence() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.LastConvergenceAt
}

// MarkConvergence records a completed convergence pass
func (s *CycleState) MarkConvergence(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.LastConvergenceAt = t
	return s.save()
}
