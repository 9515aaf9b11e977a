package meta

import (
	"context"
	"time"
)

// CycleResult summarizes one meta-derivation cycle
type CycleResult struct {
	Sessions  int      `json:"sessions"`
	Committed int      `json:"committed"`
	Rejected  int      `json:"rejected"`
	Skipped   []string `json:"skipped,omitempty"` // reason codes for skipped sessions
}

// ShouldRunMetaCycle reports whether a derivation cycle should start now and,
// when it should not, the blocking reason.
func (e *Engine) ShouldRunMetaCycle() (bool, string) {
	e.mu.Lock()
	inProgress := e.cycleInProgress
	e.mu.Unlock()
	if inProgress {
		return false, ReasonCycleInProgress
	}

	if e.cycle.CommittedToday() >= e.cfg.DailyCommitCap {
		return false, ReasonDailyCapReached
	}

	records, err := e.records.Records()
	if err != nil || len(records) < e.cfg.MinEligibleRecords {
		return false, ReasonInsufficientDTUs
	}

	if last := e.cycle.LastCycle(); !last.IsZero() {
		if time.Since(last) < e.cfg.CycleInterval.Std() {
			return false, "interval_not_elapsed"
		}
	}
	return true, ""
}

// ShouldRunConvergenceCheck reports whether a convergence pass is due: at
// least one dream input exists and the convergence interval has elapsed.
func (e *Engine) ShouldRunConvergenceCheck() bool {
	dreams, err := e.state.DreamRecords()
	if err != nil || len(dreams) == 0 {
		return false
	}
	if last := e.cycle.LastConvergence(); !last.IsZero() {
		if time.Since(last) < e.cfg.ConvergenceInterval.Std() {
			return false
		}
	}
	return true
}

// RunMetaCycle executes one full derivation cycle: build the pool and the
// distance matrix, then run up to SessionsPerCycle derivation sessions over
// distinct domain sets, validating and committing each accepted candidate.
// Single-flight: a second call while one runs fails with cycle_in_progress.
func (e *Engine) RunMetaCycle(ctx context.Context) (*CycleResult, error) {
	e.mu.Lock()
	if e.cycleInProgress {
		e.mu.Unlock()
		return nil, Fail(ReasonCycleInProgress)
	}
	e.cycleInProgress = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.cycleInProgress = false
		e.mu.Unlock()
	}()

	pool, err := e.BuildPool()
	if err != nil {
		return nil, err
	}
	matrix := e.BuildDistanceMatrix(pool)

	result := &CycleResult{}
	seen := make(map[string]bool)

	// Seed ranks beyond SessionsPerCycle allow for dedup collisions without
	// retrying forever.
	for seedRank := 0; seedRank < e.cfg.SessionsPerCycle*2; seedRank++ {
		if result.Sessions >= e.cfg.SessionsPerCycle {
			break
		}
		if e.cycle.CommittedToday() >= e.cfg.DailyCommitCap {
			result.Skipped = append(result.Skipped, ReasonDailyCapReached)
			break
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		set := e.SelectDistantSet(pool, matrix, seedRank)
		if set == nil {
			break
		}
		if seen[set.Key()] {
			continue // same domain set as an earlier session this cycle
		}
		seen[set.Key()] = true
		result.Sessions++

		if err := e.runSession(ctx, set, result); err != nil {
			logf("session over %v failed: %v", set.Domains, err)
			result.Skipped = append(result.Skipped, "derivation_failed")
		}
	}

	if err := e.cycle.MarkCycle(time.Now().UTC()); err != nil {
		logf("cycle timestamp update failed: %v", err)
	}

	logf("cycle complete: %d sessions, %d committed, %d rejected",
		result.Sessions, result.Committed, result.Rejected)
	return result, nil
}

// runSession drives one derivation session end to end. The Derive call is
// the cycle's only suspension point.
func (e *Engine) runSession(ctx context.Context, set *DistantSet, result *CycleResult) error {
	if e.deriver == nil {
		return Fail("deriver_unavailable")
	}

	session := e.BuildSession(set)
	debugf("session over %v (participant %q)", session.SelectedDomains, session.ParticipantID)

	response, err := e.deriver.Derive(ctx, session.Prompt.System, session.Prompt.Content)
	if err != nil {
		return err
	}

	parsed := ParseResponse(response)
	candidate := e.BuildCandidate(session, parsed)

	validation := e.Validate(candidate)
	if !validation.Passed {
		result.Rejected++
		return nil
	}

	if _, err := e.Commit(candidate, validation); err != nil {
		if FailureReason(err) == ReasonDailyCapReached {
			result.Skipped = append(result.Skipped, ReasonDailyCapReached)
			return nil
		}
		return err
	}
	result.Committed++
	return nil
}
