package meta

import (
	"context"
	"testing"
	"time"
)

// seedDerivableBase loads enough spread-out domains for a full cycle
func seedDerivableBase(t *testing.T, env *testEnv) {
	t.Helper()
	env.addRecord(t, "p1", "physics", "energy is conserved in closed systems")
	env.addRecord(t, "b1", "biology", "cells divide at a limited rate")
	env.addRecord(t, "c1", "chemistry", "reaction rates double per ten degrees")
	env.addRecord(t, "m1", "music", "octaves double frequency")
	env.addRecord(t, "e1", "economics", "prices clear markets under competition")
}

const derivableResponse = `META_INVARIANT: Throughput in any layered system is capped by its scarcest shared budget.

PREDICTED_DOMAIN: ecology

PREDICTION: Ecosystem productivity tracks the single scarcest nutrient regardless of abundance elsewhere.

REASONING: Each input describes a rate pinned to a limiting resource.`

func TestRunMetaCycleCommits(t *testing.T) {
	cfg := smallConfig()
	cfg.SessionsPerCycle = 2
	env := newTestEnv(t, cfg)
	seedDerivableBase(t, env)
	env.deriver.response = derivableResponse

	result, err := env.engine.RunMetaCycle(context.Background())
	if err != nil {
		t.Fatalf("RunMetaCycle: %v", err)
	}

	if result.Sessions == 0 || result.Sessions > cfg.SessionsPerCycle {
		t.Errorf("sessions = %d", result.Sessions)
	}
	if result.Committed != result.Sessions {
		t.Errorf("committed = %d, sessions = %d", result.Committed, result.Sessions)
	}
	if env.deriver.calls != result.Sessions {
		t.Errorf("deriver calls = %d, sessions = %d", env.deriver.calls, result.Sessions)
	}
	if len(env.state.metas) != result.Committed {
		t.Errorf("tracked metas = %d", len(env.state.metas))
	}

	if env.engine.cycle.LastCycle().IsZero() {
		t.Error("cycle timestamp not recorded")
	}
}

func TestRunMetaCycleRejectsBadResponses(t *testing.T) {
	env := newTestEnv(t, smallConfig())
	seedDerivableBase(t, env)
	env.deriver.response = "I could not find any pattern here."

	result, err := env.engine.RunMetaCycle(context.Background())
	if err != nil {
		t.Fatalf("RunMetaCycle: %v", err)
	}
	if result.Committed != 0 {
		t.Errorf("committed = %d, want 0", result.Committed)
	}
	if result.Rejected != result.Sessions {
		t.Errorf("rejected = %d, sessions = %d", result.Rejected, result.Sessions)
	}
}

func TestRunMetaCycleSingleFlight(t *testing.T) {
	env := newTestEnv(t, smallConfig())
	seedDerivableBase(t, env)

	env.engine.mu.Lock()
	env.engine.cycleInProgress = true
	env.engine.mu.Unlock()

	_, err := env.engine.RunMetaCycle(context.Background())
	if got := failureReason(t, err); got != ReasonCycleInProgress {
		t.Errorf("reason = %q, want %q", got, ReasonCycleInProgress)
	}

	if ok, reason := env.engine.ShouldRunMetaCycle(); ok || reason != ReasonCycleInProgress {
		t.Errorf("ShouldRunMetaCycle = %v/%q", ok, reason)
	}
}

func TestShouldRunMetaCycleGuards(t *testing.T) {
	cfg := smallConfig()
	cfg.DailyCommitCap = 1
	env := newTestEnv(t, cfg)

	// Too few records
	if ok, reason := env.engine.ShouldRunMetaCycle(); ok || reason != ReasonInsufficientDTUs {
		t.Errorf("empty base: %v/%q", ok, reason)
	}

	seedDerivableBase(t, env)
	if ok, _ := env.engine.ShouldRunMetaCycle(); !ok {
		t.Error("seeded base should allow a cycle")
	}

	// Daily cap reached
	if _, err := env.engine.Commit(testCandidate(), passingValidation(StatusNoPrediction)); err != nil {
		t.Fatal(err)
	}
	if ok, reason := env.engine.ShouldRunMetaCycle(); ok || reason != ReasonDailyCapReached {
		t.Errorf("capped: %v/%q", ok, reason)
	}
}

func TestShouldRunMetaCycleInterval(t *testing.T) {
	env := newTestEnv(t, smallConfig())
	seedDerivableBase(t, env)

	if err := env.engine.cycle.MarkCycle(time.Now().UTC().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if ok, reason := env.engine.ShouldRunMetaCycle(); ok || reason != "interval_not_elapsed" {
		t.Errorf("fresh cycle: %v/%q", ok, reason)
	}

	if err := env.engine.cycle.MarkCycle(time.Now().UTC().Add(-7 * time.Hour)); err != nil {
		t.Fatal(err)
	}
	if ok, _ := env.engine.ShouldRunMetaCycle(); !ok {
		t.Error("elapsed interval should allow a cycle")
	}
}

func TestShouldRunConvergenceCheck(t *testing.T) {
	env := newTestEnv(t, smallConfig())

	// No dreams yet
	if env.engine.ShouldRunConvergenceCheck() {
		t.Error("no dreams: check should not run")
	}

	if _, err := env.engine.IngestDream("the same branching shape keeps appearing", time.Time{}); err != nil {
		t.Fatal(err)
	}
	if !env.engine.ShouldRunConvergenceCheck() {
		t.Error("dream present: check should run")
	}

	if err := env.engine.cycle.MarkConvergence(time.Now().UTC().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if env.engine.ShouldRunConvergenceCheck() {
		t.Error("inside interval: check should not run")
	}

	if err := env.engine.cycle.MarkConvergence(time.Now().UTC().Add(-25 * time.Hour)); err != nil {
		t.Fatal(err)
	}
	if !env.engine.ShouldRunConvergenceCheck() {
		t.Error("elapsed interval: check should run")
	}
}
