package meta

import (
	"math"
	"testing"
)

// buildTwoDomainEnv sets up physics records a1, a2 and biology records b1, b2
func buildTwoDomainEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t, smallConfig())
	env.addRecord(t, "a1", "physics", "energy is conserved")
	env.addRecord(t, "a2", "physics", "momentum is conserved")
	env.addRecord(t, "b1", "biology", "cells divide")
	env.addRecord(t, "b2", "biology", "organisms adapt")
	return env
}

func TestDomainDistanceDirectEdge(t *testing.T) {
	env := buildTwoDomainEnv(t)
	env.link(t, "a1", "b1")

	pool, err := env.engine.BuildPool()
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	matrix := env.engine.BuildDistanceMatrix(pool)

	if d := matrix.Get("physics", "biology"); d != 1 {
		t.Errorf("distance = %v, want 1", d)
	}
	// Lookups are order-independent
	if d := matrix.Get("biology", "physics"); d != 1 {
		t.Errorf("reversed distance = %v, want 1", d)
	}
}

func TestDomainDistanceMultiHop(t *testing.T) {
	env := buildTwoDomainEnv(t)
	env.addRecord(t, "c1", "chemistry", "atoms bond")
	env.link(t, "a1", "c1")
	env.link(t, "c1", "b2")

	pool, err := env.engine.BuildPool()
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	matrix := env.engine.BuildDistanceMatrix(pool)

	if d := matrix.Get("physics", "biology"); d != 2 {
		t.Errorf("distance = %v, want 2", d)
	}
}

func TestDomainDistanceUnreachable(t *testing.T) {
	env := buildTwoDomainEnv(t)
	// Edge points the wrong way: traversal follows outgoing edges only
	env.link(t, "b1", "a1")

	pool, err := env.engine.BuildPool()
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	matrix := env.engine.BuildDistanceMatrix(pool)

	if d := matrix.Get("physics", "biology"); !math.IsInf(d, 1) {
		t.Errorf("distance = %v, want +Inf", d)
	}
}

func TestDomainDistanceSharedRecord(t *testing.T) {
	env := newTestEnv(t, smallConfig())
	if d := env.engine.domainDistance([]string{"a1", "s1"}, []string{"b1", "s1"}); d != 0 {
		t.Errorf("distance = %v, want 0 for shared record", d)
	}
}

func TestDomainDistanceHopCap(t *testing.T) {
	cfg := smallConfig()
	cfg.HopCap = 2
	env := newTestEnv(t, cfg)
	env.addRecord(t, "a1", "physics", "energy is conserved")
	env.addRecord(t, "b1", "biology", "cells divide")

	// Chain a1 -> x1 -> x2 -> b1 is three hops, one past the cap
	env.addRecord(t, "x1", "chemistry", "atoms bond")
	env.addRecord(t, "x2", "chemistry", "bonds store energy")
	env.link(t, "a1", "x1")
	env.link(t, "x1", "x2")
	env.link(t, "x2", "b1")

	if d := env.engine.domainDistance([]string{"a1"}, []string{"b1"}); !math.IsInf(d, 1) {
		t.Errorf("distance = %v, want +Inf past hop cap", d)
	}

	// Within the cap the chain resolves
	if d := env.engine.domainDistance([]string{"x1"}, []string{"b1"}); d != 2 {
		t.Errorf("distance = %v, want 2", d)
	}
}

func TestMatrixSelfDistanceZero(t *testing.T) {
	m := &DistanceMatrix{d: map[[2]string]float64{}}
	if d := m.Get("physics", "physics"); d != 0 {
		t.Errorf("self distance = %v, want 0", d)
	}
}
