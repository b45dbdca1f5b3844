package routing

import (
	"testing"
	"time"
)

func TestLeastConnectionsPick(t *testing.T) {
	a := newEndpoint("api", "127.0.0.1", 9001, "", 0, 0)
	b := newEndpoint("api", "127.0.0.1", 9002, "", 0, 0)
	c := newEndpoint("api", "127.0.0.1", 9003, "", 0, 0)
	declared := []*Endpoint{a, b, c}
	lc := NewLeastConnections()
	now := time.Now()

	a.Acquire()
	a.Acquire()
	b.Acquire()
	c.Acquire()

	// b and c tie on in-flight, declaration order wins
	ep, err := lc.Pick(declared, now)
	if err != nil {
		t.Fatal(err)
	}
	if ep != b {
		t.Fatalf("expected endpoint b, got %s", ep.name)
	}

	b.Acquire()
	ep, err = lc.Pick(declared, now)
	if err != nil {
		t.Fatal(err)
	}
	if ep != c {
		t.Fatalf("expected endpoint c, got %s", ep.name)
	}
}

func TestPickSkipsExcluded(t *testing.T) {
	rt := newTestTable(t)
	u, err := rt.GetUpstreamByName([]byte("api"))
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	first := u.declared[0]
	for i := int32(0); i < rt.failureThreshold; i++ {
		rt.reportOutcome(first, false, now)
	}

	for i := 0; i < 10; i++ {
		ep, err := u.Select(now)
		if err != nil {
			t.Fatal(err)
		}
		if ep == first {
			t.Fatal("excluded endpoint selected")
		}
	}
}

func TestAllExcludedThenRecovery(t *testing.T) {
	rt := newTestTable(t)
	u, err := rt.GetUpstreamByName([]byte("api"))
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	for _, ep := range u.declared {
		for i := int32(0); i < rt.failureThreshold; i++ {
			rt.reportOutcome(ep, false, now)
		}
	}
	if _, err := u.Select(now); err != ErrNoHealthyEndpoint {
		t.Fatalf("expected ErrNoHealthyEndpoint, got %v", err)
	}

	// one endpoint's cooldown lapses, selection succeeds again
	later := now.Add(rt.cooldown)
	ep, err := u.Select(later)
	if err != nil {
		t.Fatal(err)
	}
	if ep == nil {
		t.FailNow()
	}
}

func TestRoundRobinRotation(t *testing.T) {
	a := newEndpoint("app", "127.0.0.1", 3001, "", 0, 0)
	b := newEndpoint("app", "127.0.0.1", 3002, "", 0, 0)
	c := newEndpoint("app", "127.0.0.1", 3003, "", 0, 0)
	declared := []*Endpoint{a, b, c}
	rr := NewRoundRobin()
	now := time.Now()

	seen := map[*Endpoint]int{}
	for i := 0; i < 9; i++ {
		ep, err := rr.Pick(declared, now)
		if err != nil {
			t.Fatal(err)
		}
		seen[ep]++
	}
	if seen[a] != 3 || seen[b] != 3 || seen[c] != 3 {
		t.Fatalf("uneven rotation: %v", seen)
	}

	b.setStatus(BreakDown)
	seen = map[*Endpoint]int{}
	for i := 0; i < 8; i++ {
		ep, err := rr.Pick(declared, now)
		if err != nil {
			t.Fatal(err)
		}
		seen[ep]++
	}
	if seen[b] != 0 {
		t.Fatal("breakdown endpoint selected")
	}
	if seen[a] != 4 || seen[c] != 4 {
		t.Fatalf("uneven rotation after exclusion: %v", seen)
	}
}

func TestRoundRobinAllDown(t *testing.T) {
	a := newEndpoint("app", "127.0.0.1", 3001, "", 0, 0)
	a.setStatus(Offline)
	rr := NewRoundRobin()
	if _, err := rr.Pick([]*Endpoint{a}, time.Now()); err != ErrNoHealthyEndpoint {
		t.Fatalf("expected ErrNoHealthyEndpoint, got %v", err)
	}
}

func TestNewBalancer(t *testing.T) {
	if newBalancer("round_robin").Name() != PolicyRoundRobin {
		t.FailNow()
	}
	if newBalancer("").Name() != PolicyLeastConn {
		t.FailNow()
	}
	if newBalancer("least_conn").Name() != PolicyLeastConn {
		t.FailNow()
	}
}
