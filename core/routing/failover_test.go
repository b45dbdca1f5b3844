package routing

import (
	"sync"
	"testing"
	"time"
)

func TestExclusionAfterThreshold(t *testing.T) {
	rt := newTestTable(t)
	ep, err := rt.GetEndpointByName([]byte("api@127.0.0.1:9001"))
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	rt.reportOutcome(ep, false, now)
	rt.reportOutcome(ep, false, now)
	if ep.Excluded(now) {
		t.Fatal("excluded below threshold")
	}
	rt.reportOutcome(ep, false, now)
	if !ep.Excluded(now) {
		t.Fatal("not excluded at threshold")
	}
	if ep.Excluded(now.Add(rt.cooldown)) {
		t.Fatal("exclusion must lapse once the cooldown elapses")
	}
	if !ep.Excluded(now.Add(rt.cooldown - time.Millisecond)) {
		t.Fatal("exclusion lapsed early")
	}
}

func TestSuccessResetsCounter(t *testing.T) {
	rt := newTestTable(t)
	ep, err := rt.GetEndpointByName([]byte("api@127.0.0.1:9001"))
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	rt.reportOutcome(ep, false, now)
	rt.reportOutcome(ep, false, now)
	rt.reportOutcome(ep, true, now)
	if ep.Failures() != 0 {
		t.Fatalf("expected counter reset, got %d", ep.Failures())
	}

	// success lifts an active exclusion immediately
	rt.reportOutcome(ep, false, now)
	rt.reportOutcome(ep, false, now)
	rt.reportOutcome(ep, false, now)
	if !ep.Excluded(now) {
		t.FailNow()
	}
	rt.reportOutcome(ep, true, now)
	if ep.Excluded(now) {
		t.Fatal("success must lift the exclusion")
	}
}

func TestConcurrentFailureReports(t *testing.T) {
	rt := newTestTable(t)
	ep, err := rt.GetEndpointByName([]byte("api@127.0.0.1:9002"))
	if err != nil {
		t.Fatal(err)
	}

	const workers = 8
	const reports = 1000

	var wg sync.WaitGroup
	now := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < reports; i++ {
				rt.reportOutcome(ep, false, now)
			}
		}()
	}
	wg.Wait()

	if ep.Failures() != workers*reports {
		t.Fatalf("lost updates: expected %d failures, got %d", workers*reports, ep.Failures())
	}
	if !ep.Excluded(now) {
		t.FailNow()
	}
}

func TestManualOverride(t *testing.T) {
	rt := newTestTable(t)
	ep, err := rt.GetEndpointByName([]byte("app@127.0.0.1:3000"))
	if err != nil {
		t.Fatal(err)
	}

	if err := rt.SetEndpointStatus(ep, Offline); err != nil {
		t.Fatal(err)
	}
	if ep.selectable(time.Now()) {
		t.Fatal("offline endpoint must not be selectable")
	}
	if err := rt.SetEndpointStatus(ep, Online); err != nil {
		t.Fatal(err)
	}
	if !ep.selectable(time.Now()) {
		t.FailNow()
	}

	unknown := newEndpoint("ghost", "10.0.0.1", 1, "", 0, 0)
	if err := rt.SetEndpointStatus(unknown, Online); err != ErrEndpointNotFound {
		t.Fatalf("expected ErrEndpointNotFound, got %v", err)
	}
}

func TestEndpointRateLimit(t *testing.T) {
	ep := newEndpoint("api", "127.0.0.1", 9001, "", 0, 0)
	if ep.Throttled() {
		t.Fatal("endpoints must run unthrottled by default")
	}
	ep.SetRateLimit(1, 1)
	if ep.Throttled() {
		t.Fatal("first request within burst throttled")
	}
	if !ep.Throttled() {
		t.Fatal("request above burst not throttled")
	}
}

func TestInflightGauge(t *testing.T) {
	ep := newEndpoint("api", "127.0.0.1", 9001, "", 0, 0)
	ep.Acquire()
	ep.Acquire()
	if ep.Inflight() != 2 {
		t.FailNow()
	}
	ep.Release()
	if ep.Inflight() != 1 {
		t.FailNow()
	}
}
