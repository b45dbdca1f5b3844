package routing

import (
	"testing"
	"time"
)

func TestReloadDisplacesIntermediateTable(t *testing.T) {
	t0 := newTestTable(t)
	t1 := newTestTable(t)
	t2 := newTestTable(t)
	holder := NewHolder(t0)

	holder.Reload(t1)
	if !t0.stopped() {
		t.Fatal("displaced table must be stopped")
	}
	if holder.Table() != t1 {
		t.FailNow()
	}

	holder.Reload(t2)
	if !t1.stopped() {
		t.Fatal("intermediate table must be stopped, its loops leak otherwise")
	}
	if t2.stopped() {
		t.Fatal("current table must keep running")
	}
	if holder.Table() != t2 {
		t.FailNow()
	}
	t2.Stop()
}

func TestQueuedReloadsCoalesce(t *testing.T) {
	t0 := newTestTable(t)
	t1 := newTestTable(t)
	t2 := newTestTable(t)
	holder := NewHolder(t0)

	// both updates queue on t0 before its event loop handles the first,
	// only the last one may be applied
	t0.PushReloadEvent(ReloadMsg{Handle: func() { holder.Reload(t1) }})
	t0.PushReloadEvent(ReloadMsg{Handle: func() { holder.Reload(t2) }})
	go t0.HandleEvent()

	deadline := time.Now().Add(2 * time.Second)
	for holder.Table() != t2 {
		if time.Now().After(deadline) {
			t.Fatal("last queued reload not applied")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !t0.stopped() {
		t.Fatal("displaced table must be stopped")
	}
	// t1 was coalesced away before its loops ever started
	t2.Stop()
}
