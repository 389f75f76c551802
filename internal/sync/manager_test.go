package sync

import (
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func (r *fakeRemote) cycles() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls + r.deltaCalls
}

func newTestManager(t *testing.T) (*Manager, *fakeRemote) {
	t.Helper()
	database := testDB(t)
	remote := newFakeRemote()
	engine := NewEngine(database, remote, "dev-1")
	m := NewManager(engine, ManagerOptions{
		Interval: time.Hour, // keep the ticker out of the way
		Debounce: 20 * time.Millisecond,
	})
	t.Cleanup(m.Stop)
	return m, remote
}

func TestTriggerSyncDebounces(t *testing.T) {
	m, remote := newTestManager(t)
	m.Start()

	// A burst of triggers inside the window coalesces into one cycle.
	for i := 0; i < 5; i++ {
		m.TriggerSync()
		time.Sleep(2 * time.Millisecond)
	}

	if !waitFor(t, time.Second, func() bool { return remote.cycles() >= 1 }) {
		t.Fatal("debounced cycle never ran")
	}
	time.Sleep(50 * time.Millisecond)
	if got := remote.cycles(); got != 1 {
		t.Errorf("cycles = %d, want 1 for a coalesced burst", got)
	}
}

func TestNotifyOnlineBypassesDebounce(t *testing.T) {
	m, remote := newTestManager(t)
	m.Start()

	m.NotifyOnline()
	if !waitFor(t, time.Second, func() bool { return remote.cycles() >= 1 }) {
		t.Fatal("online notification did not run a cycle")
	}
}

func TestSignalsDuringCycleAreDropped(t *testing.T) {
	m, remote := newTestManager(t)
	remote.listEnter = make(chan struct{})
	remote.listGate = make(chan struct{})
	m.Start()

	m.NotifyOnline()
	<-remote.listEnter // the cycle is now blocked inside its pull

	if syncing, _, _, _ := m.Status(); !syncing {
		t.Error("status should report syncing while a cycle is in flight")
	}

	// Signals landing mid-cycle collapse into the running cycle.
	m.NotifyOnline()
	m.TriggerSync()

	close(remote.listGate)

	if !waitFor(t, time.Second, func() bool {
		syncing, _, _, _ := m.Status()
		return !syncing
	}) {
		t.Fatal("cycle never finished")
	}
	time.Sleep(50 * time.Millisecond)
	if got := remote.cycles(); got != 1 {
		t.Errorf("cycles = %d, want 1; mid-cycle signals must not queue a repeat", got)
	}
}

func TestSetEnabledFalseSkipsCycles(t *testing.T) {
	m, remote := newTestManager(t)
	m.Start()
	m.SetEnabled(false)

	m.NotifyOnline()
	m.TriggerSync()
	time.Sleep(80 * time.Millisecond)
	if got := remote.cycles(); got != 0 {
		t.Errorf("cycles while disabled = %d, want 0", got)
	}

	// Re-enabling triggers a catch-up cycle.
	m.SetEnabled(true)
	if !waitFor(t, time.Second, func() bool { return remote.cycles() >= 1 }) {
		t.Fatal("no cycle after re-enable")
	}

	_, enabled, _, _ := m.Status()
	if !enabled {
		t.Error("status reports disabled after re-enable")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	m, _ := newTestManager(t)

	// Stop before Start is a no-op.
	m.Stop()

	m.Start()
	m.Start()
	m.Stop()
	m.Stop()

	// Restart after stop works.
	m.Start()
	m.NotifyOnline()
	m.Stop()
}

func TestPeriodicTicker(t *testing.T) {
	database := testDB(t)
	remote := newFakeRemote()
	engine := NewEngine(database, remote, "dev-1")
	m := NewManager(engine, ManagerOptions{
		Interval: 15 * time.Millisecond,
		Debounce: time.Hour,
	})
	t.Cleanup(m.Stop)
	m.Start()

	if !waitFor(t, time.Second, func() bool { return remote.cycles() >= 2 }) {
		t.Fatalf("ticker ran %d cycles, want at least 2", remote.cycles())
	}
}
