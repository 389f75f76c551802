package sync

import (
	"context"
	"log/slog"
	stdsync "sync"
	"time"
)

// Default lifecycle timings. Overridable through ManagerOptions for tests
// and for user configuration.
const (
	DefaultInterval = 10 * time.Minute
	DefaultDebounce = 3 * time.Second
)

// ManagerOptions tunes the sync lifecycle.
type ManagerOptions struct {
	Interval time.Duration // periodic cycle spacing; <=0 means DefaultInterval
	Debounce time.Duration // local-edit trigger delay; <=0 means DefaultDebounce
}

// Manager owns the background sync loop: a periodic ticker, a debounced
// trigger for local edits, and an immediate kick when connectivity
// returns. Cycle errors are logged and swallowed; the next tick retries.
type Manager struct {
	engine   *Engine
	interval time.Duration
	debounce time.Duration

	mu      stdsync.Mutex
	enabled bool
	syncing bool
	lastErr error
	lastRun time.Time

	trigger chan struct{}
	online  chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewManager creates a stopped Manager around the engine.
func NewManager(engine *Engine, opts ManagerOptions) *Manager {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Manager{
		engine:   engine,
		interval: opts.Interval,
		debounce: opts.Debounce,
		enabled:  true,
		trigger:  make(chan struct{}, 1),
		online:   make(chan struct{}, 1),
	}
}

// Start launches the background loop. Calling Start on a running manager
// is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	done := make(chan struct{})
	m.done = done
	go m.loop(ctx, done)
}

// Stop halts the background loop and waits for an in-flight cycle to
// finish. Calling Stop on a stopped manager is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SetEnabled toggles whether cycles run. A disabled manager keeps its
// loop alive but skips every trigger, so re-enabling needs no restart.
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	m.mu.Unlock()
	if enabled {
		m.TriggerSync()
	}
}

// TriggerSync requests a near-term cycle. Calls made while the debounce
// window is open coalesce into a single cycle.
func (m *Manager) TriggerSync() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// NotifyOnline requests an immediate cycle, bypassing the debounce. Used
// when connectivity returns after an offline stretch.
func (m *Manager) NotifyOnline() {
	select {
	case m.online <- struct{}{}:
	default:
	}
}

// Status reports the manager state for the status command and monitor.
func (m *Manager) Status() (syncing, enabled bool, lastRun time.Time, lastErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncing, m.enabled, m.lastRun, m.lastErr
}

func (m *Manager) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	var debounce *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return

		case <-ticker.C:
			m.runCycle(ctx, ModeDelta)

		case <-m.online:
			if debounce != nil {
				debounce.Stop()
				debounceC = nil
			}
			m.runCycle(ctx, ModeDelta)

		case <-m.trigger:
			if debounce == nil {
				debounce = time.NewTimer(m.debounce)
			} else {
				debounce.Stop()
				debounce.Reset(m.debounce)
			}
			debounceC = debounce.C

		case <-debounceC:
			debounceC = nil
			m.runCycle(ctx, ModeDelta)
		}
	}
}

// runCycle executes one guarded sync cycle. Overlapping runs are
// prevented by the syncing flag; a second request during a cycle is
// dropped rather than queued, the periodic tick covers it.
func (m *Manager) runCycle(ctx context.Context, mode Mode) {
	m.mu.Lock()
	if !m.enabled || m.syncing {
		m.mu.Unlock()
		return
	}
	m.syncing = true
	m.mu.Unlock()

	_, err := m.engine.Sync(ctx, mode)

	m.mu.Lock()
	m.syncing = false
	m.lastErr = err
	m.lastRun = time.Now()
	m.mu.Unlock()

	// Signals that landed while this cycle was in flight are dropped,
	// not queued. The cycle re-scans all pending state from scratch, so
	// a queued repeat would only redo the same work.
	select {
	case <-m.trigger:
	default:
	}
	select {
	case <-m.online:
	default:
	}

	if err != nil && ctx.Err() == nil {
		slog.Warn("background sync failed", "mode", mode.String(), "err", err)
	}
}
