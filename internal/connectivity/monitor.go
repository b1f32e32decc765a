package connectivity

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Probe reports whether the backend is reachable right now.
type Probe func(ctx context.Context) bool

// HTTPProbe issues a HEAD request against the backend base URL.
// Any HTTP response, success or not, means the network path is up;
// transport errors and timeouts mean it is not.
func HTTPProbe(baseURL string, timeout time.Duration) Probe {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return true
	}
}

// Monitor watches reachability and invokes a handler on every transition
// from offline to online, so the queue drains as soon as connectivity
// returns. One probe goroutine runs per started monitor.
type Monitor struct {
	probe    Probe
	interval time.Duration
	logger   *zap.Logger

	online atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitor(probe Probe, interval time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{probe: probe, interval: interval, logger: logger}
}

// Start launches the probe loop. Calling Start on a running monitor is a
// no-op, so the underlying subscription is registered exactly once.
func (m *Monitor) Start(ctx context.Context, onOnline func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	// Seed the state so Online answers before the first tick.
	m.online.Store(m.probe(runCtx))

	go m.run(runCtx, done, onOnline)
}

// Stop tears the probe loop down and waits for it to exit.
// Safe to call repeatedly, and without a prior Start.
func (m *Monitor) Stop() {
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

// Check probes reachability fresh and records the result. The processor
// uses this as its pre-flight check rather than trusting a possibly stale
// last observation.
func (m *Monitor) Check(ctx context.Context) bool {
	ok := m.probe(ctx)
	m.online.Store(ok)
	return ok
}

// Online returns the last observed reachability state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

func (m *Monitor) run(ctx context.Context, done chan struct{}, onOnline func()) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("connectivity monitor started", zap.Duration("interval", m.interval))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("connectivity monitor stopping")
			return
		case <-ticker.C:
			m.observe(ctx, onOnline)
		}
	}
}

func (m *Monitor) observe(ctx context.Context, onOnline func()) {
	now := m.probe(ctx)
	was := m.online.Swap(now)

	switch {
	case now && !was:
		m.logger.Info("connectivity restored")
		onOnline()
	case !now && was:
		m.logger.Warn("connectivity lost")
	}
}
