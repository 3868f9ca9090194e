// Package netmon tracks server reachability and signals subscribers when the client
// comes back online.
package netmon

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Probe reports whether the server is reachable.
type Probe func(ctx context.Context) error

// Monitor holds the current connectivity state.
type Monitor struct {
	probe    Probe
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	online atomic.Bool

	mu   sync.Mutex
	subs []chan struct{}
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithProbeTimeout bounds a single probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// New creates a Monitor that starts offline until the first probe succeeds.
func New(probe Probe, interval time.Duration, opts ...Option) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	m := &Monitor{
		probe:    probe,
		interval: interval,
		timeout:  5 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Online reports the last observed state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Subscribe returns a channel signalled on every offline to online transition and on
// Foreground while online. Signals coalesce: a slow reader sees at most one pending.
func (m *Monitor) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Set records a connectivity observation.
func (m *Monitor) Set(online bool) {
	was := m.online.Swap(online)
	if was == online {
		return
	}
	m.logger.Info("connectivity changed", "online", online)
	if online {
		m.notify()
	}
}

// Foreground signals subscribers that the app regained focus.
func (m *Monitor) Foreground() {
	if m.Online() {
		m.notify()
	}
}

// Check runs the probe once and records the result.
func (m *Monitor) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.probe(probeCtx)
	if err != nil && ctx.Err() == nil {
		m.logger.Debug("probe failed", "error", err)
	}
	m.Set(err == nil)
	return err == nil
}

// Run probes on the configured interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

func (m *Monitor) notify() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
