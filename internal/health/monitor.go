// Package health tracks whether the service's dependencies are usable.
package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Status is the last check outcome for one component.
type Status struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Monitor checks named components and caches the results. The service is
// healthy once the latest check of every component succeeded; it starts
// unhealthy until the first round completes.
type Monitor struct {
	log     zerolog.Logger
	timeout time.Duration
	names   []string
	checks  map[string]CheckFunc

	mu      sync.RWMutex
	status  map[string]Status
	healthy atomic.Bool
}

// NewMonitor returns a monitor whose checks are each bounded by timeout.
func NewMonitor(log zerolog.Logger, timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Monitor{
		log:     log,
		timeout: timeout,
		checks:  make(map[string]CheckFunc),
		status:  make(map[string]Status),
	}
}

// Add registers a component. Call it before Check or Start.
func (m *Monitor) Add(name string, fn CheckFunc) *Monitor {
	if _, dup := m.checks[name]; !dup {
		m.names = append(m.names, name)
	}
	m.checks[name] = fn
	return m
}

// IsHealthy returns the cached service flag without probing.
func (m *Monitor) IsHealthy() bool { return m.healthy.Load() }

// Components returns a copy of the cached per-component status.
func (m *Monitor) Components() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Status, len(m.status))
	for k, v := range m.status {
		out[k] = v
	}
	return out
}

// Check runs every component check once and updates the cached flags.
func (m *Monitor) Check(ctx context.Context) {
	all := true
	for _, name := range m.names {
		st := m.run(ctx, name)
		all = all && st.Healthy

		m.mu.Lock()
		prev, seen := m.status[name]
		m.status[name] = st
		m.mu.Unlock()

		switch {
		case !st.Healthy && (!seen || prev.Healthy):
			m.log.Error().Str("component", name).Str("error", st.Error).Msg("component unhealthy")
		case st.Healthy && seen && !prev.Healthy:
			m.log.Info().Str("component", name).Msg("component recovered")
		}
	}

	if was := m.healthy.Swap(all); was != all {
		if all {
			m.log.Info().Msg("service health: UP")
		} else {
			m.log.Error().Msg("service health: DOWN")
		}
	}
}

// Start runs Check immediately and then every interval until ctx ends.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

func (m *Monitor) run(ctx context.Context, name string) Status {
	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	st := Status{CheckedAt: time.Now().UTC()}
	if err := m.checks[name](cctx); err != nil {
		st.Error = err.Error()
		return st
	}
	st.Healthy = true
	return st
}
