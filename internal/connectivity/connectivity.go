// Package connectivity tracks whether the backend is believed reachable and
// notifies subscribers when it comes back.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Monitor holds the current online flag. Safe for concurrent use.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   []chan struct{}
}

// NewMonitor returns a monitor starting in the given state.
func NewMonitor(online bool) *Monitor {
	return &Monitor{online: online}
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records the current state. An offline-to-online transition signals
// every subscriber; repeated calls with the same state do nothing.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	edge := online && !m.online
	m.online = online
	if !edge {
		return
	}
	for _, ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
			// A signal is already pending for this subscriber.
		}
	}
}

// Subscribe returns a channel that receives a value on every
// offline-to-online transition. Signals coalesce if not consumed.
func (m *Monitor) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)

	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()

	return ch
}

// CheckFunc probes the backend. A nil error means reachable.
type CheckFunc func(ctx context.Context) error

// Prober periodically checks the backend and feeds the result to a Monitor.
type Prober struct {
	monitor  *Monitor
	check    CheckFunc
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger
}

// NewProber creates a prober. interval defaults to 15s.
func NewProber(m *Monitor, check CheckFunc, interval time.Duration, log zerolog.Logger) *Prober {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Prober{
		monitor:  m,
		check:    check,
		interval: interval,
		timeout:  interval / 2,
		log:      log,
	}
}

// ProbeOnce checks the backend once and updates the monitor.
func (p *Prober) ProbeOnce(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(ctx)
	online := err == nil

	if was := p.monitor.Online(); was != online {
		if online {
			p.log.Info().Msg("backend reachable")
		} else {
			p.log.Warn().Err(err).Msg("backend unreachable")
		}
	}
	p.monitor.Set(online)
	return online
}

// Run probes immediately and then every interval until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	p.ProbeOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProbeOnce(ctx)
		}
	}
}
