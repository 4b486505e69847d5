package connectivity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestMonitor_EdgeOnlyOnReconnect(t *testing.T) {
	m := NewMonitor(false)
	ch := m.Subscribe()

	m.Set(false)
	select {
	case <-ch:
		t.Fatal("signal without transition")
	default:
	}

	m.Set(true)
	select {
	case <-ch:
	default:
		t.Fatal("no signal on offline->online")
	}

	m.Set(true)
	select {
	case <-ch:
		t.Fatal("signal while staying online")
	default:
	}

	if !m.Online() {
		t.Error("Online() = false after Set(true)")
	}
}

func TestMonitor_SignalsCoalesce(t *testing.T) {
	m := NewMonitor(false)
	ch := m.Subscribe()

	m.Set(true)
	m.Set(false)
	m.Set(true)

	<-ch
	select {
	case <-ch:
		t.Error("expected pending signals to coalesce")
	default:
	}
}

func TestProber_ProbeOnce(t *testing.T) {
	m := NewMonitor(true)
	ch := m.Subscribe()

	healthy := false
	p := NewProber(m, func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("connection refused")
	}, time.Second, zerolog.Nop())

	if p.ProbeOnce(context.Background()) {
		t.Error("ProbeOnce = true for failing check")
	}
	if m.Online() {
		t.Error("monitor still online after failed probe")
	}

	healthy = true
	if !p.ProbeOnce(context.Background()) {
		t.Error("ProbeOnce = false for healthy check")
	}

	select {
	case <-ch:
	default:
		t.Error("recovery did not signal subscribers")
	}
}

func TestProber_RunStopsOnCancel(t *testing.T) {
	m := NewMonitor(false)
	p := NewProber(m, func(context.Context) error { return nil }, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !m.Online() {
		t.Error("monitor not online after healthy probes")
	}
}
